package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/senyabanana/procurement-service/internal/models"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	PostgresDriver = "postgres"
	MemoryDriver   = "memory"
)

// Config - структура для хранения конфигураций приложения
type Config struct {
	ServerAddress   string        `mapstructure:"SERVER_ADDRESS"`
	Environment     string        `mapstructure:"ENVIRONMENT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	StorageDriver   string        `mapstructure:"STORAGE_DRIVER"`
	PostgresConn    string        `mapstructure:"POSTGRES_CONN"`
	PostgresUser    string        `mapstructure:"POSTGRES_USERNAME"`
	PostgresPass    string        `mapstructure:"POSTGRES_PASSWORD"`
	PostgresHost    string        `mapstructure:"POSTGRES_HOST"`
	PostgresPort    string        `mapstructure:"POSTGRES_PORT"`
	PostgresDB      string        `mapstructure:"POSTGRES_DATABASE"`
	MigrationURL    string        `mapstructure:"MIGRATION_URL"`
	DocumentRoot    string        `mapstructure:"DOCUMENT_ROOT"`
	MaxDocumentSize int64         `mapstructure:"MAX_DOCUMENT_SIZE"`
	SweepInterval   time.Duration `mapstructure:"SWEEP_INTERVAL"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	SeedUsers       string        `mapstructure:"SEED_USERS"`
}

var keys = []string{
	"SERVER_ADDRESS", "ENVIRONMENT", "LOG_LEVEL", "STORAGE_DRIVER",
	"POSTGRES_CONN", "POSTGRES_USERNAME", "POSTGRES_PASSWORD", "POSTGRES_HOST",
	"POSTGRES_PORT", "POSTGRES_DATABASE", "MIGRATION_URL", "DOCUMENT_ROOT",
	"MAX_DOCUMENT_SIZE", "SWEEP_INTERVAL", "REQUEST_TIMEOUT", "SHUTDOWN_TIMEOUT",
	"SEED_USERS",
}

// LoadConfig загружает конфигурацию из app.env в каталоге path, .env и переменных окружения
func LoadConfig(path string) (cfg Config, err error) {
	// .env необязателен
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	setDefaults(v)

	v.AutomaticEnv()
	for _, key := range keys {
		if err = v.BindEnv(key); err != nil {
			return
		}
	}

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	if err = v.Unmarshal(&cfg); err != nil {
		return
	}
	err = cfg.Validate()
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_ADDRESS", "0.0.0.0:8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORAGE_DRIVER", PostgresDriver)
	v.SetDefault("MIGRATION_URL", "file://db/migration")
	v.SetDefault("DOCUMENT_ROOT", "secured-storage")
	v.SetDefault("MAX_DOCUMENT_SIZE", 10<<20)
	v.SetDefault("SWEEP_INTERVAL", time.Minute)
	v.SetDefault("REQUEST_TIMEOUT", 5*time.Second)
	v.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)
}

// Validate проверяет согласованность конфигурации
func (c Config) Validate() error {
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.MaxDocumentSize <= 0 {
		return fmt.Errorf("MAX_DOCUMENT_SIZE must be positive, got %d", c.MaxDocumentSize)
	}

	if _, err := c.SeedUserList(); err != nil {
		return err
	}

	switch c.StorageDriver {
	case MemoryDriver:
		return nil
	case PostgresDriver:
		if c.PostgresConn == "" {
			return fmt.Errorf("POSTGRES_CONN is required for the %s driver", PostgresDriver)
		}
		return nil
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
}

// SeedUserList разбирает SEED_USERS вида "buyer-1:buyer,seller-1:seller"
func (c Config) SeedUserList() ([]models.User, error) {
	var users []models.User
	for _, entry := range strings.Split(c.SeedUsers, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		rawId, rawRole, ok := strings.Cut(entry, ":")
		id, role := strings.TrimSpace(rawId), models.Role(strings.TrimSpace(rawRole))
		if !ok || id == "" {
			return nil, fmt.Errorf("SEED_USERS entry %q must look like id:role", entry)
		}
		switch role {
		case models.Buyer, models.Seller, models.Admin:
		default:
			return nil, fmt.Errorf("SEED_USERS entry %q has unknown role %q", entry, role)
		}
		users = append(users, models.User{ID: id, Role: role})
	}
	return users, nil
}
