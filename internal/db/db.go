package db

import (
	"context"
	"fmt"

	"github.com/senyabanana/procurement-service/internal/router/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InitDb инициализирует подключение к базе данных и возвращает пул соединений.
func InitDb(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	if cfg.PostgresConn == "" {
		return nil, fmt.Errorf("database connection string POSTGRES_CONN is missing")
	}

	dbPool, err := pgxpool.New(ctx, cfg.PostgresConn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err = dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return dbPool, nil
}
