package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/senyabanana/procurement-service/internal/db"
	"github.com/senyabanana/procurement-service/internal/handlers"
	"github.com/senyabanana/procurement-service/internal/logger"
	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/repository"
	"github.com/senyabanana/procurement-service/internal/repository/memory"
	"github.com/senyabanana/procurement-service/internal/router"
	"github.com/senyabanana/procurement-service/internal/router/config"
	"github.com/senyabanana/procurement-service/internal/scheduler"
	"github.com/senyabanana/procurement-service/internal/services"
	"github.com/senyabanana/procurement-service/internal/storage"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// repositories - набор хранилищ выбранного драйвера.
type repositories struct {
	rfqs         repository.RFQRepository
	bids         repository.BidRepository
	users        repository.UserRepository
	transactions repository.TransactionRepository
	tx           repository.Transactor
	seed         func(ctx context.Context, user models.User) error
	close        func()
}

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal("cannot load config:", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatal("cannot create logger:", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := openRepositories(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("error initializing storage", zap.Error(err))
	}
	defer repos.close()

	if err := seedUsers(ctx, cfg, repos, zapLogger); err != nil {
		zapLogger.Fatal("failed to seed users", zap.Error(err))
	}

	docs := storage.NewFileStore(afero.NewBasePathFs(afero.NewOsFs(), cfg.DocumentRoot), cfg.MaxDocumentSize, zapLogger)

	transactionService := services.NewTransactionService(repos.transactions, repos.bids, repos.users, zapLogger)
	award := services.NewAwardCoordinator(repos.rfqs, repos.bids, repos.tx, transactionService, zapLogger)
	rfqService := services.NewRFQService(repos.rfqs, repos.bids, repos.users, repos.tx, docs, zapLogger)
	bidService := services.NewBidService(repos.rfqs, repos.bids, repos.users, repos.tx, docs, award, zapLogger)

	rfqHandler := handlers.NewRFQHandler(rfqService, zapLogger, cfg.RequestTimeout, cfg.MaxDocumentSize)
	bidHandler := handlers.NewBidHandler(bidService, zapLogger, cfg.RequestTimeout, cfg.MaxDocumentSize)
	transactionHandler := handlers.NewTransactionHandler(transactionService, zapLogger, cfg.RequestTimeout)

	routes := router.InitRoutes(rfqHandler, bidHandler, transactionHandler, zapLogger)

	sweeper := scheduler.NewScheduler(rfqService, cfg.SweepInterval, zapLogger)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Run(ctx)
	}()

	server := &http.Server{Addr: cfg.ServerAddress, Handler: routes}
	go func() {
		zapLogger.Info("server is listening", zap.String("address", cfg.ServerAddress))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zapLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server shutdown failed", zap.Error(err))
	}
	<-sweepDone
}

func openRepositories(ctx context.Context, cfg config.Config, zapLogger *zap.Logger) (*repositories, error) {
	if cfg.StorageDriver == config.MemoryDriver {
		store := memory.NewStore()
		zapLogger.Warn("using in-memory storage, data is lost on restart")
		return &repositories{
			rfqs:         store.RFQs(),
			bids:         store.Bids(),
			users:        store.Users(),
			transactions: store.Transactions(),
			tx:           store,
			seed:         store.AddUser,
			close:        func() {},
		}, nil
	}

	if err := runDBMigration(cfg.MigrationURL, cfg.PostgresConn, zapLogger); err != nil {
		return nil, err
	}

	dbPool, err := db.InitDb(ctx, cfg)
	if err != nil {
		return nil, err
	}
	users := repository.NewPostgresUserRepository(dbPool)
	return &repositories{
		rfqs:         repository.NewPostgresRFQRepository(dbPool),
		bids:         repository.NewPostgresBidRepository(dbPool),
		users:        users,
		transactions: repository.NewPostgresTransactionRepository(dbPool),
		tx:           db.NewTransactor(dbPool),
		seed:         users.CreateUser,
		close:        dbPool.Close,
	}, nil
}

// seedUsers заводит пользователей из SEED_USERS; уже существующие пропускаются.
func seedUsers(ctx context.Context, cfg config.Config, repos *repositories, zapLogger *zap.Logger) error {
	users, err := cfg.SeedUserList()
	if err != nil {
		return err
	}
	created := 0
	for _, user := range users {
		err := repos.seed(ctx, user)
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		if err != nil {
			return err
		}
		created++
	}
	if len(users) > 0 {
		zapLogger.Info("users seeded", zap.Int("created", created), zap.Int("configured", len(users)))
	}
	return nil
}

func runDBMigration(migrationURL string, dbSource string, zapLogger *zap.Logger) error {
	migration, err := migrate.New(migrationURL, dbSource)
	if err != nil {
		return err
	}

	if err = migration.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	zapLogger.Info("db migrated successfully")
	return nil
}
