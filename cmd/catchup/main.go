package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/mroshb/catchup/internal/config"
	"github.com/mroshb/catchup/internal/database"
	"github.com/mroshb/catchup/internal/docstore"
	"github.com/mroshb/catchup/internal/memstore"
	"github.com/mroshb/catchup/internal/repositories"
	"github.com/mroshb/catchup/internal/services"
	"github.com/mroshb/catchup/pkg/logger"
)

const usage = `usage: catchup <command> [flags]

commands:
  serve      run the HTTP API
  migrate    create or update the postgres schema
  propagate  run streak propagation for one answer
  export     write a user's friend streaks to an xlsx file
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Print(usage)
		return nil
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(cfg.LogLevel, cfg.AppEnv)
	defer logger.Sync()

	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProductionSecurity(); err != nil {
			return fmt.Errorf("production security validation failed: %w", err)
		}
		logger.Info("Production security validation passed")
	}

	command, rest := args[0], args[1:]
	switch command {
	case "serve":
		return runServe(cfg, rest)
	case "migrate":
		return runMigrate(cfg)
	case "propagate":
		return runPropagate(cfg, rest)
	case "export":
		return runExport(cfg, rest)
	}
	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", command)
}

// backend is the selected store plus its lifecycle hooks.
type backend struct {
	users       services.UserStore
	friendships services.FriendshipStore
	health      func(ctx context.Context) error
	close       func()
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		return &backend{
			users:       repositories.NewUserRepository(db),
			friendships: repositories.NewFriendRepository(db),
			health:      sqlDB.PingContext,
			close: func() {
				logger.Info("Closing database connection pool...")
				_ = sqlDB.Close()
			},
		}, nil

	case config.BackendFirestore:
		store, err := docstore.Open(ctx, cfg.FirestoreProjectID, cfg.FirebaseCredentialsFile)
		if err != nil {
			return nil, err
		}
		return &backend{
			users:       store,
			friendships: store,
			health:      store.Ping,
			close:       func() { _ = store.Close() },
		}, nil

	default:
		logger.Warn("Using in-memory store, data is lost on exit")
		store := memstore.New()
		return &backend{
			users:       store,
			friendships: store,
			close:       func() {},
		}, nil
	}
}

func runMigrate(cfg *config.Config) error {
	if cfg.StoreBackend != config.BackendPostgres {
		return fmt.Errorf("migrate only applies to the postgres backend (STORE_BACKEND=%s)", cfg.StoreBackend)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	return database.AutoMigrate(db)
}
