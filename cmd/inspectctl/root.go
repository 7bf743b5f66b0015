package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/set-night/apexinspect"
	"github.com/set-night/apexinspect/internal/config"
	"github.com/set-night/apexinspect/internal/repository"
	"github.com/set-night/apexinspect/internal/service"
	"github.com/set-night/apexinspect/internal/storage"
	"github.com/spf13/cobra"
)

var (
	cfg  *config.Config
	pool *pgxpool.Pool
)

var rootCmd = &cobra.Command{
	Use:           "inspectctl",
	Short:         "Administer Apex inspection sessions",
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.SlogLevel(),
		})))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if pool != nil {
			pool.Close()
		}
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, sessionsCmd, historyCmd, exportCmd, deleteCmd)
}

func migrate() error {
	migrationsFS, err := fs.Sub(apexinspect.MigrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	return repository.RunMigrations(cfg.DatabaseURL, migrationsFS)
}

// openSessions connects to the database and the configured image store.
func openSessions(ctx context.Context) (*service.SessionService, error) {
	var err error
	pool, err = repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	images, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open image store: %w", err)
	}
	return service.NewSessionService(pool, repository.New(pool), images), nil
}
