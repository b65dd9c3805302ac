package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/UkralStul/taskboard-comments/internal/api"
	"github.com/UkralStul/taskboard-comments/internal/comments"
	"github.com/UkralStul/taskboard-comments/internal/config"
	"github.com/UkralStul/taskboard-comments/internal/logging"
	"github.com/UkralStul/taskboard-comments/internal/observability"
	"github.com/UkralStul/taskboard-comments/internal/storage"
	"github.com/UkralStul/taskboard-comments/internal/storage/inmemory"
	"github.com/UkralStul/taskboard-comments/internal/storage/postgres"
	"github.com/UkralStul/taskboard-comments/internal/storage/sqlite"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type rootOptions struct {
	configPath  string
	storageType string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "taskboard",
		Short:        "Task management API with threaded comments",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.storageType, "storage", "", "storage type (in-memory, postgres or sqlite)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server (default)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context(), opts)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate(cmd.Context(), opts)
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Insert demo data and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSeed(cmd.Context(), opts)
			},
		},
	)
	return root
}

// loadConfig applies the --storage flag over file and environment.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.storageType != "" {
		cfg.Storage.Type = opts.storageType
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	logging.Init(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

// openStore opens the configured backend. Database backends migrate on open.
func openStore(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.Storage.Type {
	case config.StoragePostgres:
		return postgres.New(cfg.Storage.DSN, cfg.Log.Level == "debug")
	case config.StorageSQLite:
		return sqlite.New(ctx, cfg.Storage.SQLitePath)
	case config.StorageInMemory:
		return inmemory.New(), nil
	}
	return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting server", "storage", cfg.Storage.Type, "port", cfg.Server.Port)
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.Storage.Type, err)
	}
	defer store.Close()

	// An in-memory store would otherwise start empty.
	if cfg.Storage.Seed || cfg.Storage.Type == config.StorageInMemory {
		if _, err := fillWithMockData(ctx, store); err != nil {
			return err
		}
	}

	metrics := observability.NewMetrics()
	svc := comments.NewService(store, comments.NewObserver(cfg.Feed.Buffer), comments.WithMetrics(metrics))
	handler := api.NewHandler(svc, store, metrics, slog.Default(), cfg.Feed.PingInterval)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("listening", "addr", "http://localhost:"+cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runMigrate(ctx context.Context, opts *rootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if cfg.Storage.Type == config.StorageInMemory {
		return errors.New("migrate needs --storage postgres or sqlite")
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	slog.Info("schema up to date", "storage", cfg.Storage.Type)
	return store.Close()
}

func runSeed(ctx context.Context, opts *rootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	_, err = fillWithMockData(ctx, store)
	return err
}
