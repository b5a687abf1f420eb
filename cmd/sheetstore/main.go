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
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ryanbastic/go-sheetstore/internal/api"
	"github.com/ryanbastic/go-sheetstore/internal/blob"
	"github.com/ryanbastic/go-sheetstore/internal/config"
	"github.com/ryanbastic/go-sheetstore/internal/export"
	"github.com/ryanbastic/go-sheetstore/internal/metrics"
	"github.com/ryanbastic/go-sheetstore/internal/notify"
	"github.com/ryanbastic/go-sheetstore/internal/spreadsheet"
	"github.com/ryanbastic/go-sheetstore/internal/storage"
	"github.com/spf13/cobra"
)

var (
	envFile string
	rootCmd = &cobra.Command{
		Use:          "sheetstore",
		Short:        "Versioned spreadsheet service with point-in-time exports",
		SilenceUsage: true,
	}
)

func main() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file read before the environment")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context())
		},
	})

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	return cfg, logger, nil
}

// connect opens the pool and pings it, retrying while the database comes up.
func connect(ctx context.Context, cfg config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.DBConnectBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(cfg.DBConnectAttempts-1)), ctx)

	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		err := pool.Ping(ctx)
		if err != nil {
			logger.Warn("database not ready", "attempt", attempt, "error", err)
		}
		return err
	}, policy)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database after %d attempts: %w", attempt, err)
	}
	logger.Info("connected to database")
	return pool, nil
}

func runMigrate(ctx context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if cfg.UseMemoryStore() {
		return errors.New("migrate needs SHEETSTORE_DATABASE_URL")
	}
	pool, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := storage.RunMigrations(ctx, pool); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("migrations complete")
	return nil
}

func runServe(ctx context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Storage
	var (
		store    storage.Store
		backends = map[string]api.Pinger{}
	)
	if cfg.UseMemoryStore() {
		mem, err := storage.NewMemoryStore()
		if err != nil {
			return fmt.Errorf("memory store: %w", err)
		}
		logger.Warn("no database configured, using in-memory store")
		store = mem
		backends["memory"] = mem
	} else {
		pool, err := connect(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := storage.RunMigrations(ctx, pool); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("migrations complete")

		prometheus.MustRegister(metrics.NewPoolCollector(pool))
		pg := storage.NewPostgresStore(pool, cfg.QueryTimeout)
		store = pg
		backends["postgres"] = pg
	}

	// Export providers
	var blobs blob.Store
	artifactsDir := ""
	if cfg.BlobUploadURL != "" {
		blobs = blob.NewHTTPStore(cfg.BlobUploadURL, cfg.BlobBaseURL, cfg.ExportTimeout)
	} else {
		fs, err := blob.NewFileStore(cfg.BlobDir, cfg.BlobBaseURL)
		if err != nil {
			return err
		}
		blobs = fs
		artifactsDir = cfg.BlobDir
	}

	registry := export.NewRegistry(cfg.ExportTimeout, cfg.BreakerMaxFailures, cfg.BreakerResetTimeout, logger)
	registry.Register(export.NewExcelProvider(blobs))
	registry.Register(export.NewGoogleSheetsProvider(export.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
	}))
	logger.Info("export providers registered", "providers", registry.Names())

	notifier := notify.NewNotifier(
		cfg.WebhookEndpoints,
		notify.NewRPCClient(cfg.WebhookRetryMax, cfg.WebhookRetryBackoff, cfg.WebhookTimeout),
		logger,
	)

	svc := spreadsheet.NewService(store, registry, logger,
		spreadsheet.WithConcurrency(cfg.InsertConcurrency),
		spreadsheet.WithNotifier(notifier),
	)
	health := api.NewHealthHandler(backends, registry, logger)

	// Start HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewServer(logger, svc, health, api.ServerOptions{ArtifactsDir: artifactsDir}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		logger.Info("shutting down...")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	if err := notifier.Wait(shutdownCtx); err != nil {
		logger.Warn("pending notifications dropped", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
