package app

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

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yuno-app/policy-catalog-server/internal/api"
	"github.com/yuno-app/policy-catalog-server/internal/cache"
	"github.com/yuno-app/policy-catalog-server/internal/config"
	"github.com/yuno-app/policy-catalog-server/internal/db"
	"github.com/yuno-app/policy-catalog-server/internal/httpclient"
	"github.com/yuno-app/policy-catalog-server/internal/source"
	"github.com/yuno-app/policy-catalog-server/internal/store"
	catalogsync "github.com/yuno-app/policy-catalog-server/internal/sync"
	"github.com/yuno-app/policy-catalog-server/internal/telemetry"
	"github.com/yuno-app/policy-catalog-server/internal/versions"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the policy catalog server",
	Long: `Start the policy catalog server to serve cached youth policy data.

The server requires a configuration file (--config) that specifies:
- Source API endpoint and credentials
- Database connection parameters
- Cache and sync tuning

See examples/ directory for sample configurations.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	serverRequestTimeout   = 15 * time.Second
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 20 * time.Second
	serverIdleTimeout      = 60 * time.Second

	deadlineSweepInterval = time.Hour
)

func init() {
	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		slog.Error("Failed to bind address flag", "error", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("config", serveCmd.Flags().Lookup("config")); err != nil {
		slog.Error("Failed to bind config flag", "error", err)
		os.Exit(1)
	}

	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
		os.Exit(1)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	address := viper.GetString("address")
	configPath := viper.GetString("config")

	slog.Info("Starting policy catalog server", "address", address)

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration",
		"path", configPath,
		"source", cfg.Source.BaseURL,
		"categories", len(cfg.Sync.GetCategories()))

	if cfg.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	conn, err := db.NewConnection(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			slog.Error("Error closing database connection", "error", closeErr)
		}
	}()

	catalogStore := store.NewPostgresStore(conn)

	apiKey, err := cfg.Source.GetAPIKey()
	if err != nil {
		return fmt.Errorf("failed to resolve source API key: %w", err)
	}
	sourceClient := source.NewClient(
		httpclient.NewDefaultClient(cfg.Source.GetTimeout()),
		cfg.Source.BaseURL,
		apiKey,
	)

	metricsEnabled := cfg.Telemetry != nil && cfg.Telemetry.MetricsEnabled
	provider, err := telemetry.NewProvider(ctx, metricsEnabled,
		"policy-catalog-server", versions.GetVersionInfo().Version)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := provider.Shutdown(shutdownCtx); shutdownErr != nil {
			slog.Error("Error shutting down telemetry", "error", shutdownErr)
		}
	}()

	cacheMetrics, err := telemetry.NewCacheMetrics(provider.MeterProvider)
	if err != nil {
		return fmt.Errorf("failed to create cache metrics: %w", err)
	}
	syncMetrics, err := telemetry.NewSyncMetrics(provider.MeterProvider)
	if err != nil {
		return fmt.Errorf("failed to create sync metrics: %w", err)
	}
	httpMetrics, err := telemetry.MetricsMiddleware(provider.MeterProvider)
	if err != nil {
		return fmt.Errorf("failed to create HTTP metrics middleware: %w", err)
	}

	coordinator := cache.NewCoordinator(catalogStore, sourceClient, cacheMetrics, cache.Config{
		TTL:            cfg.Cache.GetTTL(),
		ReadPageSize:   cfg.Cache.GetReadPageSize(),
		PersistQueue:   cfg.Cache.GetPersistQueue(),
		PersistWorkers: cfg.Cache.GetPersistWorkers(),
	})
	if err := coordinator.Start(ctx); err != nil {
		return fmt.Errorf("failed to start cache coordinator: %w", err)
	}
	defer coordinator.Stop()

	orchestrator := catalogsync.NewOrchestrator(catalogStore, sourceClient, syncMetrics, catalogsync.Config{
		Categories:     cfg.Sync.GetCategories(),
		PageSize:       cfg.Sync.GetPageSize(),
		PageCeiling:    cfg.Sync.GetPageCeiling(),
		InterPageDelay: cfg.Sync.GetInterPageDelay(),
		Retention:      cfg.Sync.GetRetention(),
	})

	scheduler := catalogsync.NewScheduler()
	err = scheduler.Register(catalogsync.Job{
		Name:       "catalog-sync",
		Interval:   cfg.Sync.GetInterval(),
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			result, runErr := orchestrator.RunFullSync(ctx)
			if result != nil {
				slog.Info("Catalog sync finished",
					"run_id", result.ID,
					"fetched", result.Fetched,
					"inserted", result.Inserted,
					"updated", result.Updated,
					"skipped", result.Skipped,
					"deactivated", result.Deactivated,
					"failed_categories", len(result.CategoryErrors),
					"duration", result.Duration())
			}
			return runErr
		},
	})
	if err != nil {
		return fmt.Errorf("failed to register sync job: %w", err)
	}
	err = scheduler.Register(catalogsync.Job{
		Name:     "expire-deadlines",
		Interval: deadlineSweepInterval,
		Run: func(ctx context.Context) error {
			ended, sweepErr := orchestrator.ExpireDeadlines(ctx)
			if ended > 0 {
				slog.Info("Expired policies past deadline", "count", ended)
			}
			return sweepErr
		},
	})
	if err != nil {
		return fmt.Errorf("failed to register deadline sweep job: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(
			middleware.RealIP,
			middleware.Timeout(serverRequestTimeout),
			httpMetrics,
			api.LoggingMiddleware,
		),
	}
	if provider.Registry != nil {
		serverOpts = append(serverOpts, api.WithMetricsRegistry(provider.Registry))
	}
	router := api.NewServer(coordinator, orchestrator, catalogStore, serverOpts...)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	go func() {
		slog.Info("Server listening", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}

	slog.Info("Server shutdown complete")
	return nil
}
