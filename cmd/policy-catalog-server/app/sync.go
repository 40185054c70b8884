package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/yuno-app/policy-catalog-server/internal/config"
	"github.com/yuno-app/policy-catalog-server/internal/db"
	"github.com/yuno-app/policy-catalog-server/internal/httpclient"
	"github.com/yuno-app/policy-catalog-server/internal/source"
	"github.com/yuno-app/policy-catalog-server/internal/store"
	catalogsync "github.com/yuno-app/policy-catalog-server/internal/sync"
	"github.com/yuno-app/policy-catalog-server/internal/telemetry"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a one-shot catalog sync",
	Long: `Fetch all configured policy categories from the source API, upsert them
into the database and deactivate records the source no longer returns.
Exits non-zero if the run fails entirely; per-category failures are logged
and reported in the summary.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	if err := syncCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
	}
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
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

	apiKey, err := cfg.Source.GetAPIKey()
	if err != nil {
		return fmt.Errorf("failed to resolve source API key: %w", err)
	}
	sourceClient := source.NewClient(
		httpclient.NewDefaultClient(cfg.Source.GetTimeout()),
		cfg.Source.BaseURL,
		apiKey,
	)

	syncMetrics, err := telemetry.NewSyncMetrics(nil)
	if err != nil {
		return fmt.Errorf("failed to create sync metrics: %w", err)
	}

	orchestrator := catalogsync.NewOrchestrator(
		store.NewPostgresStore(conn), sourceClient, syncMetrics,
		catalogsync.Config{
			Categories:     cfg.Sync.GetCategories(),
			PageSize:       cfg.Sync.GetPageSize(),
			PageCeiling:    cfg.Sync.GetPageCeiling(),
			InterPageDelay: cfg.Sync.GetInterPageDelay(),
			Retention:      cfg.Sync.GetRetention(),
		})

	result, err := orchestrator.RunFullSync(ctx)
	if result != nil {
		slog.Info("Sync run finished",
			"run_id", result.ID,
			"fetched", result.Fetched,
			"inserted", result.Inserted,
			"updated", result.Updated,
			"skipped", result.Skipped,
			"deactivated", result.Deactivated,
			"duration", result.Duration())
		for _, ce := range result.CategoryErrors {
			slog.Warn("Category failed", "category", ce.Category, "error", ce.Err)
		}
	}
	if err != nil {
		return fmt.Errorf("sync run failed: %w", err)
	}
	return nil
}
