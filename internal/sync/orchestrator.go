// Package sync implements full catalog synchronization against the upstream
// policy API: page-walking every category, normalizing and upserting each
// item, then retiring records the source no longer reports.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yuno-app/policy-catalog-server/internal/normalize"
	"github.com/yuno-app/policy-catalog-server/internal/source"
	"github.com/yuno-app/policy-catalog-server/internal/store"
	"github.com/yuno-app/policy-catalog-server/internal/telemetry"
)

// ErrSyncInProgress is returned when a run is requested while another run
// holds the guard.
var ErrSyncInProgress = errors.New("sync already in progress")

// staleRunTimeout is how long a run may hold the guard before a new run is
// allowed to steal it. Protects against a run that died without releasing.
const staleRunTimeout = 30 * time.Minute

// Config holds the tunables for the orchestrator.
type Config struct {
	Categories     []string
	PageSize       int
	PageCeiling    int
	InterPageDelay time.Duration
	Retention      time.Duration
}

// Orchestrator drives full sync runs and lifecycle passes over the catalog.
type Orchestrator struct {
	store   store.Store
	source  source.Client
	metrics *telemetry.SyncMetrics
	cfg     Config

	mu        sync.Mutex
	running   bool
	startedAt time.Time

	now func() time.Time
}

// NewOrchestrator creates an orchestrator. metrics may be nil.
func NewOrchestrator(st store.Store, src source.Client, metrics *telemetry.SyncMetrics, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:   st,
		source:  src,
		metrics: metrics,
		cfg:     cfg,
		now:     time.Now,
	}
}

// RunFullSync walks every configured category, upserts what the source
// reports, and deactivates records unseen for longer than the retention
// window. A failing category is recorded and the run continues; only a
// cancelled context aborts the run. Concurrent runs are rejected with
// ErrSyncInProgress.
func (o *Orchestrator) RunFullSync(ctx context.Context) (*RunResult, error) {
	if err := o.acquireRunGuard(); err != nil {
		return nil, err
	}
	defer o.releaseRunGuard()

	result := &RunResult{
		ID:        uuid.New(),
		StartedAt: o.now(),
	}

	slog.Info("Starting full catalog sync",
		"run_id", result.ID,
		"categories", len(o.cfg.Categories))

	for _, category := range o.cfg.Categories {
		if err := ctx.Err(); err != nil {
			result.FinishedAt = o.now()
			return result, fmt.Errorf("sync aborted: %w", err)
		}

		if err := o.syncCategory(ctx, category, result); err != nil {
			slog.Error("Category sync failed",
				"run_id", result.ID,
				"category", category,
				"error", err)
			result.CategoryErrors = append(result.CategoryErrors, CategoryError{
				Category: category,
				Err:      err,
			})
		}
	}

	// Retire records the source stopped reporting.
	cutoff := o.now().Add(-o.cfg.Retention)
	deactivated, err := o.store.DeactivateStale(ctx, cutoff)
	if err != nil {
		slog.Error("Deactivation pass failed", "run_id", result.ID, "error", err)
	} else {
		result.Deactivated = deactivated
	}

	result.FinishedAt = o.now()
	o.recordRunMetrics(ctx, result)

	slog.Info("Full catalog sync finished",
		"run_id", result.ID,
		"duration", result.Duration(),
		"fetched", result.Fetched,
		"inserted", result.Inserted,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"deactivated", result.Deactivated,
		"failed_categories", len(result.CategoryErrors))

	return result, nil
}

// ExpireDeadlines marks active records whose deadline has passed as ended
// and returns how many changed.
func (o *Orchestrator) ExpireDeadlines(ctx context.Context) (int64, error) {
	ended, err := o.store.MarkEnded(ctx, o.now())
	if err != nil {
		return 0, fmt.Errorf("deadline expiry failed: %w", err)
	}
	if ended > 0 {
		slog.Info("Expired policies past their deadline", "ended", ended)
	}
	return ended, nil
}

func (o *Orchestrator) acquireRunGuard() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running && o.now().Sub(o.startedAt) < staleRunTimeout {
		return ErrSyncInProgress
	}
	if o.running {
		slog.Warn("Stealing sync run guard from stale run", "held_since", o.startedAt)
	}
	o.running = true
	o.startedAt = o.now()
	return nil
}

func (o *Orchestrator) releaseRunGuard() {
	o.mu.Lock()
	o.running = false
	o.mu.Unlock()
}

// syncCategory pages through one category until the source reports no more
// items or the page ceiling is reached. Individual malformed items are
// skipped, not fatal.
func (o *Orchestrator) syncCategory(ctx context.Context, category string, result *RunResult) error {
	cr := CategoryResult{Category: category}
	defer func() {
		result.Categories = append(result.Categories, cr)
		slog.Info("Category sync finished",
			"category", category,
			"total", cr.Total,
			"inserted", cr.Inserted,
			"updated", cr.Updated,
			"errors", cr.Errors)
	}()

	for page := 1; page <= o.cfg.PageCeiling; page++ {
		pageResult, err := o.source.FetchPage(ctx, category, page, o.cfg.PageSize)
		if err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}

		now := o.now()
		for _, item := range pageResult.Items {
			result.Fetched++
			cr.Total++
			rec := normalize.Normalize(item, category, now)

			outcome, err := o.store.Upsert(ctx, rec)
			if err != nil {
				slog.Warn("Skipping policy that failed to persist",
					"category", category,
					"policy_id", rec.ID,
					"error", err)
				result.Skipped++
				cr.Errors++
				continue
			}
			if outcome == store.OutcomeInserted {
				result.Inserted++
				cr.Inserted++
			} else {
				result.Updated++
				cr.Updated++
			}
		}

		if !pageResult.HasMore(o.cfg.PageSize) {
			break
		}
		if err := sleepCtx(ctx, o.cfg.InterPageDelay); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) recordRunMetrics(ctx context.Context, result *RunResult) {
	o.metrics.RecordSyncDuration(ctx, result.Duration(), result.Success())
	o.metrics.RecordSynced(ctx, "inserted", int64(result.Inserted))
	o.metrics.RecordSynced(ctx, "updated", int64(result.Updated))

	active, err := o.store.CountByStatus(ctx, "active")
	if err == nil {
		o.metrics.RecordActiveTotal(ctx, active)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
