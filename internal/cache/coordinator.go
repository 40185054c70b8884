// Package cache implements the read-through policy cache. Reads are served
// from the store while fresh; stale or missing data triggers a source fetch
// whose results are returned immediately and persisted in the background.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/yuno-app/policy-catalog-server/internal/normalize"
	"github.com/yuno-app/policy-catalog-server/internal/policy"
	"github.com/yuno-app/policy-catalog-server/internal/source"
	"github.com/yuno-app/policy-catalog-server/internal/store"
	"github.com/yuno-app/policy-catalog-server/internal/telemetry"
)

// persistTimeout bounds each background store write so a wedged database
// cannot pin a worker forever.
const persistTimeout = 30 * time.Second

// Config holds the tunables for a Coordinator.
type Config struct {
	TTL            time.Duration
	ReadPageSize   int
	PersistQueue   int
	PersistWorkers int
}

// Coordinator serves policy reads through the store with source fallback.
type Coordinator struct {
	store   store.Store
	source  source.Client
	metrics *telemetry.CacheMetrics
	cfg     Config

	queue   chan []policy.Record
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool

	now func() time.Time
}

// NewCoordinator creates a coordinator. metrics may be nil.
func NewCoordinator(st store.Store, src source.Client, metrics *telemetry.CacheMetrics, cfg Config) *Coordinator {
	return &Coordinator{
		store:   st,
		source:  src,
		metrics: metrics,
		cfg:     cfg,
		queue:   make(chan []policy.Record, cfg.PersistQueue),
		now:     time.Now,
	}
}

// Start launches the background persistence workers. It is an error to call
// Start twice without an intervening Stop.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("cache coordinator already started")
	}
	c.started = true

	for i := 0; i < c.cfg.PersistWorkers; i++ {
		c.wg.Add(1)
		go c.persistWorker(ctx)
	}

	slog.Info("Cache coordinator started",
		"workers", c.cfg.PersistWorkers,
		"queue_capacity", c.cfg.PersistQueue,
		"ttl", c.cfg.TTL)
	return nil
}

// Stop drains queued batches and waits for the workers to finish.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	c.mu.Unlock()

	close(c.queue)
	c.wg.Wait()
	slog.Info("Cache coordinator stopped")
}

// ListPolicies returns a page of policies matching the filter. Fresh store
// data is served directly; otherwise the source is consulted, its records
// are returned immediately, and persistence happens in the background. When
// the source is unavailable stale store data is served as a degraded result.
func (c *Coordinator) ListPolicies(ctx context.Context, filter policy.Filter) (*policy.Page, error) {
	filter = filter.Normalized(c.cfg.ReadPageSize)

	page, storeErr := c.store.List(ctx, filter)
	if storeErr != nil {
		slog.Warn("Store read failed, falling back to source", "error", storeErr)
	}

	if storeErr == nil && len(page.Records) > 0 && c.fresh(page.LastCachedAt) {
		c.metrics.RecordRead(ctx, telemetry.ReadOutcomeFresh)
		return page, nil
	}

	refreshed, sourceErr := c.fetchFromSource(ctx, filter)
	if sourceErr == nil {
		c.metrics.RecordRead(ctx, telemetry.ReadOutcomeRefresh)
		return refreshed, nil
	}

	// Degraded path: stale store data beats an error.
	if storeErr == nil && len(page.Records) > 0 {
		slog.Warn("Source unavailable, serving stale data",
			"error", sourceErr,
			"last_cached_at", page.LastCachedAt)
		c.metrics.RecordRead(ctx, telemetry.ReadOutcomeStale)
		return page, nil
	}

	c.metrics.RecordRead(ctx, telemetry.ReadOutcomeMiss)
	if storeErr != nil {
		return nil, fmt.Errorf("store unavailable: %w", storeErr)
	}
	return nil, fmt.Errorf("no cached data: %w", sourceErr)
}

// SearchPolicies is ListPolicies with the search term required.
func (c *Coordinator) SearchPolicies(ctx context.Context, filter policy.Filter) (*policy.Page, error) {
	if strings.TrimSpace(filter.SearchText) == "" {
		return nil, fmt.Errorf("search text is required")
	}
	return c.ListPolicies(ctx, filter)
}

// GetPolicy returns a single policy by id, bumping its view counter in the
// background. Missing records are fetched from the source before giving up.
func (c *Coordinator) GetPolicy(ctx context.Context, id string) (*policy.Record, error) {
	rec, storeErr := c.store.GetByID(ctx, id)
	if storeErr == nil && c.fresh(rec.CachedAt) {
		c.metrics.RecordRead(ctx, telemetry.ReadOutcomeFresh)
		c.bumpViewCount(id)
		return rec, nil
	}
	if storeErr != nil && !errors.Is(storeErr, store.ErrNotFound) {
		return nil, storeErr
	}

	item, sourceErr := c.source.FetchPolicy(ctx, id)
	if sourceErr == nil && item != nil {
		fetched := normalize.Normalize(*item, "", c.now())
		c.enqueue(ctx, []policy.Record{fetched})
		c.metrics.RecordRead(ctx, telemetry.ReadOutcomeRefresh)
		c.bumpViewCount(id)
		return &fetched, nil
	}

	// Stale record beats both a source error and a source miss.
	if storeErr == nil {
		c.metrics.RecordRead(ctx, telemetry.ReadOutcomeStale)
		c.bumpViewCount(id)
		return rec, nil
	}

	c.metrics.RecordRead(ctx, telemetry.ReadOutcomeMiss)
	if sourceErr != nil {
		return nil, fmt.Errorf("policy %s: %w", id, sourceErr)
	}
	return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
}

func (c *Coordinator) fresh(cachedAt time.Time) bool {
	if cachedAt.IsZero() {
		return false
	}
	return c.now().Sub(cachedAt) < c.cfg.TTL
}

// fetchFromSource pulls one page for the filter's category, normalizes it,
// and applies the filter constraints the source API cannot express.
func (c *Coordinator) fetchFromSource(ctx context.Context, filter policy.Filter) (*policy.Page, error) {
	result, err := c.source.FetchPage(ctx, filter.Category, filter.Page, filter.Limit)
	if err != nil {
		return nil, err
	}

	now := c.now()
	fetched := make([]policy.Record, 0, len(result.Items))
	for _, item := range result.Items {
		fetched = append(fetched, normalize.Normalize(item, filter.Category, now))
	}
	c.enqueue(ctx, fetched)

	matched := fetched
	total := result.TotalCount
	if filtered := applyLocalFilter(fetched, filter); len(filtered) != len(fetched) {
		// The source cannot search or filter by age and region, so the
		// reported total no longer applies.
		matched = filtered
		total = len(filtered)
	}

	return &policy.Page{
		Records: matched,
		Pagination: policy.Pagination{
			Page:    filter.Page,
			Limit:   filter.Limit,
			Total:   total,
			HasNext: result.HasMore(filter.Limit),
		},
		LastCachedAt: now,
	}, nil
}

// applyLocalFilter enforces the filter constraints that were not pushed to
// the source query.
func applyLocalFilter(records []policy.Record, filter policy.Filter) []policy.Record {
	out := make([]policy.Record, 0, len(records))
	for _, rec := range records {
		if matchesFilter(rec, filter) {
			out = append(out, rec)
		}
	}
	return out
}

func matchesFilter(rec policy.Record, filter policy.Filter) bool {
	if filter.SearchText != "" {
		needle := strings.ToLower(filter.SearchText)
		if !strings.Contains(strings.ToLower(rec.Title), needle) &&
			!strings.Contains(strings.ToLower(rec.Description), needle) &&
			!strings.Contains(strings.ToLower(rec.Content), needle) {
			return false
		}
	}
	if filter.Region != "" {
		found := false
		for _, region := range rec.Region {
			if strings.Contains(region, filter.Region) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	// Missing age information matches every age constraint.
	if rec.TargetAge != nil {
		if filter.AgeMin != 0 && rec.TargetAge.Max < filter.AgeMin {
			return false
		}
		if filter.AgeMax != 0 && rec.TargetAge.Min > filter.AgeMax {
			return false
		}
	}
	return true
}

// enqueue hands records to the persistence workers without blocking the
// read path. Full queue means the batch is dropped; the next sync run will
// repair the gap.
func (c *Coordinator) enqueue(ctx context.Context, records []policy.Record) {
	if len(records) == 0 {
		return
	}
	select {
	case c.queue <- records:
		c.metrics.RecordPersist(ctx, "queued")
	default:
		slog.Warn("Persistence queue full, dropping batch", "records", len(records))
		c.metrics.RecordPersist(ctx, "dropped")
	}
}

func (c *Coordinator) bumpViewCount(id string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := c.store.IncrementViewCount(ctx, id); err != nil {
			slog.Warn("Failed to increment view count", "policy_id", id, "error", err)
		}
	}()
}

func (c *Coordinator) persistWorker(ctx context.Context) {
	defer c.wg.Done()
	for batch := range c.queue {
		c.persistBatch(ctx, batch)
	}
}

func (c *Coordinator) persistBatch(ctx context.Context, batch []policy.Record) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	for _, rec := range batch {
		if _, err := c.store.Upsert(writeCtx, rec); err != nil {
			slog.Warn("Background persistence failed", "policy_id", rec.ID, "error", err)
		}
	}
}
