package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yuno-app/policy-catalog-server/internal/db"
	"github.com/yuno-app/policy-catalog-server/internal/db/sqlc"
	"github.com/yuno-app/policy-catalog-server/internal/policy"
)

// PostgresStore implements Store on top of the sqlc query layer.
type PostgresStore struct {
	conn    *db.Connection
	queries *sqlc.Queries
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store backed by the given database connection.
func NewPostgresStore(conn *db.Connection) *PostgresStore {
	return &PostgresStore{
		conn:    conn,
		queries: conn.Queries,
	}
}

// GetByID returns a single record or ErrNotFound.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*policy.Record, error) {
	row, err := s.queries.GetPolicyByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get policy %s: %w", id, err)
	}

	rec, err := rowToRecord(row)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns the page of active records selected by the filter.
func (s *PostgresStore) List(ctx context.Context, filter policy.Filter) (*policy.Page, error) {
	//nolint:gosec // filter values are normalized small ints
	rows, err := s.queries.ListPolicies(ctx, sqlc.ListPoliciesParams{
		Category:  filter.Category,
		Search:    filter.SearchText,
		Region:    filter.Region,
		AgeMin:    int32(filter.AgeMin),
		AgeMax:    int32(filter.AgeMax),
		RowLimit:  int32(filter.Limit),
		RowOffset: int32(filter.Offset()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}

	//nolint:gosec // filter values are normalized small ints
	meta, err := s.queries.ListPoliciesMeta(ctx, sqlc.ListPoliciesMetaParams{
		Category: filter.Category,
		Search:   filter.SearchText,
		Region:   filter.Region,
		AgeMin:   int32(filter.AgeMin),
		AgeMax:   int32(filter.AgeMax),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count policies: %w", err)
	}

	records := make([]policy.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := rowToRecord(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	page := &policy.Page{
		Records: records,
		Pagination: policy.Pagination{
			Page:    filter.Page,
			Limit:   filter.Limit,
			Total:   int(meta.Total),
			HasNext: int64(filter.Offset()+len(records)) < meta.Total,
		},
	}
	if meta.LastCachedAt.Valid {
		page.LastCachedAt = meta.LastCachedAt.Time
	}
	return page, nil
}

// Upsert writes one record, replacing any existing row with the same id.
func (s *PostgresStore) Upsert(ctx context.Context, rec policy.Record) (UpsertOutcome, error) {
	params, err := recordToParams(rec)
	if err != nil {
		return OutcomeInserted, err
	}

	inserted, err := s.queries.UpsertPolicy(ctx, params)
	if err != nil {
		return OutcomeInserted, fmt.Errorf("failed to upsert policy %s: %w", rec.ID, err)
	}
	if inserted {
		return OutcomeInserted, nil
	}
	return OutcomeUpdated, nil
}

// DeactivateStale marks active records last cached before cutoff as inactive.
func (s *PostgresStore) DeactivateStale(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.queries.DeactivateStalePolicies(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate stale policies: %w", err)
	}
	return n, nil
}

// MarkEnded marks active records whose deadline passed before now as ended.
func (s *PostgresStore) MarkEnded(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.queries.MarkEndedPolicies(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark ended policies: %w", err)
	}
	return n, nil
}

// IncrementViewCount bumps the view counter for one record.
func (s *PostgresStore) IncrementViewCount(ctx context.Context, id string) error {
	if err := s.queries.IncrementPolicyViewCount(ctx, id); err != nil {
		return fmt.Errorf("failed to increment view count for %s: %w", id, err)
	}
	return nil
}

// CountByStatus returns how many records carry the given status.
func (s *PostgresStore) CountByStatus(ctx context.Context, status policy.Status) (int64, error) {
	n, err := s.queries.CountPoliciesByStatus(ctx, sqlc.PolicyStatus(status))
	if err != nil {
		return 0, fmt.Errorf("failed to count policies: %w", err)
	}
	return n, nil
}

// Ping verifies the backing database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.conn.DB.PingContext(ctx)
}
