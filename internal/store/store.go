// Package store persists canonical policy records and serves filtered reads.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/yuno-app/policy-catalog-server/internal/policy"
)

// ErrNotFound is returned when a policy with the requested id does not exist.
var ErrNotFound = errors.New("policy not found")

// UpsertOutcome reports whether an upsert created a new row or replaced an
// existing one.
type UpsertOutcome int

const (
	// OutcomeInserted means the record did not exist before.
	OutcomeInserted UpsertOutcome = iota

	// OutcomeUpdated means an existing record was overwritten.
	OutcomeUpdated
)

// Store is the persistence boundary for policy records.
type Store interface {
	// GetByID returns a single record or ErrNotFound.
	GetByID(ctx context.Context, id string) (*policy.Record, error)

	// List returns the page of active records selected by the filter,
	// ordered by popularity then recency.
	List(ctx context.Context, filter policy.Filter) (*policy.Page, error)

	// Upsert writes one record, replacing any existing row with the same id.
	Upsert(ctx context.Context, rec policy.Record) (UpsertOutcome, error)

	// DeactivateStale marks active records last cached before cutoff as
	// inactive and returns how many were affected.
	DeactivateStale(ctx context.Context, cutoff time.Time) (int64, error)

	// MarkEnded marks active records whose deadline passed before now as
	// ended and returns how many were affected.
	MarkEnded(ctx context.Context, now time.Time) (int64, error)

	// IncrementViewCount bumps the view counter for one record. A missing
	// id is not an error.
	IncrementViewCount(ctx context.Context, id string) error

	// CountByStatus returns how many records carry the given status.
	CountByStatus(ctx context.Context, status policy.Status) (int64, error)

	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error
}
