package sync

import (
	"time"

	"github.com/google/uuid"
)

// CategoryError records a category whose sync failed while the rest of the
// run continued.
type CategoryError struct {
	Category string
	Err      error
}

func (e CategoryError) Error() string {
	return e.Category + ": " + e.Err.Error()
}

func (e CategoryError) Unwrap() error {
	return e.Err
}

// CategoryResult holds one category's counts within a run. Errors counts
// individual items that failed to persist; a category whose pages could not
// be fetched at all additionally appears in RunResult.CategoryErrors.
type CategoryResult struct {
	Category string
	Total    int
	Inserted int
	Updated  int
	Errors   int
}

// RunResult summarizes one full sync run.
type RunResult struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time

	Fetched  int
	Inserted int
	Updated  int
	Skipped  int

	Deactivated int64

	Categories     []CategoryResult
	CategoryErrors []CategoryError
}

// Duration returns the wall-clock duration of the run.
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Success reports whether every category completed.
func (r *RunResult) Success() bool {
	return len(r.CategoryErrors) == 0
}
