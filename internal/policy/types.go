// Package policy defines the canonical policy record and related types.
// Everything downstream of the source adapter speaks this schema; external
// API field names never leak past internal/source and internal/normalize.
package policy

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle status of a policy record.
type Status string

const (
	// StatusActive marks a policy that was observed in a recent sync pass.
	StatusActive Status = "active"

	// StatusInactive marks a policy that has not been re-observed within the
	// retention window. Only the orchestrator's deactivation pass sets this.
	StatusInactive Status = "inactive"

	// StatusEnded marks a policy whose deadline or end date has passed.
	StatusEnded Status = "ended"
)

// Categories is the fixed, ordered list of catalog categories. The sync
// orchestrator iterates them in this order.
var Categories = []string{
	"장학금",
	"창업지원",
	"취업지원",
	"주거지원",
	"생활복지",
	"문화",
	"참여권리",
}

// ValidCategory reports whether category is one of the canonical categories.
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// AgeRange is an inclusive age bracket. Values are carried as the source
// reports them; no clamping or min/max reordering is applied.
type AgeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Record is the canonical, store-resident representation of a policy.
// Optional scalar fields are pointers; list fields are always non-nil
// (empty slice when the source supplies nothing).
type Record struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Content     string `json:"content"`

	Deadline  *time.Time `json:"deadline,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	ApplicationURL string `json:"application_url,omitempty"`

	Requirements []string `json:"requirements"`
	Benefits     []string `json:"benefits"`
	Tags         []string `json:"tags"`
	Region       []string `json:"region"`

	TargetAge *AgeRange `json:"target_age,omitempty"`

	Status          Status  `json:"status"`
	PopularityScore float64 `json:"popularity_score"`
	ViewCount       int     `json:"view_count"`

	CachedAt  time.Time `json:"cached_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// RawData holds the original source item verbatim so future normalizer
	// versions can recover fields without re-fetching.
	RawData json.RawMessage `json:"raw_data,omitempty"`
}

// Filter selects records from the store. Zero values mean "no constraint".
type Filter struct {
	Category   string
	SearchText string
	Region     string
	AgeMin     int
	AgeMax     int
	Page       int
	Limit      int
}

// Normalized returns a copy of the filter with page/limit defaults applied.
func (f Filter) Normalized(defaultLimit int) Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultLimit
	}
	return f
}

// Offset returns the row offset implied by the filter's page and limit.
func (f Filter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Pagination describes the page of a List/Search response.
type Pagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasNext bool `json:"hasNext"`
}

// Page is a page of records plus pagination metadata. LastCachedAt is the
// most recent cached_at among ALL records matching the filter (not just the
// returned page); the zero value means nothing matched.
type Page struct {
	Records      []Record   `json:"records"`
	Pagination   Pagination `json:"pagination"`
	LastCachedAt time.Time  `json:"-"`
}
