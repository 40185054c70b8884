// Package v0 provides the REST API handlers for the policy catalog.
package v0

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yuno-app/policy-catalog-server/internal/policy"
	"github.com/yuno-app/policy-catalog-server/internal/source"
	"github.com/yuno-app/policy-catalog-server/internal/store"
	"github.com/yuno-app/policy-catalog-server/internal/sync"
	"github.com/yuno-app/policy-catalog-server/internal/versions"
)

// CatalogService is the read surface the handlers depend on.
type CatalogService interface {
	ListPolicies(ctx context.Context, filter policy.Filter) (*policy.Page, error)
	SearchPolicies(ctx context.Context, filter policy.Filter) (*policy.Page, error)
	GetPolicy(ctx context.Context, id string) (*policy.Record, error)
}

// SyncService triggers catalog synchronization runs.
type SyncService interface {
	RunFullSync(ctx context.Context) (*sync.RunResult, error)
}

// ReadinessChecker reports whether the persistence layer is reachable.
type ReadinessChecker interface {
	Ping(ctx context.Context) error
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListResponse is the paged policy listing payload
type ListResponse struct {
	Policies   []policy.Record   `json:"policies"`
	Pagination policy.Pagination `json:"pagination"`
}

// CategorySummary is one category's share of a sync run
type CategorySummary struct {
	Category string `json:"category"`
	Total    int    `json:"total"`
	Inserted int    `json:"inserted"`
	Updated  int    `json:"updated"`
	Errors   int    `json:"errors"`
}

// SyncResponse summarizes a completed sync run
type SyncResponse struct {
	RunID            string            `json:"run_id"`
	StartedAt        string            `json:"started_at"`
	FinishedAt       string            `json:"finished_at"`
	Fetched          int               `json:"fetched"`
	Inserted         int               `json:"inserted"`
	Updated          int               `json:"updated"`
	Skipped          int               `json:"skipped"`
	Deactivated      int64             `json:"deactivated"`
	Categories       []CategorySummary `json:"categories"`
	FailedCategories []string          `json:"failed_categories"`
}

// Routes defines the routes for the catalog API with dependency injection
type Routes struct {
	catalog CatalogService
	syncer  SyncService
}

// NewRoutes creates a new Routes instance with the provided services
func NewRoutes(catalog CatalogService, syncer SyncService) *Routes {
	return &Routes{
		catalog: catalog,
		syncer:  syncer,
	}
}

// Router creates a new router for the catalog API
func Router(catalog CatalogService, syncer SyncService) http.Handler {
	routes := NewRoutes(catalog, syncer)

	r := chi.NewRouter()

	r.Get("/policies", routes.listPolicies)
	r.Get("/policies/search", routes.searchPolicies)
	r.Get("/policies/{id}", routes.getPolicy)
	r.Post("/sync", routes.triggerSync)

	return r
}

// listPolicies handles GET /api/v0/policies
func (rr *Routes) listPolicies(w http.ResponseWriter, r *http.Request) {
	filter, ok := rr.parseFilter(w, r)
	if !ok {
		return
	}
	rr.servePage(w, r, filter, rr.catalog.ListPolicies)
}

// searchPolicies handles GET /api/v0/policies/search
func (rr *Routes) searchPolicies(w http.ResponseWriter, r *http.Request) {
	filter, ok := rr.parseFilter(w, r)
	if !ok {
		return
	}
	filter.SearchText = r.URL.Query().Get("q")
	if filter.SearchText == "" {
		rr.writeErrorResponse(w, "query parameter 'q' is required", http.StatusBadRequest)
		return
	}
	rr.servePage(w, r, filter, rr.catalog.SearchPolicies)
}

func (rr *Routes) servePage(
	w http.ResponseWriter,
	r *http.Request,
	filter policy.Filter,
	list func(context.Context, policy.Filter) (*policy.Page, error),
) {
	page, err := list(r.Context(), filter)
	if err != nil {
		slog.Error("Failed to list policies", "error", err)
		if errors.Is(err, source.ErrUnavailable) {
			rr.writeErrorResponse(w, "policy data temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		rr.writeErrorResponse(w, "failed to list policies", http.StatusInternalServerError)
		return
	}

	rr.writeJSONResponse(w, ListResponse{
		Policies:   page.Records,
		Pagination: page.Pagination,
	})
}

// getPolicy handles GET /api/v0/policies/{id}
func (rr *Routes) getPolicy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := rr.catalog.GetPolicy(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			rr.writeErrorResponse(w, "policy not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, source.ErrUnavailable) {
			rr.writeErrorResponse(w, "policy data temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		slog.Error("Failed to get policy", "policy_id", id, "error", err)
		rr.writeErrorResponse(w, "failed to get policy", http.StatusInternalServerError)
		return
	}

	rr.writeJSONResponse(w, rec)
}

// triggerSync handles POST /api/v0/sync
func (rr *Routes) triggerSync(w http.ResponseWriter, r *http.Request) {
	result, err := rr.syncer.RunFullSync(r.Context())
	if err != nil {
		if errors.Is(err, sync.ErrSyncInProgress) {
			rr.writeErrorResponse(w, "sync already in progress", http.StatusConflict)
			return
		}
		slog.Error("Manual sync failed", "error", err)
		rr.writeErrorResponse(w, "sync failed", http.StatusInternalServerError)
		return
	}

	failed := make([]string, 0, len(result.CategoryErrors))
	for _, ce := range result.CategoryErrors {
		failed = append(failed, ce.Category)
	}

	categories := make([]CategorySummary, 0, len(result.Categories))
	for _, cr := range result.Categories {
		categories = append(categories, CategorySummary{
			Category: cr.Category,
			Total:    cr.Total,
			Inserted: cr.Inserted,
			Updated:  cr.Updated,
			Errors:   cr.Errors,
		})
	}

	rr.writeJSONResponse(w, SyncResponse{
		RunID:            result.ID.String(),
		StartedAt:        result.StartedAt.Format(timeFormat),
		FinishedAt:       result.FinishedAt.Format(timeFormat),
		Fetched:          result.Fetched,
		Inserted:         result.Inserted,
		Updated:          result.Updated,
		Skipped:          result.Skipped,
		Deactivated:      result.Deactivated,
		Categories:       categories,
		FailedCategories: failed,
	})
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

// parseFilter extracts the shared query parameters. It writes a 400 response
// and returns ok=false on invalid input.
func (rr *Routes) parseFilter(w http.ResponseWriter, r *http.Request) (policy.Filter, bool) {
	q := r.URL.Query()

	filter := policy.Filter{
		Category: q.Get("category"),
		Region:   q.Get("region"),
	}

	if filter.Category != "" && !policy.ValidCategory(filter.Category) {
		rr.writeErrorResponse(w, "unknown category: "+filter.Category, http.StatusBadRequest)
		return policy.Filter{}, false
	}

	for param, dst := range map[string]*int{
		"age_min": &filter.AgeMin,
		"age_max": &filter.AgeMax,
		"page":    &filter.Page,
		"limit":   &filter.Limit,
	} {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			rr.writeErrorResponse(w, "invalid "+param+": "+raw, http.StatusBadRequest)
			return policy.Filter{}, false
		}
		*dst = n
	}

	return filter, true
}

// HealthRouter creates a router for health check endpoints
func HealthRouter(readiness ReadinessChecker) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(readiness))
	r.Get("/version", versionHandler)

	return r
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// readinessHandler handles readiness check requests
func readinessHandler(readiness ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := readiness.Ping(r.Context()); err != nil {
			errorResp := ErrorResponse{
				Error: "catalog not ready: " + err.Error(),
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			if encodeErr := json.NewEncoder(w).Encode(errorResp); encodeErr != nil {
				slog.Error("Failed to encode readiness error response", "error", encodeErr)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	}
}

// versionHandler handles version information requests
func versionHandler(w http.ResponseWriter, _ *http.Request) {
	info := versions.GetVersionInfo()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(info); err != nil {
		slog.Error("Failed to encode version info", "error", err)
	}
}

// writeJSONResponse writes a JSON response with the given data
func (*Routes) writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// writeErrorResponse writes a standardized error response
func (*Routes) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	errorResp := ErrorResponse{
		Error: message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(errorResp); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}
