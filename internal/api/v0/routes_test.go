package v0

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuno-app/policy-catalog-server/internal/policy"
	"github.com/yuno-app/policy-catalog-server/internal/source"
	"github.com/yuno-app/policy-catalog-server/internal/store"
	"github.com/yuno-app/policy-catalog-server/internal/sync"
)

type fakeCatalog struct {
	page       *policy.Page
	record     *policy.Record
	listErr    error
	getErr     error
	lastFilter policy.Filter
}

func (f *fakeCatalog) ListPolicies(_ context.Context, filter policy.Filter) (*policy.Page, error) {
	f.lastFilter = filter
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.page, nil
}

func (f *fakeCatalog) SearchPolicies(ctx context.Context, filter policy.Filter) (*policy.Page, error) {
	return f.ListPolicies(ctx, filter)
}

func (f *fakeCatalog) GetPolicy(context.Context, string) (*policy.Record, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.record, nil
}

type fakeSyncer struct {
	result *sync.RunResult
	err    error
}

func (f *fakeSyncer) RunFullSync(context.Context) (*sync.RunResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testPage() *policy.Page {
	return &policy.Page{
		Records: []policy.Record{{
			ID:           "R2024-0001",
			Title:        "청년 주거 지원",
			Category:     "주거지원",
			Requirements: []string{},
			Benefits:     []string{},
			Tags:         []string{},
			Region:       []string{},
			Status:       policy.StatusActive,
		}},
		Pagination: policy.Pagination{Page: 1, Limit: 20, Total: 1},
	}
}

func doRequest(t *testing.T, handler http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestListPolicies(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		catalog := &fakeCatalog{page: testPage()}
		handler := Router(catalog, &fakeSyncer{})

		rec := doRequest(t, handler, http.MethodGet, "/policies?category=주거지원&age_min=19&age_max=34&page=2&limit=10")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Policies, 1)
		assert.Equal(t, "R2024-0001", resp.Policies[0].ID)

		assert.Equal(t, "주거지원", catalog.lastFilter.Category)
		assert.Equal(t, 19, catalog.lastFilter.AgeMin)
		assert.Equal(t, 34, catalog.lastFilter.AgeMax)
		assert.Equal(t, 2, catalog.lastFilter.Page)
		assert.Equal(t, 10, catalog.lastFilter.Limit)
	})

	t.Run("unknown category", func(t *testing.T) {
		t.Parallel()
		handler := Router(&fakeCatalog{page: testPage()}, &fakeSyncer{})

		rec := doRequest(t, handler, http.MethodGet, "/policies?category=우주여행")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid age", func(t *testing.T) {
		t.Parallel()
		handler := Router(&fakeCatalog{page: testPage()}, &fakeSyncer{})

		rec := doRequest(t, handler, http.MethodGet, "/policies?age_min=abc")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("source unavailable", func(t *testing.T) {
		t.Parallel()
		handler := Router(&fakeCatalog{listErr: fmt.Errorf("no cached data: %w", source.ErrUnavailable)}, &fakeSyncer{})

		rec := doRequest(t, handler, http.MethodGet, "/policies")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestSearchPolicies(t *testing.T) {
	t.Parallel()

	t.Run("requires query", func(t *testing.T) {
		t.Parallel()
		handler := Router(&fakeCatalog{page: testPage()}, &fakeSyncer{})

		rec := doRequest(t, handler, http.MethodGet, "/policies/search")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("passes search text", func(t *testing.T) {
		t.Parallel()
		catalog := &fakeCatalog{page: testPage()}
		handler := Router(catalog, &fakeSyncer{})

		rec := doRequest(t, handler, http.MethodGet, "/policies/search?q=%EC%9B%94%EC%84%B8")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "월세", catalog.lastFilter.SearchText)
	})
}

func TestGetPolicy(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		catalog := &fakeCatalog{record: &testPage().Records[0]}
		handler := Router(catalog, &fakeSyncer{})

		rec := doRequest(t, handler, http.MethodGet, "/policies/R2024-0001")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp policy.Record
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "R2024-0001", resp.ID)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		catalog := &fakeCatalog{getErr: fmt.Errorf("%w: nope", store.ErrNotFound)}
		handler := Router(catalog, &fakeSyncer{})

		rec := doRequest(t, handler, http.MethodGet, "/policies/nope")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("source unavailable", func(t *testing.T) {
		t.Parallel()
		catalog := &fakeCatalog{getErr: fmt.Errorf("policy x: %w", source.ErrUnavailable)}
		handler := Router(catalog, &fakeSyncer{})

		rec := doRequest(t, handler, http.MethodGet, "/policies/x")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestTriggerSync(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		now := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
		syncer := &fakeSyncer{result: &sync.RunResult{
			ID:         uuid.New(),
			StartedAt:  now,
			FinishedAt: now.Add(time.Minute),
			Fetched:    10,
			Inserted:   7,
			Updated:    3,
			Categories: []sync.CategoryResult{
				{Category: "주거지원", Total: 6, Inserted: 4, Updated: 2},
				{Category: "취업지원", Total: 4, Inserted: 3, Updated: 1},
			},
			CategoryErrors: []sync.CategoryError{
				{Category: "창업지원", Err: source.ErrUnavailable},
			},
		}}
		handler := Router(&fakeCatalog{}, syncer)

		rec := doRequest(t, handler, http.MethodPost, "/sync")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp SyncResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 10, resp.Fetched)
		require.Len(t, resp.Categories, 2)
		assert.Equal(t, CategorySummary{
			Category: "주거지원", Total: 6, Inserted: 4, Updated: 2,
		}, resp.Categories[0])
		assert.Equal(t, []string{"창업지원"}, resp.FailedCategories)
		assert.NotEmpty(t, resp.RunID)
	})

	t.Run("already running", func(t *testing.T) {
		t.Parallel()
		handler := Router(&fakeCatalog{}, &fakeSyncer{err: sync.ErrSyncInProgress})

		rec := doRequest(t, handler, http.MethodPost, "/sync")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

type fakeReadiness struct {
	err error
}

func (f *fakeReadiness) Ping(context.Context) error { return f.err }

func TestHealthRouter(t *testing.T) {
	t.Parallel()

	t.Run("health", func(t *testing.T) {
		t.Parallel()
		handler := HealthRouter(&fakeReadiness{})

		rec := doRequest(t, handler, http.MethodGet, "/health")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
	})

	t.Run("ready", func(t *testing.T) {
		t.Parallel()
		handler := HealthRouter(&fakeReadiness{})

		rec := doRequest(t, handler, http.MethodGet, "/readiness")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("not ready", func(t *testing.T) {
		t.Parallel()
		handler := HealthRouter(&fakeReadiness{err: fmt.Errorf("connection refused")})

		rec := doRequest(t, handler, http.MethodGet, "/readiness")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "connection refused")
	})

	t.Run("version", func(t *testing.T) {
		t.Parallel()
		handler := HealthRouter(&fakeReadiness{})

		rec := doRequest(t, handler, http.MethodGet, "/version")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp["go_version"])
		assert.NotEmpty(t, resp["platform"])
	})
}
