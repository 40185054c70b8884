package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuno-app/policy-catalog-server/internal/policy"
	"github.com/yuno-app/policy-catalog-server/internal/sync"
)

type stubServices struct{}

func (stubServices) ListPolicies(context.Context, policy.Filter) (*policy.Page, error) {
	return &policy.Page{Records: []policy.Record{}}, nil
}

func (stubServices) SearchPolicies(context.Context, policy.Filter) (*policy.Page, error) {
	return &policy.Page{Records: []policy.Record{}}, nil
}

func (stubServices) GetPolicy(context.Context, string) (*policy.Record, error) {
	return &policy.Record{ID: "p1"}, nil
}

func (stubServices) RunFullSync(context.Context) (*sync.RunResult, error) {
	return &sync.RunResult{}, nil
}

func (stubServices) Ping(context.Context) error { return nil }

func get(t *testing.T, handler http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestNewServerRoutes(t *testing.T) {
	t.Parallel()

	svc := stubServices{}
	srv := NewServer(svc, svc, svc)

	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/readiness", http.StatusOK},
		{"/version", http.StatusOK},
		{"/api/v0/policies", http.StatusOK},
		{"/api/v0/policies/p1", http.StatusOK},
		{"/metrics", http.StatusNotFound},
		{"/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			rec := get(t, srv, tt.path)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestNewServerMetricsEndpoint(t *testing.T) {
	t.Parallel()

	svc := stubServices{}
	registry := prometheus.NewRegistry()
	srv := NewServer(svc, svc, svc, WithMetricsRegistry(registry))

	rec := get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWithMiddlewares(t *testing.T) {
	t.Parallel()

	svc := stubServices{}
	called := false
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			next.ServeHTTP(w, r)
		})
	}
	srv := NewServer(svc, svc, svc, WithMiddlewares(mw))

	rec := get(t, srv, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}
