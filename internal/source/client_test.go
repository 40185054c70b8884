package source_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuno-app/policy-catalog-server/internal/httpclient"
	"github.com/yuno-app/policy-catalog-server/internal/source"
)

func newTestServer(handler http.Handler) *httptest.Server {
	server := httptest.NewServer(handler)
	server.Config.SetKeepAlivesEnabled(false)
	return server
}

func newClient(t *testing.T, handler http.Handler) (source.Client, *url.Values) {
	t.Helper()

	var captured url.Values
	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.URL.Query()
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)

	client := source.NewClient(httpclient.NewDefaultClient(5*time.Second), server.URL, "test-api-key")
	return client, &captured
}

func TestFetchPage(t *testing.T) {
	t.Parallel()

	responseBody := `{
		"resultCode": 200,
		"resultMessage": "OK",
		"result": {
			"pagging": {"totCount": 123, "pageNum": 1, "pageSize": 2},
			"youthPolicyList": [
				{"plcyNo": "R2024-001", "plcyNm": "청년 월세 지원", "lclsfNm": "주거지원", "sprtTrgtMinAge": "19", "sprtTrgtMaxAge": 34},
				{"plcyNo": "R2024-002", "plcyNm": "취업 장려금", "lclsfNm": "취업지원"}
			]
		}
	}`

	client, query := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(responseBody))
	}))

	result, err := client.FetchPage(context.Background(), "주거지원", 1, 2)

	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, 123, result.TotalCount)
	assert.True(t, result.HasMore(2))
	assert.False(t, result.HasMore(50))

	assert.Equal(t, "R2024-001", result.Items[0].ID())
	assert.Equal(t, "청년 월세 지원", result.Items[0].PolicyName)
	minAge, ok := result.Items[0].MinAge.Int()
	require.True(t, ok)
	assert.Equal(t, 19, minAge)
	maxAge, ok := result.Items[0].MaxAge.Int()
	require.True(t, ok)
	assert.Equal(t, 34, maxAge)

	// Raw payload is retained verbatim per item.
	assert.Contains(t, string(result.Items[0].Raw), `"plcyNo": "R2024-001"`)

	// The source sees the API key, category name, and mapped category code.
	assert.Equal(t, "test-api-key", query.Get("apiKeyNm"))
	assert.Equal(t, "주거지원", query.Get("lclsfNm"))
	assert.Equal(t, "023040", query.Get("bizTycdSel"))
	assert.Equal(t, "1", query.Get("pageNum"))
	assert.Equal(t, "2", query.Get("pageSize"))
	assert.Equal(t, "json", query.Get("rtnType"))
}

func TestFetchPage_LegacyEnvelope(t *testing.T) {
	t.Parallel()

	// Older source versions return the list at the top level and a single
	// item as a bare object rather than a one-element array.
	responseBody := `{
		"totalCount": "1",
		"youthPolicy": {"bizId": "L-77", "polyBizSjnm": "창업 인큐베이팅"}
	}`

	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(responseBody))
	}))

	result, err := client.FetchPage(context.Background(), "창업지원", 1, 50)

	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, 1, result.TotalCount)
	assert.Equal(t, "L-77", result.Items[0].ID())
	assert.Equal(t, "창업 인큐베이팅", result.Items[0].LegacyTitle)
}

func TestFetchPage_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		handler  http.HandlerFunc
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
		},
		{
			name: "non-success result code",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"resultCode": 500, "resultMessage": "INTERNAL ERROR"}`))
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`<html>not json</html>`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, _ := newClient(t, tt.handler)

			_, err := client.FetchPage(context.Background(), "문화", 1, 50)

			require.Error(t, err)
			require.ErrorIs(t, err, source.ErrUnavailable)
		})
	}
}

func TestFetchPolicy(t *testing.T) {
	t.Parallel()

	client, query := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
			"resultCode": 200,
			"result": {"youthPolicyList": [{"plcyNo": "R2024-009", "plcyNm": "문화누리카드"}]}
		}`))
	}))

	item, err := client.FetchPolicy(context.Background(), "R2024-009")

	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "R2024-009", item.ID())
	assert.Equal(t, "R2024-009", query.Get("plcyNo"))
	assert.Equal(t, "2", query.Get("pageType"))
}

func TestFetchPolicy_NotFound(t *testing.T) {
	t.Parallel()

	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"resultCode": 200, "result": {"youthPolicyList": []}}`))
	}))

	item, err := client.FetchPolicy(context.Background(), "missing")

	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestCategoryCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "023010", source.CategoryCode("장학금"))
	assert.Equal(t, "023070", source.CategoryCode("참여권리"))
	assert.Equal(t, "", source.CategoryCode("임의카테고리"))
}
