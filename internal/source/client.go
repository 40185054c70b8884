// Package source wraps the external youth-policy open API. It is the only
// package that sees source-side field names, result codes, and pagination
// parameters; everything it returns is the loosely-typed Item that the
// normalizer converts into the canonical schema.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/yuno-app/policy-catalog-server/internal/httpclient"
)

// ErrUnavailable is wrapped by every failure of the source: network errors,
// timeouts, non-200 statuses, and non-success result codes all look the same
// to callers (category-scoped, non-fatal).
var ErrUnavailable = errors.New("policy source unavailable")

const catalogPath = "/go/ythip/getPlcy"

// Page type parameter values understood by the source API.
const (
	pageTypeList   = "1"
	pageTypeDetail = "2"
)

// Client fetches pages of policy items from the external source.
//
// A returned error always wraps ErrUnavailable; callers decide whether to
// degrade (read path) or record a category error (sync path).
type Client interface {
	// FetchPage retrieves one page of the catalog for a category. An empty
	// category fetches the unfiltered catalog.
	FetchPage(ctx context.Context, category string, page, pageSize int) (*PageResult, error)

	// FetchPolicy retrieves a single policy by its source-assigned id.
	// Returns nil (no error) when the source has no such policy.
	FetchPolicy(ctx context.Context, id string) (*Item, error)
}

type apiClient struct {
	http    httpclient.Client
	baseURL string
	apiKey  string
}

// NewClient creates a source API client. baseURL is the scheme+host of the
// source (no path); apiKey is the issued open-API key.
func NewClient(http httpclient.Client, baseURL, apiKey string) Client {
	return &apiClient{
		http:    http,
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

func (c *apiClient) FetchPage(ctx context.Context, category string, page, pageSize int) (*PageResult, error) {
	query := c.baseQuery()
	query.Set("pageType", pageTypeList)
	query.Set("pageNum", strconv.Itoa(page))
	query.Set("pageSize", strconv.Itoa(pageSize))
	if category != "" {
		query.Set("lclsfNm", category)
		if code := CategoryCode(category); code != "" {
			query.Set("bizTycdSel", code)
		}
	}

	env, err := c.get(ctx, query)
	if err != nil {
		return nil, err
	}

	result := &PageResult{Page: page}
	switch {
	case env.Result != nil:
		result.Items = env.Result.List
		if env.Result.Paging != nil {
			if n, ok := env.Result.Paging.TotalCount.Int(); ok {
				result.TotalCount = n
			}
		}
	default:
		// Legacy envelope: list and count at the top level.
		result.Items = env.LegacyList
		if n, ok := env.LegacyTotalCount.Int(); ok {
			result.TotalCount = n
		}
	}
	if result.TotalCount == 0 {
		result.TotalCount = len(result.Items)
	}

	return result, nil
}

func (c *apiClient) FetchPolicy(ctx context.Context, id string) (*Item, error) {
	query := c.baseQuery()
	query.Set("pageType", pageTypeDetail)
	query.Set("plcyNo", id)

	env, err := c.get(ctx, query)
	if err != nil {
		return nil, err
	}

	var items []Item
	if env.Result != nil {
		items = env.Result.List
	} else {
		items = env.LegacyList
	}
	if len(items) == 0 {
		return nil, nil
	}
	item := items[0]
	return &item, nil
}

func (c *apiClient) baseQuery() url.Values {
	query := url.Values{}
	query.Set("apiKeyNm", c.apiKey)
	query.Set("rtnType", "json")
	return query
}

func (c *apiClient) get(ctx context.Context, query url.Values) (*envelope, error) {
	body, err := c.http.Get(ctx, c.baseURL+catalogPath, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %w", ErrUnavailable, err)
	}

	// ResultCode 0 means the envelope predates the result-code field; only
	// an explicit non-success code is a failure.
	if env.ResultCode != 0 && env.ResultCode != resultCodeOK {
		return nil, fmt.Errorf("%w: source returned result code %d (%s)",
			ErrUnavailable, env.ResultCode, env.ResultMessage)
	}

	return &env, nil
}
