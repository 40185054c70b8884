package store

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuno-app/policy-catalog-server/internal/db/sqlc"
	"github.com/yuno-app/policy-catalog-server/internal/policy"
)

func TestRecordToParams(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	deadline := now.AddDate(0, 1, 0)

	rec := policy.Record{
		ID:             "R2024-0001",
		Title:          "청년 주거 지원",
		Category:       "주거지원",
		Deadline:       &deadline,
		ApplicationURL: "https://example.go.kr",
		Requirements:   []string{"무주택자"},
		Benefits:       []string{},
		Tags:           []string{"주거", "월세"},
		Region:         []string{"서울특별시"},
		TargetAge:      &policy.AgeRange{Min: 19, Max: 34},
		Status:         policy.StatusActive,
		ViewCount:      7,
		CachedAt:       now,
		UpdatedAt:      now,
		RawData:        json.RawMessage(`{"plcyNo":"R2024-0001"}`),
	}

	params, err := recordToParams(rec)
	require.NoError(t, err)

	assert.Equal(t, "R2024-0001", params.ID)
	assert.Equal(t, sqlc.PolicyStatusActive, params.Status)
	assert.True(t, params.Deadline.Valid)
	assert.Equal(t, deadline, params.Deadline.Time)
	assert.False(t, params.StartDate.Valid)
	assert.JSONEq(t, `["무주택자"]`, string(params.Requirements))
	assert.JSONEq(t, `[]`, string(params.Benefits))
	assert.JSONEq(t, `{"min":19,"max":34}`, string(params.TargetAge))
	assert.Equal(t, int32(7), params.ViewCount)
	assert.JSONEq(t, `{"plcyNo":"R2024-0001"}`, string(params.RawData))
}

func TestRecordToParamsNilAge(t *testing.T) {
	t.Parallel()

	params, err := recordToParams(policy.Record{ID: "X", Status: policy.StatusActive})
	require.NoError(t, err)
	assert.Nil(t, params.TargetAge)
	assert.JSONEq(t, `[]`, string(params.Requirements))
}

func TestRowToRecord(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	row := sqlc.Policy{
		ID:              "R2024-0002",
		Title:           "취업 아카데미",
		Category:        "취업지원",
		Deadline:        sql.NullTime{Time: now.AddDate(0, 0, 14), Valid: true},
		Requirements:    json.RawMessage(`["미취업 청년"]`),
		Benefits:        json.RawMessage(`[]`),
		Tags:            json.RawMessage(`["취업"]`),
		Region:          json.RawMessage(`["부산광역시"]`),
		TargetAge:       json.RawMessage(`{"min":18,"max":34}`),
		Status:          sqlc.PolicyStatusActive,
		PopularityScore: 4.5,
		ViewCount:       42,
		CachedAt:        now,
		UpdatedAt:       now,
		RawData:         json.RawMessage(`{"plcyNo":"R2024-0002"}`),
	}

	rec, err := rowToRecord(row)
	require.NoError(t, err)

	assert.Equal(t, "R2024-0002", rec.ID)
	require.NotNil(t, rec.Deadline)
	assert.Nil(t, rec.StartDate)
	assert.Equal(t, []string{"미취업 청년"}, rec.Requirements)
	assert.Equal(t, []string{}, rec.Benefits)
	assert.Equal(t, &policy.AgeRange{Min: 18, Max: 34}, rec.TargetAge)
	assert.Equal(t, policy.StatusActive, rec.Status)
	assert.InEpsilon(t, 4.5, rec.PopularityScore, 1e-9)
	assert.Equal(t, 42, rec.ViewCount)
}

func TestRowToRecordNullColumns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  json.RawMessage
	}{
		{name: "empty", raw: nil},
		{name: "json null", raw: json.RawMessage(`null`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			row := sqlc.Policy{
				ID:           "X",
				Requirements: tt.raw,
				Benefits:     tt.raw,
				Tags:         tt.raw,
				Region:       tt.raw,
				TargetAge:    tt.raw,
				Status:       sqlc.PolicyStatusInactive,
			}

			rec, err := rowToRecord(row)
			require.NoError(t, err)
			assert.Equal(t, []string{}, rec.Requirements)
			assert.Nil(t, rec.TargetAge)
			assert.Equal(t, policy.StatusInactive, rec.Status)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	start := now.AddDate(0, -1, 0)

	rec := policy.Record{
		ID:           "R2024-0003",
		Title:        "문화누리카드",
		Category:     "문화",
		StartDate:    &start,
		Requirements: []string{},
		Benefits:     []string{"연 13만원 지원"},
		Tags:         []string{"문화"},
		Region:       []string{},
		Status:       policy.StatusActive,
		CachedAt:     now,
		UpdatedAt:    now,
	}

	params, err := recordToParams(rec)
	require.NoError(t, err)

	row := sqlc.Policy{
		ID:           params.ID,
		Title:        params.Title,
		Category:     params.Category,
		StartDate:    params.StartDate,
		Requirements: params.Requirements,
		Benefits:     params.Benefits,
		Tags:         params.Tags,
		Region:       params.Region,
		TargetAge:    params.TargetAge,
		Status:       params.Status,
		ViewCount:    params.ViewCount,
		CachedAt:     params.CachedAt,
		UpdatedAt:    params.UpdatedAt,
	}

	back, err := rowToRecord(row)
	require.NoError(t, err)
	assert.Equal(t, rec.Title, back.Title)
	assert.Equal(t, rec.Benefits, back.Benefits)
	assert.Equal(t, rec.StartDate, back.StartDate)
	assert.Nil(t, back.TargetAge)
}
