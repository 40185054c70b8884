package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yuno-app/policy-catalog-server/internal/db/sqlc"
	"github.com/yuno-app/policy-catalog-server/internal/policy"
)

// emptyList is the JSONB value stored for list fields with no entries. The
// column default matches, so rows never hold SQL NULL for these.
var emptyList = json.RawMessage("[]")

func recordToParams(rec policy.Record) (sqlc.UpsertPolicyParams, error) {
	requirements, err := marshalList(rec.Requirements)
	if err != nil {
		return sqlc.UpsertPolicyParams{}, fmt.Errorf("marshal requirements: %w", err)
	}
	benefits, err := marshalList(rec.Benefits)
	if err != nil {
		return sqlc.UpsertPolicyParams{}, fmt.Errorf("marshal benefits: %w", err)
	}
	tags, err := marshalList(rec.Tags)
	if err != nil {
		return sqlc.UpsertPolicyParams{}, fmt.Errorf("marshal tags: %w", err)
	}
	region, err := marshalList(rec.Region)
	if err != nil {
		return sqlc.UpsertPolicyParams{}, fmt.Errorf("marshal region: %w", err)
	}

	var targetAge json.RawMessage
	if rec.TargetAge != nil {
		targetAge, err = json.Marshal(rec.TargetAge)
		if err != nil {
			return sqlc.UpsertPolicyParams{}, fmt.Errorf("marshal target age: %w", err)
		}
	}

	return sqlc.UpsertPolicyParams{
		ID:             rec.ID,
		Title:          rec.Title,
		Category:       rec.Category,
		Description:    rec.Description,
		Content:        rec.Content,
		Deadline:       nullTime(rec.Deadline),
		StartDate:      nullTime(rec.StartDate),
		EndDate:        nullTime(rec.EndDate),
		ApplicationUrl: rec.ApplicationURL,
		Requirements:   requirements,
		Benefits:       benefits,
		Tags:           tags,
		Region:         region,
		TargetAge:      targetAge,
		Status:         sqlc.PolicyStatus(rec.Status),
		ViewCount:      int32(rec.ViewCount), //nolint:gosec // bounded by source counters
		CachedAt:       rec.CachedAt,
		UpdatedAt:      rec.UpdatedAt,
		RawData:        rec.RawData,
	}, nil
}

func rowToRecord(row sqlc.Policy) (policy.Record, error) {
	requirements, err := unmarshalList(row.Requirements)
	if err != nil {
		return policy.Record{}, fmt.Errorf("unmarshal requirements for %s: %w", row.ID, err)
	}
	benefits, err := unmarshalList(row.Benefits)
	if err != nil {
		return policy.Record{}, fmt.Errorf("unmarshal benefits for %s: %w", row.ID, err)
	}
	tags, err := unmarshalList(row.Tags)
	if err != nil {
		return policy.Record{}, fmt.Errorf("unmarshal tags for %s: %w", row.ID, err)
	}
	region, err := unmarshalList(row.Region)
	if err != nil {
		return policy.Record{}, fmt.Errorf("unmarshal region for %s: %w", row.ID, err)
	}

	var targetAge *policy.AgeRange
	if len(row.TargetAge) > 0 && string(row.TargetAge) != "null" {
		targetAge = &policy.AgeRange{}
		if err := json.Unmarshal(row.TargetAge, targetAge); err != nil {
			return policy.Record{}, fmt.Errorf("unmarshal target age for %s: %w", row.ID, err)
		}
	}

	return policy.Record{
		ID:              row.ID,
		Title:           row.Title,
		Category:        row.Category,
		Description:     row.Description,
		Content:         row.Content,
		Deadline:        timePtr(row.Deadline),
		StartDate:       timePtr(row.StartDate),
		EndDate:         timePtr(row.EndDate),
		ApplicationURL:  row.ApplicationUrl,
		Requirements:    requirements,
		Benefits:        benefits,
		Tags:            tags,
		Region:          region,
		TargetAge:       targetAge,
		Status:          policy.Status(row.Status),
		PopularityScore: row.PopularityScore,
		ViewCount:       int(row.ViewCount),
		CachedAt:        row.CachedAt,
		UpdatedAt:       row.UpdatedAt,
		RawData:         row.RawData,
	}, nil
}

func marshalList(list []string) (json.RawMessage, error) {
	if len(list) == 0 {
		return emptyList, nil
	}
	return json.Marshal(list)
}

func unmarshalList(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []string{}, nil
	}
	list := []string{}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
