// Package normalize converts loosely-typed source items into canonical
// policy records. It is a pure transform: no I/O, no logging, and it never
// fails — malformed fields collapse to documented defaults.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yuno-app/policy-catalog-server/internal/policy"
	"github.com/yuno-app/policy-catalog-server/internal/source"
)

// defaultAgeSpread is added to a lone age number to form a range: "만 19세"
// becomes {19, 29}.
const defaultAgeSpread = 10

// sentinel values the source uses for "no data".
func isSentinel(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == "-"
}

var (
	datePattern   = regexp.MustCompile(`\d{4}[.\-]?\d{2}[.\-]?\d{2}`)
	numberPattern = regexp.MustCompile(`\d+`)
	listSeparator = regexp.MustCompile(`[,\n·•]`)
)

// Normalize converts one source item into a canonical record. categoryHint
// is the category the source was queried under; it applies when the item
// does not name its own. now stamps cached_at/updated_at so callers (and
// tests) control the clock.
func Normalize(item source.Item, categoryHint string, now time.Time) policy.Record {
	rec := policy.Record{
		ID:          itemID(item),
		Title:       firstNonEmpty(item.PolicyName, item.LegacyTitle, "제목 없음"),
		Category:    firstNonEmpty(item.MainCategory, categoryHint),
		Description: firstNonEmpty(item.Explanation, item.LegacyDescription),
		Content:     firstNonEmpty(item.SupportContent, item.LegacyContent),

		ApplicationURL: firstNonEmpty(item.ApplyURL, item.LegacyApplyURL),

		Requirements: ParseList(item.ExtraQualification),
		Benefits:     ParseList(item.LegacyBenefits),
		Tags:         parseTags(item),
		Region:       parseRegion(item),

		TargetAge: parseItemAge(item),

		Status:    policy.StatusActive,
		ViewCount: itemViewCount(item),

		CachedAt:  now,
		UpdatedAt: now,

		RawData: item.Raw,
	}

	rec.StartDate, rec.EndDate, rec.Deadline = parseItemDates(item)

	return rec
}

// itemID returns the source-assigned id, or a synthetic one when the item
// carries none. Synthetic ids must be unique per item, not per batch: two
// id-less items in the same page would otherwise collapse into one row.
func itemID(item source.Item) string {
	if id := item.ID(); id != "" {
		return id
	}
	return "policy_" + uuid.NewString()
}

func itemViewCount(item source.Item) int {
	if n, ok := item.ViewCount.Int(); ok && n >= 0 {
		return n
	}
	return 0
}

// parseItemDates resolves start, end, and deadline from whichever period
// fields the item carries. The dedicated business-period fields win; the
// combined apply-period string ("<date>~<date>") fills the gaps.
func parseItemDates(item source.Item) (start, end, deadline *time.Time) {
	start = ParseDate(item.BizPeriodStart)
	end = ParseDate(item.BizPeriodEnd)

	period := item.ApplyPeriod
	if isSentinel(period) {
		period = item.LegacyApplyPeriod
	}
	rangeStart, rangeEnd := ParseDateRange(period)

	if start == nil {
		start = rangeStart
	}
	if end == nil {
		end = rangeEnd
	}
	// The application deadline is the last date of the apply period.
	deadline = rangeEnd
	return start, end, deadline
}

// ParseDate parses a single date in any of the source's formats: 8-digit
// YYYYMMDD, dot-separated YYYY.MM.DD, or hyphenated YYYY-MM-DD. Sentinel or
// unparseable input yields nil, never an invalid date.
func ParseDate(s string) *time.Time {
	if isSentinel(s) {
		return nil
	}
	match := datePattern.FindString(s)
	if match == "" {
		return nil
	}
	compact := strings.NewReplacer(".", "", "-", "").Replace(match)
	t, err := time.Parse("20060102", compact)
	if err != nil {
		return nil
	}
	return &t
}

// ParseDateRange parses a combined range string of the form "<date>~<date>",
// returning the first date as start and the last as end. A string with a
// single date yields that date as both. Sentinels yield nil, nil.
func ParseDateRange(s string) (start, end *time.Time) {
	if isSentinel(s) {
		return nil, nil
	}
	matches := datePattern.FindAllString(s, -1)
	if len(matches) == 0 {
		return nil, nil
	}
	return ParseDate(matches[0]), ParseDate(matches[len(matches)-1])
}

// ParseAgeRange extracts an age bracket from free text. Two numbers yield
// {min, max} from the first two matches; exactly one yields {n, n+10}; no
// numeric content yields nil. Values pass through as found: no clamping and
// no reordering of inverted brackets.
func ParseAgeRange(s string) *policy.AgeRange {
	if isSentinel(s) {
		return nil
	}
	matches := numberPattern.FindAllString(s, 2)
	switch len(matches) {
	case 0:
		return nil
	case 1:
		n, err := strconv.Atoi(matches[0])
		if err != nil {
			return nil
		}
		return &policy.AgeRange{Min: n, Max: n + defaultAgeSpread}
	default:
		minAge, err1 := strconv.Atoi(matches[0])
		maxAge, err2 := strconv.Atoi(matches[1])
		if err1 != nil || err2 != nil {
			return nil
		}
		return &policy.AgeRange{Min: minAge, Max: maxAge}
	}
}

// parseItemAge prefers the structured min/max fields; the legacy free-text
// age field is the fallback.
func parseItemAge(item source.Item) *policy.AgeRange {
	minAge, minOK := item.MinAge.Int()
	maxAge, maxOK := item.MaxAge.Int()
	switch {
	case minOK && maxOK:
		return &policy.AgeRange{Min: minAge, Max: maxAge}
	case minOK:
		return &policy.AgeRange{Min: minAge, Max: minAge + defaultAgeSpread}
	case maxOK:
		return &policy.AgeRange{Min: 0, Max: maxAge}
	}
	return ParseAgeRange(item.LegacyAgeInfo)
}

// ParseList splits free text into a list on commas, newlines, and the bullet
// glyphs the source favors, trimming and dropping empty tokens. Sentinel
// input yields an empty list, never nil.
func ParseList(s string) []string {
	if isSentinel(s) {
		return []string{}
	}
	parts := listSeparator.Split(s, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseTags(item source.Item) []string {
	tags := ParseList(item.Keywords)
	if len(tags) > 0 {
		return tags
	}
	if !isSentinel(item.LegacyRegion) {
		tags = append(tags, strings.TrimSpace(item.LegacyRegion))
	}
	return tags
}

func parseRegion(item source.Item) []string {
	if !isSentinel(item.RegionName) {
		return []string{strings.TrimSpace(item.RegionName)}
	}
	if region := ParseList(item.LegacyRegion); len(region) > 0 {
		return region
	}
	return []string{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if !isSentinel(v) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
