package source

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// resultCodeOK is the success code in the source API's response envelope.
const resultCodeOK = 200

// FlexString is a string that tolerates numeric and null JSON values. The
// source API is loosely typed and has shipped the same field as "19", 19,
// and null across versions.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	// Bare number or other scalar: keep the literal text.
	*f = FlexString(string(data))
	return nil
}

// String returns the underlying string with surrounding whitespace trimmed.
func (f FlexString) String() string {
	return strings.TrimSpace(string(f))
}

// Int parses the value as an integer, returning ok=false when it has no
// usable numeric content.
func (f FlexString) Int() (int, bool) {
	s := f.String()
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Item is the loosely-typed intermediate representation of one policy as
// returned by the source API. It carries both the current field names and
// the legacy ones so that version drift is absorbed here and nowhere else.
// Every field is optional; the normalizer supplies documented defaults.
type Item struct {
	// Current API field names.
	PolicyNo          FlexString `json:"plcyNo"`
	PolicyName        string     `json:"plcyNm"`
	MainCategory      string     `json:"lclsfNm"`
	SubCategory       string     `json:"mclsfNm"`
	Explanation       string     `json:"plcyExplnCn"`
	SupportContent    string     `json:"plcySprtCn"`
	ApplyPeriod       string     `json:"aplyYmd"`
	BizPeriodStart    string     `json:"bizPrdBgngYmd"`
	BizPeriodEnd      string     `json:"bizPrdEndYmd"`
	ApplyURL          string     `json:"aplyUrlAddr"`
	ExtraQualification string    `json:"addAplyQlfcCndCn"`
	RegionCodes       string     `json:"zipCd"`
	RegionName        string     `json:"rgtrUpInstCdNm"`
	MinAge            FlexString `json:"sprtTrgtMinAge"`
	MaxAge            FlexString `json:"sprtTrgtMaxAge"`
	Keywords          string     `json:"plcyKywdNm"`
	ViewCount         FlexString `json:"inqCnt"`

	// Legacy API field names, still seen from older source versions.
	LegacyID          FlexString `json:"bizId"`
	LegacyTitle       string     `json:"polyBizSjnm"`
	LegacyDescription string     `json:"polyItcnCn"`
	LegacyContent     string     `json:"cnsgNmor"`
	LegacyApplyPeriod string     `json:"rqutPrdCn"`
	LegacyApplyURL    string     `json:"rqutUrla"`
	LegacyAgeInfo     string     `json:"ageInfo"`
	LegacyRegion      string     `json:"polyBizTy"`
	LegacyBenefits    string     `json:"sporCn"`
	LegacyDocuments   string     `json:"rqutProcCn"`
	LegacyEducation   string     `json:"accrRqisCn"`
	LegacyRealm       string     `json:"polyRlmCd"`

	// Raw holds the item verbatim as received, including fields not mapped
	// above. Populated by UnmarshalJSON.
	Raw json.RawMessage `json:"-"`
}

// itemAlias avoids recursing into Item.UnmarshalJSON.
type itemAlias Item

// UnmarshalJSON decodes the mapped fields and retains the original bytes.
func (i *Item) UnmarshalJSON(data []byte) error {
	var alias itemAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*i = Item(alias)
	i.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// ID returns the source-assigned identifier, preferring the current field
// name over the legacy one. Empty when the item carries neither.
func (i *Item) ID() string {
	if id := i.PolicyNo.String(); id != "" {
		return id
	}
	return i.LegacyID.String()
}

// envelope is the top-level source API response.
type envelope struct {
	ResultCode    int             `json:"resultCode"`
	ResultMessage string          `json:"resultMessage"`
	Result        *envelopeResult `json:"result"`

	// Legacy responses carry the list and count at the top level.
	LegacyList       rawItemList `json:"youthPolicy"`
	LegacyTotalCount FlexString  `json:"totalCount"`
}

type envelopeResult struct {
	Paging *envelopePaging `json:"pagging"` // sic: source API spells it this way
	List   rawItemList     `json:"youthPolicyList"`
}

type envelopePaging struct {
	TotalCount FlexString `json:"totCount"`
	PageNum    FlexString `json:"pageNum"`
	PageSize   FlexString `json:"pageSize"`
}

// rawItemList tolerates the source returning a single object instead of an
// array when a page contains exactly one item.
type rawItemList []Item

// UnmarshalJSON implements json.Unmarshaler.
func (l *rawItemList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*l = nil
		return nil
	}
	if data[0] == '[' {
		var items []Item
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return err
	}
	*l = rawItemList{item}
	return nil
}

// PageResult is one page of catalog items as fetched from the source.
type PageResult struct {
	Items      []Item
	TotalCount int
	Page       int
}

// HasMore reports whether another page likely exists, judged by whether the
// source filled the requested page size.
func (p *PageResult) HasMore(pageSize int) bool {
	return len(p.Items) == pageSize
}

// categoryCodes maps catalog categories to the source API's numeric codes.
// Unmapped categories query with an empty code (source-side no filter).
var categoryCodes = map[string]string{
	"장학금":  "023010",
	"창업지원": "023020",
	"취업지원": "023030",
	"주거지원": "023040",
	"생활복지": "023050",
	"문화":   "023060",
	"참여권리": "023070",
}

// CategoryCode returns the source API code for a catalog category, or ""
// when the category has no mapping.
func CategoryCode(category string) string {
	return categoryCodes[category]
}
