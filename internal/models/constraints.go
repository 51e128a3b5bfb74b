package models

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
)

// AggregationType enumerates the grouping shapes a user can ask for.
type AggregationType string

const (
	AggregationNone          AggregationType = "none"
	AggregationCountByCounty AggregationType = "count_by_county"
	AggregationCountByType   AggregationType = "count_by_type"
	AggregationCountTotal    AggregationType = "count_total"
)

// Range bounds a numeric filter. Max is +Inf for open-ended ranges.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Bounded reports whether both ends of the range are finite.
func (r Range) Bounded() bool {
	return r.Min > 0 && !math.IsInf(r.Max, 1)
}

// MarshalJSON omits the upper bound when the range is open-ended, since
// encoding/json rejects infinities.
func (r Range) MarshalJSON() ([]byte, error) {
	type bounded struct {
		Min float64  `json:"min"`
		Max *float64 `json:"max,omitempty"`
	}
	b := bounded{Min: r.Min}
	if !math.IsInf(r.Max, 1) {
		b.Max = &r.Max
	}
	return json.Marshal(b)
}

// UnmarshalJSON restores a missing upper bound as +Inf.
func (r *Range) UnmarshalJSON(data []byte) error {
	type bounded struct {
		Min float64  `json:"min"`
		Max *float64 `json:"max"`
	}
	var b bounded
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	r.Min = b.Min
	if b.Max != nil {
		r.Max = *b.Max
	} else {
		r.Max = math.Inf(1)
	}
	return nil
}

// Ordering captures an explicit result ordering preference.
type Ordering struct {
	Column     string `json:"column"`
	Descending bool   `json:"descending"`
}

// QueryConstraints holds the structured facts extracted from a user's sentence.
// Built once per request and immutable afterwards.
type QueryConstraints struct {
	Counties           []string        `json:"counties"`
	PriceRange         *Range          `json:"price_range,omitempty"`
	SizeRange          *Range          `json:"size_range,omitempty"`
	SizeColumn         string          `json:"size_column,omitempty"`
	PropertyTypes      []string        `json:"property_types"`
	Aggregation        AggregationType `json:"aggregation"`
	OrderBy            *Ordering       `json:"order_by,omitempty"`
	Limit              int             `json:"limit"`
	ExpectedMinResults int             `json:"expected_min_results"`
	ExpectedMaxResults *int            `json:"expected_max_results,omitempty"`
}

// HasFilters reports whether any selective filter was extracted.
func (c QueryConstraints) HasFilters() bool {
	return len(c.Counties) > 0 || len(c.PropertyTypes) > 0 ||
		c.PriceRange != nil || c.SizeRange != nil
}

// Canonical returns a stable serialization used for hashing and similarity keys.
// Sets are sorted and lower-cased so equivalent constraint objects share bytes.
func (c QueryConstraints) Canonical() []byte {
	normalized := c
	normalized.Counties = normalizeSet(c.Counties)
	normalized.PropertyTypes = normalizeSet(c.PropertyTypes)
	data, err := json.Marshal(normalized)
	if err != nil {
		return nil
	}
	return data
}

func normalizeSet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
