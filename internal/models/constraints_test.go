package models

import (
	"encoding/json"
	"math"
	"testing"
)

func TestRangeJSONRoundTripOpenEnded(t *testing.T) {
	r := Range{Min: 250000, Max: math.Inf(1)}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal open range: %v", err)
	}

	var back Range
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Min != 250000 || !math.IsInf(back.Max, 1) {
		t.Fatalf("round trip lost the open bound: %+v", back)
	}
	if back.Bounded() {
		t.Fatalf("open range must not report bounded")
	}

	bounded := Range{Min: 1, Max: 2}
	if !bounded.Bounded() {
		t.Fatalf("expected bounded")
	}
}

func TestCanonicalIsOrderInsensitive(t *testing.T) {
	a := QueryConstraints{
		Counties:      []string{"Walton", "barrow", "walton"},
		PropertyTypes: []string{"Retail", "office"},
		Aggregation:   AggregationNone,
	}
	b := QueryConstraints{
		Counties:      []string{"barrow", "walton"},
		PropertyTypes: []string{"office", "retail"},
		Aggregation:   AggregationNone,
	}

	if string(a.Canonical()) != string(b.Canonical()) {
		t.Fatalf("equivalent constraints should share canonical bytes:\n%s\n%s", a.Canonical(), b.Canonical())
	}

	c := b
	c.Counties = []string{"fulton"}
	if string(b.Canonical()) == string(c.Canonical()) {
		t.Fatalf("different constraints must differ")
	}
}

func TestCanonicalHandlesOpenPriceRange(t *testing.T) {
	c := QueryConstraints{PriceRange: &Range{Min: 100000, Max: math.Inf(1)}}
	if c.Canonical() == nil {
		t.Fatalf("canonical serialization failed for open range")
	}
}
