package validate

import (
	"testing"

	"github.com/propstack/propquery/internal/models"
)

func intPtr(v int) *int { return &v }

func TestValidatePassesCleanResult(t *testing.T) {
	v := NewValidator()
	c := models.QueryConstraints{
		Counties:           []string{"walton"},
		PriceRange:         &models.Range{Min: 0, Max: 500000},
		ExpectedMinResults: 1,
		ExpectedMaxResults: intPtr(100),
	}
	result := models.QueryResult{RowCount: 12}
	sql := "SELECT id FROM properties WHERE address_county LIKE '%walton%' AND asking_price <= 500000"

	verdict := v.Validate(result, c, sql)
	if !verdict.Valid {
		t.Fatalf("expected valid, got issues: %v", verdict.IssueStrings())
	}
}

func TestValidateExecutionErrors(t *testing.T) {
	v := NewValidator()
	result := models.QueryResult{Errors: []string{"no such column: county"}}

	verdict := v.Validate(result, models.QueryConstraints{}, "SELECT id FROM properties")
	if verdict.Valid {
		t.Fatalf("expected invalid")
	}
	if !verdict.HasKind(models.IssueExecutionError) {
		t.Fatalf("expected execution error issue, got %v", verdict.IssueStrings())
	}
}

func TestValidateResultVolume(t *testing.T) {
	v := NewValidator()
	c := models.QueryConstraints{ExpectedMinResults: 1, ExpectedMaxResults: intPtr(10)}

	verdict := v.Validate(models.QueryResult{RowCount: 0}, c, "SELECT id FROM properties")
	if !verdict.HasKind(models.IssueTooFewResults) {
		t.Fatalf("expected too-few issue, got %v", verdict.IssueStrings())
	}

	verdict = v.Validate(models.QueryResult{RowCount: 50}, c, "SELECT id FROM properties")
	if !verdict.HasKind(models.IssueTooManyResults) {
		t.Fatalf("expected too-many issue, got %v", verdict.IssueStrings())
	}

	// No minimum expectation means zero rows is acceptable.
	verdict = v.Validate(models.QueryResult{RowCount: 0}, models.QueryConstraints{}, "SELECT id FROM properties")
	if !verdict.Valid {
		t.Fatalf("expected valid, got %v", verdict.IssueStrings())
	}
}

func TestValidateCountyOnWrongColumn(t *testing.T) {
	v := NewValidator()
	c := models.QueryConstraints{Counties: []string{"walton"}}
	sql := "SELECT id FROM properties WHERE property_type LIKE '%walton%'"

	verdict := v.Validate(models.QueryResult{RowCount: 3}, c, sql)
	if !verdict.HasKind(models.IssueCountyFilter) {
		t.Fatalf("expected county issue, got %v", verdict.IssueStrings())
	}
	for _, issue := range verdict.Issues {
		if issue.Kind == models.IssueCountyFilter && issue.Detail != "walton" {
			t.Fatalf("issue should carry the county, got %q", issue.Detail)
		}
	}

	// Missing entirely is also flagged.
	verdict = v.Validate(models.QueryResult{RowCount: 3}, c, "SELECT id FROM properties")
	if !verdict.HasKind(models.IssueCountyFilter) {
		t.Fatalf("expected county issue for missing filter")
	}
}

func TestValidateCountyOnBothColumns(t *testing.T) {
	v := NewValidator()
	c := models.QueryConstraints{Counties: []string{"walton"}}

	// The name condition coming first must not mask the correct filter.
	sql := "SELECT id FROM properties WHERE name LIKE '%walton%' AND address_county LIKE '%walton%'"
	verdict := v.Validate(models.QueryResult{RowCount: 3}, c, sql)
	if verdict.HasKind(models.IssueCountyFilter) {
		t.Fatalf("county filter present, got %v", verdict.IssueStrings())
	}

	sql = "SELECT id FROM properties WHERE address_county LIKE '%walton%' AND name LIKE '%walton%'"
	verdict = v.Validate(models.QueryResult{RowCount: 3}, c, sql)
	if verdict.HasKind(models.IssueCountyFilter) {
		t.Fatalf("clause order should not matter, got %v", verdict.IssueStrings())
	}
}

func TestValidatePriceFilter(t *testing.T) {
	v := NewValidator()
	c := models.QueryConstraints{PriceRange: &models.Range{Min: 0, Max: 500000}}

	verdict := v.Validate(models.QueryResult{RowCount: 3}, c, "SELECT id FROM properties WHERE address_county LIKE '%walton%'")
	if !verdict.HasKind(models.IssuePriceFilter) {
		t.Fatalf("expected price issue, got %v", verdict.IssueStrings())
	}

	verdict = v.Validate(models.QueryResult{RowCount: 3}, c, "SELECT id FROM properties WHERE asking_price <= 500000")
	if verdict.HasKind(models.IssuePriceFilter) {
		t.Fatalf("price filter should validate, got %v", verdict.IssueStrings())
	}

	bounded := models.QueryConstraints{PriceRange: &models.Range{Min: 100000, Max: 500000}}
	verdict = v.Validate(models.QueryResult{RowCount: 3}, bounded, "SELECT id FROM properties WHERE asking_price BETWEEN 100000 AND 500000")
	if verdict.HasKind(models.IssuePriceFilter) {
		t.Fatalf("BETWEEN should validate, got %v", verdict.IssueStrings())
	}
}

func TestValidateAggregationShape(t *testing.T) {
	v := NewValidator()
	c := models.QueryConstraints{Aggregation: models.AggregationCountByCounty, ExpectedMinResults: 1, ExpectedMaxResults: intPtr(200)}

	good := "SELECT address_county AS county, COUNT(*) AS property_count FROM properties GROUP BY address_county"
	verdict := v.Validate(models.QueryResult{RowCount: 5}, c, good)
	if verdict.HasKind(models.IssueAggregation) {
		t.Fatalf("expected aggregate shape to validate, got %v", verdict.IssueStrings())
	}

	flat := "SELECT id FROM properties WHERE address_county IS NOT NULL"
	verdict = v.Validate(models.QueryResult{RowCount: 5}, c, flat)
	if !verdict.HasKind(models.IssueAggregation) {
		t.Fatalf("expected aggregation issue, got %v", verdict.IssueStrings())
	}

	// A count that returns nothing without failing means the shape is wrong.
	verdict = v.Validate(models.QueryResult{RowCount: 0}, models.QueryConstraints{Aggregation: models.AggregationCountTotal, ExpectedMinResults: 1, ExpectedMaxResults: intPtr(1)},
		"SELECT COUNT(*) AS total_properties FROM properties")
	if !verdict.HasKind(models.IssueAggregation) {
		t.Fatalf("expected aggregation issue for empty count result")
	}
}

func TestValidateUnsetAggregationMeansNone(t *testing.T) {
	v := NewValidator()

	// A zero-value constraints struct never asks for an aggregate shape.
	verdict := v.Validate(models.QueryResult{RowCount: 3}, models.QueryConstraints{}, "SELECT id FROM properties")
	if verdict.HasKind(models.IssueAggregation) {
		t.Fatalf("unset aggregation should behave as none, got %v", verdict.IssueStrings())
	}

	explicit := models.QueryConstraints{Aggregation: models.AggregationNone}
	verdict = v.Validate(models.QueryResult{RowCount: 3}, explicit, "SELECT id FROM properties")
	if verdict.HasKind(models.IssueAggregation) {
		t.Fatalf("explicit none should not demand a count, got %v", verdict.IssueStrings())
	}
}
