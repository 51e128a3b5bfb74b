package validate

import (
	"fmt"
	"strings"

	"github.com/propstack/propquery/internal/models"
	"github.com/propstack/propquery/internal/schema"
	"github.com/propstack/propquery/internal/sqlquery"
)

// Validator checks an execution result against the extracted constraints.
// It is a pure function over its inputs and never touches the database.
type Validator struct{}

// NewValidator creates a result validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate runs every check independently and collects the findings.
func (v *Validator) Validate(result models.QueryResult, c models.QueryConstraints, sql string) models.ValidationVerdict {
	var issues []models.Issue

	for _, execErr := range result.Errors {
		issues = append(issues, models.Issue{Kind: models.IssueExecutionError, Detail: execErr})
	}

	if c.ExpectedMinResults > 0 && result.RowCount < c.ExpectedMinResults {
		issues = append(issues, models.Issue{
			Kind:   models.IssueTooFewResults,
			Detail: fmt.Sprintf("got %d, expected at least %d", result.RowCount, c.ExpectedMinResults),
		})
	}
	if c.ExpectedMaxResults != nil && result.RowCount > *c.ExpectedMaxResults {
		issues = append(issues, models.Issue{
			Kind:   models.IssueTooManyResults,
			Detail: fmt.Sprintf("got %d, expected at most %d", result.RowCount, *c.ExpectedMaxResults),
		})
	}

	stmt, parseErr := sqlquery.Parse(sql)

	for _, county := range c.Counties {
		if !countyFilterCorrect(sql, stmt, parseErr == nil, county) {
			issues = append(issues, models.Issue{Kind: models.IssueCountyFilter, Detail: county})
		}
	}

	if c.PriceRange != nil && !priceFilterCorrect(sql, *c.PriceRange) {
		issues = append(issues, models.Issue{Kind: models.IssuePriceFilter})
	}

	// An unset aggregation means a plain listing, same as an explicit none.
	if c.Aggregation != "" && c.Aggregation != models.AggregationNone && !aggregationShapeCorrect(result, c.Aggregation, sql, stmt, parseErr == nil) {
		issues = append(issues, models.Issue{Kind: models.IssueAggregation})
	}

	return models.ValidationVerdict{Valid: len(issues) == 0, Issues: issues}
}

// countyFilterCorrect demands the county be filtered through the location
// column. A county named on any other column, or missing entirely, fails.
func countyFilterCorrect(sql string, stmt *sqlquery.Statement, parsed bool, county string) bool {
	lowerCounty := strings.ToLower(county)

	if parsed {
		// A draft may mention the county on several columns. One correct
		// filter on the location column is enough.
		for _, cond := range stmt.Where {
			lower := strings.ToLower(cond)
			if strings.Contains(lower, lowerCounty) && strings.Contains(lower, schema.ColumnCounty) {
				return true
			}
		}
		return false
	}

	// Unparseable draft: fall back to a textual scan for the qualified pattern.
	lower := strings.ToLower(sql)
	if !strings.Contains(lower, lowerCounty) {
		return false
	}
	return strings.Contains(lower, schema.ColumnCounty)
}

// priceFilterCorrect demands a comparison on the price column consistent with
// the extracted bounds.
func priceFilterCorrect(sql string, r models.Range) bool {
	lower := strings.ToLower(sql)
	if !strings.Contains(lower, schema.ColumnPrice) {
		return false
	}
	if r.Bounded() {
		if strings.Contains(lower, "between") {
			return true
		}
		return containsComparison(lower, "<") && containsComparison(lower, ">")
	}
	if r.Min > 0 {
		return containsComparison(lower, ">") || strings.Contains(lower, "between")
	}
	return containsComparison(lower, "<") || strings.Contains(lower, "between")
}

func containsComparison(lower, op string) bool {
	idx := strings.Index(lower, schema.ColumnPrice)
	for idx >= 0 {
		tail := lower[idx+len(schema.ColumnPrice):]
		if len(tail) > 8 {
			tail = tail[:8]
		}
		if strings.Contains(tail, op) {
			return true
		}
		next := strings.Index(lower[idx+1:], schema.ColumnPrice)
		if next < 0 {
			break
		}
		idx += 1 + next
	}
	return false
}

// aggregationShapeCorrect demands the SELECT/GROUP BY structure matching the
// requested grouping, and a non-empty count result.
func aggregationShapeCorrect(result models.QueryResult, agg models.AggregationType, sql string, stmt *sqlquery.Statement, parsed bool) bool {
	upper := strings.ToUpper(sql)
	if !strings.Contains(upper, "COUNT(") {
		return false
	}
	if result.RowCount == 0 && !result.Failed() {
		return false
	}

	groupColumn := ""
	switch agg {
	case models.AggregationCountByCounty:
		groupColumn = schema.ColumnCounty
	case models.AggregationCountByType:
		groupColumn = schema.ColumnType
	case models.AggregationCountTotal:
		return true
	}

	if parsed {
		for _, group := range stmt.GroupBy {
			if strings.Contains(strings.ToLower(group), groupColumn) {
				return true
			}
		}
		return false
	}
	lowered := strings.ToLower(sql)
	return strings.Contains(lowered, "group by") && strings.Contains(lowered, groupColumn)
}
