package correct

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/propstack/propquery/internal/models"
	"github.com/propstack/propquery/internal/schema"
	"github.com/propstack/propquery/internal/sqlquery"
)

// LearnedSource yields past episodes with constraints similar to the current
// request. Implemented by the learning store; nil disables learned rules.
type LearnedSource interface {
	FindSimilar(ctx context.Context, c models.QueryConstraints, limit int) ([]models.FeedbackEpisode, error)
}

// Corrector rewrites a candidate query to address validation findings. Rules
// are independent and dispatch on the issue tag; each applied rule contributes
// a clause to the human-readable correction reason.
type Corrector struct {
	logger  *slog.Logger
	mapper  *schema.Mapper
	learned LearnedSource
}

// NewCorrector builds a corrector; learned may be nil.
func NewCorrector(logger *slog.Logger, mapper *schema.Mapper, learned LearnedSource) *Corrector {
	if logger == nil {
		logger = slog.Default()
	}
	if mapper == nil {
		mapper = schema.NewMapper()
	}
	return &Corrector{logger: logger, mapper: mapper, learned: learned}
}

// Apply rewrites currentSQL according to the verdict. When no rule fires the
// input is returned untouched, which the orchestrator reads as non-convergence.
func (c *Corrector) Apply(ctx context.Context, currentSQL string, cons models.QueryConstraints, verdict models.ValidationVerdict, userText string) (string, string) {
	stmt, parseErr := sqlquery.Parse(currentSQL)
	if parseErr != nil {
		return c.applyTextual(ctx, currentSQL, cons, verdict)
	}
	stmt = stmt.Clone()

	var reasons []string
	apply := func(reason string) {
		if reason != "" {
			reasons = append(reasons, reason)
		}
	}

	apply(c.applyLearnedPatterns(ctx, stmt, cons))

	if verdict.HasKind(models.IssueCountyFilter) {
		apply(c.fixCountyFilters(stmt, verdict, cons))
	}
	if verdict.HasKind(models.IssueAggregation) {
		apply(c.fixAggregationShape(stmt, cons))
	}
	if verdict.HasKind(models.IssuePriceFilter) {
		apply(c.fixPriceFilter(stmt, cons))
	}
	if verdict.HasKind(models.IssueTooFewResults) {
		apply(c.loosenFilters(stmt, cons))
	}
	if verdict.HasKind(models.IssueTooManyResults) {
		apply(c.tightenLimit(stmt, cons))
	}
	if len(reasons) == 0 && verdict.HasKind(models.IssueExecutionError) {
		rebuilt := sqlquery.Build(cons, c.mapper)
		*stmt = *rebuilt
		apply("regenerated query from extracted constraints after execution error")
	}

	if len(reasons) == 0 {
		return currentSQL, "no applicable corrections"
	}

	if added := stmt.EnsureSelectColumns(schema.EssentialColumns...); len(added) > 0 {
		apply(fmt.Sprintf("added display columns: %s", strings.Join(added, ", ")))
	}

	return stmt.Render(), strings.Join(reasons, "; ")
}

// applyTextual is the contained fallback for drafts the clause parser cannot
// decompose: only the county-field substitution is attempted, on raw text.
func (c *Corrector) applyTextual(ctx context.Context, currentSQL string, cons models.QueryConstraints, verdict models.ValidationVerdict) (string, string) {
	if !verdict.HasKind(models.IssueCountyFilter) {
		if verdict.HasKind(models.IssueExecutionError) {
			stmt := sqlquery.Build(cons, c.mapper)
			return stmt.Render(), "regenerated query from extracted constraints after execution error"
		}
		return currentSQL, "no applicable corrections"
	}

	corrected := currentSQL
	var reasons []string
	for _, county := range cons.Counties {
		for _, wrongColumn := range []string{schema.ColumnType, schema.ColumnSubtype, schema.ColumnName} {
			for _, op := range []string{"ILIKE", "LIKE"} {
				wrong := fmt.Sprintf("%s %s '%%%s%%'", wrongColumn, op, county)
				if strings.Contains(strings.ToLower(corrected), strings.ToLower(wrong)) {
					corrected = replaceFold(corrected, wrong, c.mapper.CountyCondition(county))
					reasons = append(reasons, fmt.Sprintf("moved %s county filter to the location column", county))
				}
			}
		}
	}
	if len(reasons) == 0 {
		return currentSQL, "no applicable corrections"
	}
	return corrected, strings.Join(reasons, "; ")
}

// applyLearnedPatterns replays transformations from similar past episodes
// whose corrected query ultimately validated.
func (c *Corrector) applyLearnedPatterns(ctx context.Context, stmt *sqlquery.Statement, cons models.QueryConstraints) string {
	if c.learned == nil {
		return ""
	}
	episodes, err := c.learned.FindSimilar(ctx, cons, 2)
	if err != nil {
		c.logger.Warn("learned pattern lookup failed", slog.Any("error", err))
		return ""
	}

	var reasons []string
	for _, episode := range episodes {
		for _, step := range episode.History {
			lower := strings.ToLower(step.Reason)
			if strings.Contains(lower, "county filter") && len(cons.Counties) > 0 {
				if reason := c.fixCountyConditions(stmt, cons.Counties); reason != "" {
					reasons = append(reasons, "applied learned county correction")
				}
			}
		}
		if len(reasons) > 0 {
			break
		}
	}
	return strings.Join(reasons, "; ")
}

// fixCountyFilters rewrites the counties flagged by the validator.
func (c *Corrector) fixCountyFilters(stmt *sqlquery.Statement, verdict models.ValidationVerdict, cons models.QueryConstraints) string {
	var counties []string
	for _, issue := range verdict.Issues {
		if issue.Kind == models.IssueCountyFilter && issue.Detail != "" {
			counties = append(counties, issue.Detail)
		}
	}
	if len(counties) == 0 {
		counties = cons.Counties
	}
	return c.fixCountyConditions(stmt, counties)
}

func (c *Corrector) fixCountyConditions(stmt *sqlquery.Statement, counties []string) string {
	var fixed []string
	for _, county := range counties {
		lowerCounty := strings.ToLower(county)
		replaced := false
		for _, i := range stmt.ConditionsOn(lowerCounty) {
			cond := strings.ToLower(stmt.Where[i])
			if strings.Contains(cond, schema.ColumnCounty) {
				replaced = true
				break
			}
			stmt.ReplaceCondition(i, c.mapper.CountyCondition(county))
			replaced = true
			fixed = append(fixed, fmt.Sprintf("moved %s county filter to the location column", county))
			break
		}
		if !replaced {
			stmt.AddCondition(c.mapper.CountyCondition(county))
			fixed = append(fixed, fmt.Sprintf("added %s county filter on the location column", county))
		}
	}
	return strings.Join(fixed, "; ")
}

// fixAggregationShape rebuilds the SELECT/GROUP BY structure for the
// requested grouping while keeping any selective WHERE conditions.
func (c *Corrector) fixAggregationShape(stmt *sqlquery.Statement, cons models.QueryConstraints) string {
	rebuilt := sqlquery.Build(cons, c.mapper)
	carried := make([]string, 0, len(stmt.Where))
	for _, cond := range stmt.Where {
		if !containsAny(strings.ToLower(cond), "count(", "is not null") {
			carried = append(carried, cond)
		}
	}
	for _, cond := range carried {
		if !hasCondition(rebuilt, cond) {
			rebuilt.AddCondition(cond)
		}
	}
	*stmt = *rebuilt
	return fmt.Sprintf("rebuilt aggregate shape for %s", cons.Aggregation)
}

// fixPriceFilter installs the canonical price comparison.
func (c *Corrector) fixPriceFilter(stmt *sqlquery.Statement, cons models.QueryConstraints) string {
	if cons.PriceRange == nil {
		return ""
	}
	canonical := sqlquery.RangeCondition(schema.ColumnPrice, *cons.PriceRange)
	if indices := stmt.ConditionsOn(schema.ColumnPrice); len(indices) > 0 {
		stmt.ReplaceCondition(indices[0], canonical)
		for i := len(indices) - 1; i > 0; i-- {
			stmt.RemoveCondition(indices[i])
		}
		return fmt.Sprintf("normalized price filter to %s", canonical)
	}
	stmt.AddCondition(canonical)
	return fmt.Sprintf("added price filter %s", canonical)
}

// loosenFilters widens an overly narrow query: first broaden property-type
// terms to their synonym groups, then relax a bounded price band by a quarter
// in each direction.
func (c *Corrector) loosenFilters(stmt *sqlquery.Statement, cons models.QueryConstraints) string {
	var reasons []string

	for _, propType := range cons.PropertyTypes {
		narrow := strings.ToLower(c.mapper.NarrowTypeCondition(propType))
		for _, i := range stmt.ConditionsOn(schema.ColumnType) {
			cond := strings.ToLower(stmt.Where[i])
			if cond == narrow || (strings.Contains(cond, strings.ToLower(propType)) && !strings.Contains(cond, schema.ColumnSubtype)) {
				stmt.ReplaceCondition(i, c.mapper.TypeCondition(propType))
				reasons = append(reasons, fmt.Sprintf("broadened %s search to include subtypes", propType))
				break
			}
		}
	}

	if len(reasons) == 0 && cons.PriceRange != nil && cons.PriceRange.Bounded() {
		widened := models.Range{Min: cons.PriceRange.Min * 0.75, Max: cons.PriceRange.Max * 1.25}
		canonical := sqlquery.RangeCondition(schema.ColumnPrice, widened)
		if indices := stmt.ConditionsOn(schema.ColumnPrice); len(indices) > 0 {
			stmt.ReplaceCondition(indices[0], canonical)
			reasons = append(reasons, "widened price band to find more matches")
		}
	}

	return strings.Join(reasons, "; ")
}

// tightenLimit bounds oversized result sets with the extracted limit.
func (c *Corrector) tightenLimit(stmt *sqlquery.Statement, cons models.QueryConstraints) string {
	limit := cons.Limit
	if cons.ExpectedMaxResults != nil && *cons.ExpectedMaxResults < limit {
		limit = *cons.ExpectedMaxResults
	}
	if limit <= 0 || (stmt.Limit > 0 && stmt.Limit <= limit) {
		return ""
	}
	stmt.Limit = limit
	return fmt.Sprintf("applied result limit %d", limit)
}

func containsAny(text string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}

func hasCondition(stmt *sqlquery.Statement, cond string) bool {
	for _, existing := range stmt.Where {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(cond)) {
			return true
		}
	}
	return false
}

// replaceFold substitutes old with new, matching case-insensitively once.
func replaceFold(text, old, new string) string {
	idx := strings.Index(strings.ToLower(text), strings.ToLower(old))
	if idx < 0 {
		return text
	}
	return text[:idx] + new + text[idx+len(old):]
}
