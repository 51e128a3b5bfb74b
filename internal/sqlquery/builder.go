package sqlquery

import (
	"fmt"
	"math"
	"strconv"

	"github.com/propstack/propquery/internal/models"
	"github.com/propstack/propquery/internal/schema"
)

// Build drafts a Statement from extracted constraints. Used when the caller
// supplies no initial SQL; the orchestrator still treats the draft as an
// untrusted first guess and runs it through the full loop.
func Build(c models.QueryConstraints, mapper *schema.Mapper) *Statement {
	switch c.Aggregation {
	case models.AggregationCountByCounty:
		return &Statement{
			Select: []string{
				schema.ColumnCounty + " AS county",
				"COUNT(*) AS " + schema.ColumnCountAlias,
			},
			From:    schema.TableProperties,
			Where:   []string{schema.ColumnCounty + " IS NOT NULL"},
			GroupBy: []string{schema.ColumnCounty},
			OrderBy: schema.ColumnCountAlias + " DESC",
		}
	case models.AggregationCountByType:
		return &Statement{
			Select: []string{
				schema.ColumnType,
				"COUNT(*) AS " + schema.ColumnCountAlias,
			},
			From:    schema.TableProperties,
			Where:   []string{schema.ColumnType + " IS NOT NULL"},
			GroupBy: []string{schema.ColumnType},
			OrderBy: schema.ColumnCountAlias + " DESC",
		}
	case models.AggregationCountTotal:
		return &Statement{
			Select: []string{"COUNT(*) AS " + schema.ColumnTotalsAlias},
			From:   schema.TableProperties,
		}
	}

	stmt := &Statement{
		Select: []string{
			schema.ColumnID, schema.ColumnName, schema.ColumnType,
			schema.ColumnSubtype, schema.ColumnPrice,
		},
		From:  schema.TableProperties,
		Limit: c.Limit,
	}

	for _, county := range c.Counties {
		stmt.AddCondition(mapper.CountyCondition(county))
	}
	for _, propType := range c.PropertyTypes {
		stmt.AddCondition(mapper.TypeCondition(propType))
	}
	if c.PriceRange != nil {
		stmt.AddCondition(RangeCondition(schema.ColumnPrice, *c.PriceRange))
	}
	if c.SizeRange != nil {
		column := c.SizeColumn
		if column == "" {
			column = schema.ColumnAcres
		}
		stmt.AddCondition(RangeCondition(column, *c.SizeRange))
		stmt.Select = append(stmt.Select, column)
	}
	if c.OrderBy != nil {
		direction := "ASC"
		if c.OrderBy.Descending {
			direction = "DESC"
		}
		stmt.OrderBy = c.OrderBy.Column + " " + direction
	}
	return stmt
}

// RangeCondition renders the canonical comparison for a numeric range:
// BETWEEN when both bounds are finite, a single comparison otherwise.
func RangeCondition(column string, r models.Range) string {
	switch {
	case r.Bounded():
		return fmt.Sprintf("%s BETWEEN %s AND %s", column, formatNumber(r.Min), formatNumber(r.Max))
	case math.IsInf(r.Max, 1):
		return fmt.Sprintf("%s >= %s", column, formatNumber(r.Min))
	default:
		return fmt.Sprintf("%s <= %s", column, formatNumber(r.Max))
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
