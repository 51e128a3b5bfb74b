package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/propstack/propquery/internal/models"
)

// Explain renders a plain-language summary of what the episode searched for,
// what it found, and how the query was adjusted along the way.
func Explain(c models.QueryConstraints, status models.ValidationStatus, rowCount int, history []models.CorrectionStep) string {
	var b strings.Builder

	switch c.Aggregation {
	case models.AggregationCountByCounty:
		b.WriteString("Counted matching properties by county")
	case models.AggregationCountByType:
		b.WriteString("Counted matching properties by type")
	case models.AggregationCountTotal:
		b.WriteString("Counted matching properties")
	default:
		b.WriteString(fmt.Sprintf("Found %d %s", rowCount, pluralize("property", rowCount)))
	}

	if len(c.PropertyTypes) > 0 {
		b.WriteString(" matching ")
		b.WriteString(joinNatural(c.PropertyTypes))
	}
	if len(c.Counties) > 0 {
		b.WriteString(" in ")
		b.WriteString(joinNatural(titleAll(c.Counties)))
		b.WriteString(fmt.Sprintf(" %s", pluralize("county", len(c.Counties))))
	}
	if c.PriceRange != nil {
		b.WriteString(" ")
		b.WriteString(describePriceRange(*c.PriceRange))
	}
	if c.SizeRange != nil {
		b.WriteString(" ")
		b.WriteString(describeSizeRange(*c.SizeRange, c.SizeColumn))
	}
	b.WriteString(".")

	if n := len(history); n > 0 {
		reasons := make([]string, 0, n)
		for _, step := range history {
			if step.Reason != "" {
				reasons = append(reasons, step.Reason)
			}
		}
		b.WriteString(fmt.Sprintf(" The query was adjusted %d %s", n, pluralize("time", n)))
		if len(reasons) > 0 {
			b.WriteString(": ")
			b.WriteString(strings.Join(reasons, "; "))
		}
		b.WriteString(".")
	}

	if status == models.StatusFailed {
		b.WriteString(" The query could not be fully validated, so results may be incomplete.")
	}

	return b.String()
}

func describePriceRange(r models.Range) string {
	switch {
	case r.Bounded():
		return fmt.Sprintf("priced between %s and %s", formatDollars(r.Min), formatDollars(r.Max))
	case r.Min > 0:
		return fmt.Sprintf("priced over %s", formatDollars(r.Min))
	default:
		return fmt.Sprintf("priced under %s", formatDollars(r.Max))
	}
}

func describeSizeRange(r models.Range, column string) string {
	unit := "acres"
	if strings.Contains(column, "sqft") {
		unit = "sq ft"
	}
	switch {
	case r.Bounded():
		return fmt.Sprintf("between %s and %s %s", formatAmount(r.Min), formatAmount(r.Max), unit)
	case r.Min > 0:
		return fmt.Sprintf("over %s %s", formatAmount(r.Min), unit)
	default:
		return fmt.Sprintf("under %s %s", formatAmount(r.Max), unit)
	}
}

func formatDollars(v float64) string {
	if v >= 1_000_000 && math.Mod(v, 100_000) == 0 {
		return fmt.Sprintf("$%.1fM", v/1_000_000)
	}
	if v >= 1_000 && math.Mod(v, 1_000) == 0 {
		return fmt.Sprintf("$%.0fK", v/1_000)
	}
	return fmt.Sprintf("$%s", formatAmount(v))
}

func formatAmount(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

func titleAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if v == "" {
			continue
		}
		out[i] = strings.ToUpper(v[:1]) + v[1:]
	}
	return out
}

func joinNatural(values []string) string {
	switch len(values) {
	case 0:
		return ""
	case 1:
		return values[0]
	case 2:
		return values[0] + " and " + values[1]
	default:
		return strings.Join(values[:len(values)-1], ", ") + " and " + values[len(values)-1]
	}
}

func pluralize(word string, n int) string {
	if n == 1 {
		return word
	}
	switch {
	case strings.HasSuffix(word, "ty"):
		return word[:len(word)-1] + "ies"
	default:
		return word + "s"
	}
}
