package extract

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/propstack/propquery/internal/models"
	"github.com/propstack/propquery/internal/schema"
)

// DefaultLimit caps result sets when the user names no explicit bound.
const DefaultLimit = 50

var (
	priceBetweenRe = regexp.MustCompile(`between\s*\$?([\d,]+(?:\.\d+)?[km]?)\s*(?:and|to|-)\s*\$?([\d,]+(?:\.\d+)?[km]?)`)
	priceUnderRe   = regexp.MustCompile(`(?:under|below|less than)\s*\$?([\d,]+(?:\.\d+)?[km]?)`)
	priceOverRe    = regexp.MustCompile(`(?:over|above|more than)\s*\$?([\d,]+(?:\.\d+)?[km]?)`)

	acresRangeRe  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:to|-|and)\s*(\d+(?:\.\d+)?)\s*acres?`)
	acresOverRe   = regexp.MustCompile(`over\s*(\d+(?:\.\d+)?)\s*acres?`)
	acresUnderRe  = regexp.MustCompile(`under\s*(\d+(?:\.\d+)?)\s*acres?`)
	acresSingleRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*acres?`)
	sqftRangeRe   = regexp.MustCompile(`([\d,]+)\s*(?:to|-|and)\s*([\d,]+)\s*(?:sq\.?\s*ft\.?|square\s*feet|sqft)`)
	sqftSingleRe  = regexp.MustCompile(`([\d,]+)\s*(?:sq\.?\s*ft\.?|square\s*feet|sqft)`)

	limitRes = []*regexp.Regexp{
		regexp.MustCompile(`first\s+(\d+)`),
		regexp.MustCompile(`top\s+(\d+)`),
		regexp.MustCompile(`(\d+)\s+properties`),
		regexp.MustCompile(`limit\s+(\d+)`),
	}

	countCueRe = regexp.MustCompile(`\b(?:count|how many|number of|total)\b`)
)

// Extractor turns raw user text into QueryConstraints using the schema
// vocabulary. It never fails: missing signals leave fields at permissive
// defaults.
type Extractor struct {
	mapper     *schema.Mapper
	countyRes  map[string]*regexp.Regexp
	synonymRes map[string]*regexp.Regexp
}

// NewExtractor compiles the vocabulary patterns once up front.
func NewExtractor(mapper *schema.Mapper) *Extractor {
	if mapper == nil {
		mapper = schema.NewMapper()
	}
	e := &Extractor{
		mapper:     mapper,
		countyRes:  make(map[string]*regexp.Regexp),
		synonymRes: make(map[string]*regexp.Regexp),
	}
	for _, county := range mapper.Counties() {
		quoted := regexp.QuoteMeta(county)
		e.countyRes[county] = regexp.MustCompile(
			`\b(?:` + quoted + `\s+county|in\s+` + quoted + `|` + quoted + `\s+ga)\b`)
	}
	for _, canonical := range mapper.PropertyTypes() {
		terms := append([]string{canonical}, mapper.Synonyms(canonical)...)
		quoted := make([]string, 0, len(terms))
		for _, term := range terms {
			// Tolerate plural phrasing ("gas stations", "restaurants").
			quoted = append(quoted, regexp.QuoteMeta(term)+"s?")
		}
		e.synonymRes[canonical] = regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}
	return e
}

// Extract derives structured constraints from the user's sentence. It is pure
// and deterministic for a fixed vocabulary.
func (e *Extractor) Extract(text string) models.QueryConstraints {
	lower := strings.ToLower(strings.TrimSpace(text))

	c := models.QueryConstraints{
		Aggregation: models.AggregationNone,
		Limit:       DefaultLimit,
	}

	for county, re := range e.countyRes {
		if re.MatchString(lower) {
			c.Counties = append(c.Counties, county)
		}
	}
	sort.Strings(c.Counties)

	for canonical, re := range e.synonymRes {
		if re.MatchString(lower) {
			c.PropertyTypes = append(c.PropertyTypes, canonical)
		}
	}
	sort.Strings(c.PropertyTypes)

	c.SizeRange, c.SizeColumn = extractSize(lower, e.mapper)
	c.PriceRange = extractPrice(lower)
	c.Aggregation = extractAggregation(lower)
	c.OrderBy = extractOrdering(lower)
	if limit := extractLimit(lower); limit > 0 {
		c.Limit = limit
	}

	c.ExpectedMinResults, c.ExpectedMaxResults = estimateResultBounds(c)
	return c
}

// extractPrice finds a dollar range, skipping matches that are actually size
// expressions ("between 2 and 5 acres").
func extractPrice(text string) *models.Range {
	if m := priceBetweenRe.FindStringSubmatchIndex(text); m != nil && !sizeContext(text, m[1]) {
		lo := parseAmount(text[m[2]:m[3]])
		hi := parseAmount(text[m[4]:m[5]])
		return &models.Range{Min: lo, Max: hi}
	}
	if m := priceUnderRe.FindStringSubmatchIndex(text); m != nil && !sizeContext(text, m[1]) {
		return &models.Range{Min: 0, Max: parseAmount(text[m[2]:m[3]])}
	}
	if m := priceOverRe.FindStringSubmatchIndex(text); m != nil && !sizeContext(text, m[1]) {
		return &models.Range{Min: parseAmount(text[m[2]:m[3]]), Max: math.Inf(1)}
	}
	return nil
}

// sizeContext reports whether a size unit follows right after the match,
// meaning the numbers belong to a size filter, not a price.
func sizeContext(text string, end int) bool {
	tail := text[end:]
	if len(tail) > 16 {
		tail = tail[:16]
	}
	return strings.Contains(tail, "acre") || strings.Contains(tail, "sq")
}

func extractSize(text string, mapper *schema.Mapper) (*models.Range, string) {
	column := mapper.SizeColumn("acres")
	if strings.Contains(text, "building") {
		column = mapper.SizeColumn("building size")
	}

	if m := acresRangeRe.FindStringSubmatch(text); m != nil {
		return &models.Range{Min: parseAmount(m[1]), Max: parseAmount(m[2])}, mapper.SizeColumn("acres")
	}
	if m := acresOverRe.FindStringSubmatch(text); m != nil {
		return &models.Range{Min: parseAmount(m[1]), Max: math.Inf(1)}, mapper.SizeColumn("acres")
	}
	if m := acresUnderRe.FindStringSubmatch(text); m != nil {
		return &models.Range{Min: 0, Max: parseAmount(m[1])}, mapper.SizeColumn("acres")
	}
	if m := acresSingleRe.FindStringSubmatch(text); m != nil {
		v := parseAmount(m[1])
		return &models.Range{Min: v, Max: v}, mapper.SizeColumn("acres")
	}
	if m := sqftRangeRe.FindStringSubmatch(text); m != nil {
		return &models.Range{Min: parseAmount(m[1]), Max: parseAmount(m[2])}, column
	}
	if m := sqftSingleRe.FindStringSubmatch(text); m != nil {
		return &models.Range{Min: parseAmount(m[1]), Max: math.Inf(1)}, columnOrSqft(column, mapper)
	}
	return nil, ""
}

func columnOrSqft(column string, mapper *schema.Mapper) string {
	if column != "" {
		return column
	}
	return mapper.SizeColumn("sqft")
}

func extractAggregation(text string) models.AggregationType {
	if !countCueRe.MatchString(text) {
		return models.AggregationNone
	}
	switch {
	case strings.Contains(text, "by county") || strings.Contains(text, "counties") ||
		strings.Contains(text, "county count") || strings.Contains(text, "each county"):
		return models.AggregationCountByCounty
	case strings.Contains(text, "by type") || strings.Contains(text, "by property type") ||
		strings.Contains(text, "types count"):
		return models.AggregationCountByType
	default:
		return models.AggregationCountTotal
	}
}

func extractOrdering(text string) *models.Ordering {
	switch {
	case strings.Contains(text, "cheapest") || strings.Contains(text, "lowest price") || strings.Contains(text, "budget"):
		return &models.Ordering{Column: schema.ColumnPrice}
	case strings.Contains(text, "most expensive") || strings.Contains(text, "highest price") || strings.Contains(text, "premium"):
		return &models.Ordering{Column: schema.ColumnPrice, Descending: true}
	case strings.Contains(text, "largest") || strings.Contains(text, "biggest"):
		return &models.Ordering{Column: schema.ColumnAcres, Descending: true}
	case strings.Contains(text, "smallest"):
		return &models.Ordering{Column: schema.ColumnAcres}
	}
	return nil
}

func extractLimit(text string) int {
	for _, re := range limitRes {
		if m := re.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}

// estimateResultBounds derives advisory volume expectations: the more
// independent filters, the tighter the band. With no signal at all any result
// count is acceptable.
func estimateResultBounds(c models.QueryConstraints) (int, *int) {
	if c.Aggregation != models.AggregationNone {
		if c.Aggregation == models.AggregationCountTotal {
			return 1, intPtr(1)
		}
		return 1, intPtr(200)
	}

	filters := 0
	if len(c.Counties) > 0 {
		filters++
	}
	if len(c.PropertyTypes) > 0 {
		filters++
	}
	if c.PriceRange != nil {
		filters++
	}
	if c.SizeRange != nil {
		filters++
	}

	switch {
	case filters >= 2:
		return 1, intPtr(100)
	case filters == 1:
		return 1, intPtr(500)
	default:
		return 0, nil
	}
}

func intPtr(v int) *int { return &v }

// parseAmount normalizes "1,250", "500k" and "1.2m" to a base dollar amount.
func parseAmount(raw string) float64 {
	raw = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""))
	multiplier := 1.0
	switch {
	case strings.HasSuffix(raw, "k"):
		multiplier = 1_000
		raw = strings.TrimSuffix(raw, "k")
	case strings.HasSuffix(raw, "m"):
		multiplier = 1_000_000
		raw = strings.TrimSuffix(raw, "m")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v * multiplier
}
