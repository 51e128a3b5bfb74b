package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Canonical column and table names for the property store.
const (
	TableProperties = "properties"

	ColumnID          = "id"
	ColumnName        = "name"
	ColumnType        = "property_type"
	ColumnSubtype     = "property_subtype"
	ColumnCounty      = "address_county"
	ColumnPrice       = "asking_price"
	ColumnAcres       = "size_acres"
	ColumnSqft        = "size_sqft"
	ColumnBuildingSq  = "lot_size_sqft"
	ColumnStatus      = "status"
	ColumnZoning      = "zoning"
	ColumnListingURL  = "listing_url"
	ColumnCountAlias  = "property_count"
	ColumnTotalsAlias = "total_properties"
)

// EssentialColumns are always wanted in non-aggregate SELECT lists so the
// gallery layer can render listings without a second lookup.
var EssentialColumns = []string{ColumnListingURL, ColumnCounty, ColumnZoning}

// Mapper holds the static vocabulary linking user phrasing to schema fields.
type Mapper struct {
	counties     map[string]struct{}
	typeSynonyms map[string][]string
	sizeColumns  map[string]string
}

// NewMapper builds the default Georgia property vocabulary.
func NewMapper() *Mapper {
	m := &Mapper{
		counties:     make(map[string]struct{}, len(georgiaCounties)),
		typeSynonyms: make(map[string][]string, len(propertyTypeSynonyms)),
		sizeColumns: map[string]string{
			"acres":         ColumnAcres,
			"square feet":   ColumnSqft,
			"sqft":          ColumnSqft,
			"lot size":      ColumnSqft,
			"building size": ColumnBuildingSq,
		},
	}
	for _, county := range georgiaCounties {
		m.counties[county] = struct{}{}
	}
	for canonical, synonyms := range propertyTypeSynonyms {
		m.typeSynonyms[canonical] = synonyms
	}
	return m
}

// Counties returns the known county names in sorted order.
func (m *Mapper) Counties() []string {
	out := make([]string, 0, len(m.counties))
	for county := range m.counties {
		out = append(out, county)
	}
	sort.Strings(out)
	return out
}

// KnownCounty reports whether the lower-cased name is in the vocabulary.
func (m *Mapper) KnownCounty(name string) bool {
	_, ok := m.counties[strings.ToLower(name)]
	return ok
}

// PropertyTypes returns the canonical property-type keys in sorted order.
func (m *Mapper) PropertyTypes() []string {
	out := make([]string, 0, len(m.typeSynonyms))
	for canonical := range m.typeSynonyms {
		out = append(out, canonical)
	}
	sort.Strings(out)
	return out
}

// Synonyms returns the expansion set for a canonical property type.
func (m *Mapper) Synonyms(canonical string) []string {
	return m.typeSynonyms[strings.ToLower(canonical)]
}

// SizeColumn maps a size phrasing ("acres", "sqft", ...) to its column.
func (m *Mapper) SizeColumn(unit string) string {
	if col, ok := m.sizeColumns[strings.ToLower(unit)]; ok {
		return col
	}
	return ColumnAcres
}

// CountyCondition renders the canonical location filter for a county.
func (m *Mapper) CountyCondition(county string) string {
	return fmt.Sprintf("%s LIKE '%%%s%%'", ColumnCounty, strings.ToLower(county))
}

// TypeCondition renders the broadened OR-group filter for a canonical type,
// matching both property_type and property_subtype across all synonyms.
func (m *Mapper) TypeCondition(canonical string) string {
	synonyms := m.Synonyms(canonical)
	if len(synonyms) == 0 {
		synonyms = []string{strings.ToLower(canonical)}
	}
	parts := make([]string, 0, len(synonyms)*2)
	for _, syn := range synonyms {
		parts = append(parts,
			fmt.Sprintf("%s LIKE '%%%s%%'", ColumnType, syn),
			fmt.Sprintf("%s LIKE '%%%s%%'", ColumnSubtype, syn),
		)
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// NarrowTypeCondition renders the single-term filter a naive draft would use.
func (m *Mapper) NarrowTypeCondition(canonical string) string {
	return fmt.Sprintf("%s LIKE '%%%s%%'", ColumnType, strings.ToLower(canonical))
}

var propertyTypeSynonyms = map[string][]string{
	"gas station":       {"gas", "gasoline", "fuel", "petrol", "station"},
	"convenience store": {"convenience", "c-store", "corner", "mini mart", "quick mart"},
	"restaurant":        {"restaurant", "dining", "food", "eatery", "qsr", "fast food"},
	"retail":            {"retail", "store", "shop", "commercial"},
	"office":            {"office", "professional"},
	"vacant":            {"vacant", "empty"},
}

var georgiaCounties = []string{
	"appling", "atkinson", "bacon", "baker", "baldwin", "banks", "barrow",
	"bartow", "ben hill", "berrien", "bibb", "bleckley", "brantley", "brooks",
	"bryan", "bulloch", "burke", "butts", "calhoun", "camden", "candler",
	"carroll", "catoosa", "charlton", "chatham", "chattahoochee", "chattooga",
	"cherokee", "clarke", "clay", "clayton", "clinch", "cobb", "coffee",
	"colquitt", "columbia", "cook", "coweta", "crawford", "crisp", "dade",
	"dawson", "decatur", "dekalb", "dodge", "dooly", "dougherty",
	"douglas", "early", "echols", "effingham", "elbert", "emanuel", "evans",
	"fannin", "fayette", "floyd", "forsyth", "franklin", "fulton", "gilmer",
	"glascock", "glynn", "gordon", "grady", "greene", "gwinnett", "habersham",
	"hall", "hancock", "haralson", "harris", "hart", "heard", "henry",
	"houston", "irwin", "jackson", "jasper", "jeff davis", "jefferson",
	"jenkins", "johnson", "jones", "lamar", "lanier", "laurens", "lee",
	"liberty", "lincoln", "long", "lowndes", "lumpkin", "macon", "madison",
	"marion", "mcduffie", "mcintosh", "meriwether", "miller", "mitchell",
	"monroe", "montgomery", "morgan", "murray", "muscogee", "newton", "oconee",
	"oglethorpe", "paulding", "peach", "pickens", "pierce", "pike", "polk",
	"pulaski", "putnam", "quitman", "rabun", "randolph", "richmond", "rockdale",
	"schley", "screven", "seminole", "spalding", "stephens", "stewart",
	"sumter", "talbot", "taliaferro", "tattnall", "taylor", "telfair",
	"terrell", "thomas", "tift", "toombs", "towns", "treutlen", "troup",
	"turner", "twiggs", "union", "upson", "walker", "walton", "ware",
	"warren", "washington", "wayne", "webster", "wheeler", "white", "whitfield",
	"wilcox", "wilkes", "wilkinson", "worth",
}
