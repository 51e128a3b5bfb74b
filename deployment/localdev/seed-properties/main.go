// Command seed-properties generates a small Georgia listings fixture and
// optionally loads it straight into a local property database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/propstack/propquery/internal/propstore"
)

var counties = []string{"walton", "gwinnett", "fulton", "cobb", "dekalb", "barrow", "newton"}

var types = []struct {
	propertyType string
	subtype      string
	zoning       string
	minPrice     float64
	maxPrice     float64
}{
	{"retail", "gas_station", "C-2", 350_000, 2_200_000},
	{"retail", "convenience_store", "C-1", 250_000, 1_500_000},
	{"retail", "restaurant", "C-2", 300_000, 1_800_000},
	{"retail", "strip_center", "C-2", 900_000, 6_000_000},
	{"office", "medical_office", "O-I", 400_000, 3_000_000},
	{"land", "vacant_commercial", "AG", 90_000, 900_000},
}

func main() {
	var (
		out   string
		db    string
		count int
		seed  int64
	)
	flag.StringVar(&out, "out", "deployment/localdev/properties.seed.json", "Path for the generated fixture")
	flag.StringVar(&db, "db", "", "Optional sqlite database to load the fixture into")
	flag.IntVar(&count, "count", 120, "Number of listings to generate")
	flag.Int64Var(&seed, "seed", 42, "Random seed for reproducible fixtures")
	flag.Parse()

	rng := rand.New(rand.NewSource(seed))
	records := make([]propstore.PropertyRecord, 0, count)
	for i := 0; i < count; i++ {
		kind := types[rng.Intn(len(types))]
		county := counties[rng.Intn(len(counties))]
		price := kind.minPrice + rng.Float64()*(kind.maxPrice-kind.minPrice)
		acres := 0.3 + rng.Float64()*9.7
		sqft := 1200 + rng.Float64()*28_000

		records = append(records, propstore.PropertyRecord{
			ID:           fmt.Sprintf("seed-%04d", i+1),
			Name:         fmt.Sprintf("%s %s #%d", titleCase(county), kind.subtype, i+1),
			PropertyType: kind.propertyType,
			Subtype:      kind.subtype,
			City:         titleCase(county),
			State:        "Georgia",
			County:       titleCase(county),
			AskingPrice:  &price,
			SizeSqft:     &sqft,
			SizeAcres:    &acres,
			Zoning:       kind.zoning,
			ListingURL:   fmt.Sprintf("https://listings.example.com/seed-%04d", i+1),
			Status:       "active",
		})
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		log.Fatalf("encode fixture: %v", err)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		log.Fatalf("write fixture: %v", err)
	}
	log.Printf("wrote %d listings to %s", len(records), out)

	if db == "" {
		return
	}
	handle, err := propstore.Open(db)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer handle.Close()
	if err := propstore.Seed(context.Background(), handle, records); err != nil {
		log.Fatalf("load fixture: %v", err)
	}
	log.Printf("loaded %d listings into %s", len(records), db)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
