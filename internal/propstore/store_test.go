package propstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSeedFromFile(t *testing.T) {
	dir := t.TempDir()
	fixture := filepath.Join(dir, "properties.json")
	payload := `[
  {"name": "Walton Fuel Stop", "property_type": "retail", "property_subtype": "gas_station", "address_county": "Walton", "asking_price": 450000},
  {"id": "fixed-id", "name": "Fulton Office Park", "property_type": "office", "address_county": "Fulton"}
]`
	if err := os.WriteFile(fixture, []byte(payload), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	db, err := Open(filepath.Join(dir, "props.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := SeedFromFile(context.Background(), db, fixture, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Reseeding replaces by id instead of duplicating.
	if err := SeedFromFile(context.Background(), db, fixture, nil); err != nil {
		t.Fatalf("reseed: %v", err)
	}

	var count int
	row := db.QueryRow("SELECT COUNT(*) FROM properties WHERE id = 'fixed-id'")
	if err := row.Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row for fixed id, got %d", count)
	}

	var missing int
	row = db.QueryRow("SELECT COUNT(*) FROM properties")
	if err := row.Scan(&missing); err != nil {
		t.Fatalf("total count: %v", err)
	}
	if missing != 3 {
		// The record without an id gets a fresh uuid per load.
		t.Fatalf("expected 3 rows after reseed, got %d", missing)
	}
}

func TestSeedFromFileMissingFixture(t *testing.T) {
	db, err := Open("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := SeedFromFile(context.Background(), db, "does-not-exist.json", nil); err == nil {
		t.Fatalf("expected error for missing fixture")
	}
}
