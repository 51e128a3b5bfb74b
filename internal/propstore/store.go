package propstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/propstack/propquery/internal/utils"
)

// Open initialises the property database at path and ensures the schema
// exists. An empty path opens an in-memory store, which tests rely on.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, utils.NewAppError("propstore.Open", "open property database", err)
	}
	// SQLite is single-writer, and pooled connections to :memory: would each
	// see their own empty database.
	db.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS properties (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	property_type TEXT NOT NULL,
	property_subtype TEXT,
	address_street TEXT,
	address_city TEXT,
	address_state TEXT DEFAULT 'Georgia',
	address_zip TEXT,
	address_county TEXT,
	latitude REAL,
	longitude REAL,
	asking_price REAL,
	price_per_sqft REAL,
	size_sqft REAL,
	size_acres REAL,
	lot_size_sqft REAL,
	year_built INTEGER,
	zoning TEXT,
	listing_date TEXT,
	listing_url TEXT,
	thumbnail_url TEXT,
	status TEXT,
	is_active INTEGER DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_properties_county ON properties(address_county);
CREATE INDEX IF NOT EXISTS idx_properties_type ON properties(property_type);
CREATE INDEX IF NOT EXISTS idx_properties_price ON properties(asking_price);`
	if _, err := db.Exec(ddl); err != nil {
		return utils.NewAppError("propstore.migrate", "create properties schema", err)
	}
	return nil
}

// PropertyRecord is the seed-fixture shape for one listing. Every field other
// than name and property_type may be absent.
type PropertyRecord struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	PropertyType string   `json:"property_type"`
	Subtype      string   `json:"property_subtype"`
	Street       string   `json:"address_street"`
	City         string   `json:"address_city"`
	State        string   `json:"address_state"`
	Zip          string   `json:"address_zip"`
	County       string   `json:"address_county"`
	AskingPrice  *float64 `json:"asking_price"`
	SizeSqft     *float64 `json:"size_sqft"`
	SizeAcres    *float64 `json:"size_acres"`
	LotSizeSqft  *float64 `json:"lot_size_sqft"`
	YearBuilt    *int     `json:"year_built"`
	Zoning       string   `json:"zoning"`
	ListingURL   string   `json:"listing_url"`
	ThumbnailURL string   `json:"thumbnail_url"`
	Status       string   `json:"status"`
}

// SeedFromFile loads a JSON array of property records into the store.
// Existing rows with the same id are replaced, so reseeding is idempotent.
func SeedFromFile(ctx context.Context, db *sql.DB, path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return utils.NewAppError("propstore.Seed", "read seed fixture", err)
	}
	var records []PropertyRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return utils.NewAppError("propstore.Seed", "decode seed fixture", err)
	}
	if err := Seed(ctx, db, records); err != nil {
		return err
	}
	logger.Info("property store seeded", slog.Int("records", len(records)), slog.String("path", path))
	return nil
}

// Seed inserts the given records inside one transaction.
func Seed(ctx context.Context, db *sql.DB, records []PropertyRecord) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return utils.NewAppError("propstore.Seed", "begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR REPLACE INTO properties (
	id, name, description, property_type, property_subtype,
	address_street, address_city, address_state, address_zip, address_county,
	asking_price, size_sqft, size_acres, lot_size_sqft, year_built,
	zoning, listing_date, listing_url, thumbnail_url, status, is_active
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`)
	if err != nil {
		return utils.NewAppError("propstore.Seed", "prepare insert", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx,
			rec.ID, rec.Name, rec.Description, rec.PropertyType, rec.Subtype,
			rec.Street, rec.City, rec.State, rec.Zip, rec.County,
			rec.AskingPrice, rec.SizeSqft, rec.SizeAcres, rec.LotSizeSqft, rec.YearBuilt,
			rec.Zoning, now, rec.ListingURL, rec.ThumbnailURL, rec.Status,
		); err != nil {
			return utils.NewAppError("propstore.Seed", "insert record", err)
		}
	}
	return tx.Commit()
}
