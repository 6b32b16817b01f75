package sqlite

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixtures is the YAML document the seed command loads into the store.
type Fixtures struct {
	Categories []FixtureCategory  `yaml:"categories"`
	Locations  []FixtureLocation  `yaml:"locations"`
	Parts      []FixturePart      `yaml:"parts"`
	StockItems []FixtureStockItem `yaml:"stock_items"`
	BOMItems   []FixtureBOMItem   `yaml:"bom_items"`
}

type FixtureCategory struct {
	ID          int64  `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Parent      *int64 `yaml:"parent"`
}

type FixtureLocation struct {
	ID          int64  `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Parent      *int64 `yaml:"parent"`
}

type FixturePart struct {
	ID          int64    `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Category    *int64   `yaml:"category"`
	IPN         string   `yaml:"ipn"`
	Revision    string   `yaml:"revision"`
	Units       string   `yaml:"units"`
	Active      *bool    `yaml:"active"`
	Tags        []string `yaml:"tags"`
}

type FixtureStockItem struct {
	ID       int64   `yaml:"id"`
	Part     int64   `yaml:"part"`
	Location *int64  `yaml:"location"`
	Quantity float64 `yaml:"quantity"`
	Serial   string  `yaml:"serial"`
	Batch    string  `yaml:"batch"`
}

type FixtureBOMItem struct {
	ID        int64   `yaml:"id"`
	Part      int64   `yaml:"part"`
	SubPart   int64   `yaml:"sub_part"`
	Quantity  float64 `yaml:"quantity"`
	Reference string  `yaml:"reference"`
	Optional  bool    `yaml:"optional"`
}

// LoadFixtures parses a fixture file from disk.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures(data)
}

// ParseFixtures parses a fixture document.
func ParseFixtures(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return &f, nil
}

// Seed loads the fixtures into the store inside one transaction.
// Records keep their fixture IDs so cross-references stay stable.
func (s *Store) Seed(ctx context.Context, f *Fixtures) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range f.Categories {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO categories (id, name, description, parent_id) VALUES (?, ?, ?, ?)",
			c.ID, c.Name, c.Description, nullableID(c.Parent))
		if err != nil {
			return fmt.Errorf("seed category %q: %w", c.Name, err)
		}
	}
	for _, l := range f.Locations {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO locations (id, name, description, parent_id) VALUES (?, ?, ?, ?)",
			l.ID, l.Name, l.Description, nullableID(l.Parent))
		if err != nil {
			return fmt.Errorf("seed location %q: %w", l.Name, err)
		}
	}
	for _, p := range f.Parts {
		active := true
		if p.Active != nil {
			active = *p.Active
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO parts (id, name, description, category_id, ipn, revision, units, active)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.Description, nullableID(p.Category), p.IPN, p.Revision, p.Units, boolToInt(active))
		if err != nil {
			return fmt.Errorf("seed part %q: %w", p.Name, err)
		}
		for _, tag := range p.Tags {
			if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO tags (name) VALUES (?)", tag); err != nil {
				return fmt.Errorf("seed tag %q: %w", tag, err)
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO part_tags (part_id, tag_id) SELECT ?, id FROM tags WHERE name = ?",
				p.ID, tag)
			if err != nil {
				return fmt.Errorf("seed tag %q on part %q: %w", tag, p.Name, err)
			}
		}
	}
	for _, it := range f.StockItems {
		_, err := tx.ExecContext(ctx, `
INSERT INTO stock_items (id, part_id, location_id, quantity, serial, batch)
VALUES (?, ?, ?, ?, ?, ?)`,
			it.ID, it.Part, nullableID(it.Location), it.Quantity, it.Serial, it.Batch)
		if err != nil {
			return fmt.Errorf("seed stock item %d: %w", it.ID, err)
		}
	}
	for _, b := range f.BOMItems {
		_, err := tx.ExecContext(ctx, `
INSERT INTO bom_items (id, part_id, sub_part_id, quantity, reference, optional)
VALUES (?, ?, ?, ?, ?, ?)`,
			b.ID, b.Part, b.SubPart, b.Quantity, b.Reference, boolToInt(b.Optional))
		if err != nil {
			return fmt.Errorf("seed bom item %d: %w", b.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed transaction: %w", err)
	}
	return nil
}
