// Package sqlite implements the inventory store on an embedded SQLite
// database using the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/stockpile-hq/stockpile/internal/domain/inventory"
)

// defaultListLimit bounds list queries when the caller passes no limit.
const defaultListLimit = 100

// maxListLimit is the hard cap on a single list query.
const maxListLimit = 1000

// Store is the sqlite-backed inventory store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and bootstraps the schema.
// Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// The modernc driver serializes writes per connection; a single
	// connection avoids SQLITE_BUSY under concurrent tool calls.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.createSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) createSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS categories (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	parent_id   INTEGER REFERENCES categories(id) ON DELETE SET NULL
);
CREATE TABLE IF NOT EXISTS locations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	parent_id   INTEGER REFERENCES locations(id) ON DELETE SET NULL
);
CREATE TABLE IF NOT EXISTS parts (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category_id INTEGER REFERENCES categories(id) ON DELETE SET NULL,
	ipn         TEXT NOT NULL DEFAULT '',
	revision    TEXT NOT NULL DEFAULT '',
	units       TEXT NOT NULL DEFAULT '',
	active      INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS stock_items (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	part_id     INTEGER NOT NULL REFERENCES parts(id) ON DELETE CASCADE,
	location_id INTEGER REFERENCES locations(id) ON DELETE SET NULL,
	quantity    REAL NOT NULL DEFAULT 0,
	serial      TEXT NOT NULL DEFAULT '',
	batch       TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS bom_items (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	part_id     INTEGER NOT NULL REFERENCES parts(id) ON DELETE CASCADE,
	sub_part_id INTEGER NOT NULL REFERENCES parts(id) ON DELETE CASCADE,
	quantity    REAL NOT NULL DEFAULT 1,
	reference   TEXT NOT NULL DEFAULT '',
	optional    INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS tags (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS part_tags (
	part_id INTEGER NOT NULL REFERENCES parts(id) ON DELETE CASCADE,
	tag_id  INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (part_id, tag_id)
);
CREATE INDEX IF NOT EXISTS idx_parts_category ON parts(category_id);
CREATE INDEX IF NOT EXISTS idx_stock_part ON stock_items(part_id);
CREATE INDEX IF NOT EXISTS idx_stock_location ON stock_items(location_id);
CREATE INDEX IF NOT EXISTS idx_bom_part ON bom_items(part_id);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// partSelect is the shared projection for part rows, including the
// aggregated total stock.
const partSelect = `
SELECT p.id, p.name, p.description, p.category_id, p.ipn, p.revision, p.units, p.active,
       COALESCE((SELECT SUM(quantity) FROM stock_items WHERE part_id = p.id), 0)
FROM parts p`

func scanPart(row interface{ Scan(...any) error }) (*inventory.Part, error) {
	var p inventory.Part
	var category sql.NullInt64
	var active int
	err := row.Scan(&p.ID, &p.Name, &p.Description, &category, &p.IPN, &p.Revision, &p.Units, &active, &p.TotalStock)
	if err != nil {
		return nil, err
	}
	if category.Valid {
		p.CategoryID = &category.Int64
	}
	p.Active = active != 0
	p.Tags = []string{}
	return &p, nil
}

// attachTags fills the Tags field for the given parts with one query.
func (s *Store) attachTags(ctx context.Context, parts []*inventory.Part) error {
	if len(parts) == 0 {
		return nil
	}
	byID := make(map[int64]*inventory.Part, len(parts))
	placeholders := make([]string, 0, len(parts))
	args := make([]any, 0, len(parts))
	for _, p := range parts {
		byID[p.ID] = p
		placeholders = append(placeholders, "?")
		args = append(args, p.ID)
	}

	query := fmt.Sprintf(`
SELECT pt.part_id, t.name
FROM part_tags pt JOIN tags t ON t.id = pt.tag_id
WHERE pt.part_id IN (%s)
ORDER BY t.name`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("load part tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var partID int64
		var name string
		if err := rows.Scan(&partID, &name); err != nil {
			return err
		}
		if p, ok := byID[partID]; ok {
			p.Tags = append(p.Tags, name)
		}
	}
	return rows.Err()
}

// ListParts returns parts matching the filter, ordered by id.
func (s *Store) ListParts(ctx context.Context, f inventory.PartFilter) ([]*inventory.Part, error) {
	var where []string
	var args []any
	if f.CategoryID != nil {
		where = append(where, "p.category_id = ?")
		args = append(args, *f.CategoryID)
	}
	if f.Active != nil {
		where = append(where, "p.active = ?")
		args = append(args, boolToInt(*f.Active))
	}
	for _, tag := range f.Tags {
		where = append(where, `EXISTS (
			SELECT 1 FROM part_tags pt JOIN tags t ON t.id = pt.tag_id
			WHERE pt.part_id = p.id AND t.name = ?)`)
		args = append(args, tag)
	}

	query := partSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.id LIMIT ? OFFSET ?"
	args = append(args, clampLimit(f.Limit), max(f.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list parts: %w", err)
	}
	defer rows.Close()

	var parts []*inventory.Part
	for rows.Next() {
		p, err := scanPart(rows)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachTags(ctx, parts); err != nil {
		return nil, err
	}
	return parts, nil
}

// GetPart returns one part by id.
func (s *Store) GetPart(ctx context.Context, id int64) (*inventory.Part, error) {
	row := s.db.QueryRowContext(ctx, partSelect+" WHERE p.id = ?", id)
	p, err := scanPart(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: part %d", inventory.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get part: %w", err)
	}
	if err := s.attachTags(ctx, []*inventory.Part{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// SearchParts matches query case-insensitively against name, description
// and IPN.
func (s *Store) SearchParts(ctx context.Context, query string, limit int) ([]*inventory.Part, error) {
	like := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx, partSelect+`
WHERE p.name LIKE ? ESCAPE '\' OR p.description LIKE ? ESCAPE '\' OR p.ipn LIKE ? ESCAPE '\'
ORDER BY p.id LIMIT ?`, like, like, like, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("search parts: %w", err)
	}
	defer rows.Close()

	var parts []*inventory.Part
	for rows.Next() {
		p, err := scanPart(rows)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachTags(ctx, parts); err != nil {
		return nil, err
	}
	return parts, nil
}

// CreatePart inserts a new part and returns it.
func (s *Store) CreatePart(ctx context.Context, p inventory.NewPart) (*inventory.Part, error) {
	if p.CategoryID != nil {
		if _, err := s.GetCategory(ctx, *p.CategoryID); err != nil {
			return nil, fmt.Errorf("%w: category %d", inventory.ErrConflict, *p.CategoryID)
		}
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO parts (name, description, category_id, ipn, revision, units, active)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Description, nullableID(p.CategoryID), p.IPN, p.Revision, p.Units, boolToInt(p.Active))
	if err != nil {
		return nil, fmt.Errorf("create part: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetPart(ctx, id)
}

// UpdatePart applies the non-nil fields of u to the part.
func (s *Store) UpdatePart(ctx context.Context, id int64, u inventory.PartUpdate) (*inventory.Part, error) {
	var sets []string
	var args []any
	appendSet := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if u.Name != nil {
		appendSet("name", *u.Name)
	}
	if u.Description != nil {
		appendSet("description", *u.Description)
	}
	if u.Active != nil {
		appendSet("active", boolToInt(*u.Active))
	}
	if u.IPN != nil {
		appendSet("ipn", *u.IPN)
	}
	if u.Revision != nil {
		appendSet("revision", *u.Revision)
	}
	if u.Units != nil {
		appendSet("units", *u.Units)
	}
	if len(sets) == 0 {
		return s.GetPart(ctx, id)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, "UPDATE parts SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("update part: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: part %d", inventory.ErrNotFound, id)
	}
	return s.GetPart(ctx, id)
}

// DeleteParts removes the given parts; stock and BOM lines cascade.
func (s *Store) DeleteParts(ctx context.Context, ids []int64) ([]int64, error) {
	deleted := make([]int64, 0, len(ids))
	for _, id := range ids {
		res, err := s.db.ExecContext(ctx, "DELETE FROM parts WHERE id = ?", id)
		if err != nil {
			return deleted, fmt.Errorf("delete part %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

// escapeLike escapes LIKE wildcards in user-supplied search text.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

var _ inventory.Store = (*Store)(nil)
