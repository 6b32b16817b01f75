package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/stockpile-hq/stockpile/internal/domain/inventory"
)

const stockSelect = `
SELECT s.id, s.part_id, p.name, s.location_id, s.quantity, s.serial, s.batch
FROM stock_items s JOIN parts p ON p.id = s.part_id`

func scanStockItem(row interface{ Scan(...any) error }) (*inventory.StockItem, error) {
	var it inventory.StockItem
	var location sql.NullInt64
	err := row.Scan(&it.ID, &it.PartID, &it.PartName, &location, &it.Quantity, &it.Serial, &it.Batch)
	if err != nil {
		return nil, err
	}
	if location.Valid {
		it.LocationID = &location.Int64
	}
	return &it, nil
}

// ListStockItems returns stock items matching the filter, ordered by id.
func (s *Store) ListStockItems(ctx context.Context, f inventory.StockFilter) ([]*inventory.StockItem, error) {
	var where []string
	var args []any
	if f.PartID != nil {
		where = append(where, "s.part_id = ?")
		args = append(args, *f.PartID)
	}
	if f.LocationID != nil {
		where = append(where, "s.location_id = ?")
		args = append(args, *f.LocationID)
	}

	query := stockSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY s.id LIMIT ? OFFSET ?"
	args = append(args, clampLimit(f.Limit), max(f.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stock items: %w", err)
	}
	defer rows.Close()

	var items []*inventory.StockItem
	for rows.Next() {
		it, err := scanStockItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetStockItem returns one stock item by id.
func (s *Store) GetStockItem(ctx context.Context, id int64) (*inventory.StockItem, error) {
	it, err := scanStockItem(s.db.QueryRowContext(ctx, stockSelect+" WHERE s.id = ?", id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: stock item %d", inventory.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get stock item: %w", err)
	}
	return it, nil
}

// AdjustStock adds delta to the item's quantity. Quantities cannot go
// below zero; such an adjustment returns ErrConflict.
func (s *Store) AdjustStock(ctx context.Context, id int64, delta float64, notes string) (*inventory.StockItem, error) {
	it, err := s.GetStockItem(ctx, id)
	if err != nil {
		return nil, err
	}
	next := it.Quantity + delta
	if next < 0 {
		return nil, fmt.Errorf("%w: adjustment of %g would take stock item %d below zero (have %g)",
			inventory.ErrConflict, delta, id, it.Quantity)
	}
	if _, err := s.db.ExecContext(ctx, "UPDATE stock_items SET quantity = ? WHERE id = ?", next, id); err != nil {
		return nil, fmt.Errorf("adjust stock: %w", err)
	}
	it.Quantity = next
	return it, nil
}

// TransferStock moves the item to another location.
func (s *Store) TransferStock(ctx context.Context, id, locationID int64, notes string) (*inventory.StockItem, error) {
	if _, err := s.GetLocation(ctx, locationID); err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, "UPDATE stock_items SET location_id = ? WHERE id = ?", locationID, id)
	if err != nil {
		return nil, fmt.Errorf("transfer stock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: stock item %d", inventory.ErrNotFound, id)
	}
	return s.GetStockItem(ctx, id)
}

const bomSelect = `
SELECT b.id, b.part_id, b.sub_part_id, sp.name, b.quantity, b.reference, b.optional
FROM bom_items b JOIN parts sp ON sp.id = b.sub_part_id`

func scanBOMItem(row interface{ Scan(...any) error }) (*inventory.BOMItem, error) {
	var b inventory.BOMItem
	var optional int
	err := row.Scan(&b.ID, &b.PartID, &b.SubPartID, &b.SubPartName, &b.Quantity, &b.Reference, &optional)
	if err != nil {
		return nil, err
	}
	b.Optional = optional != 0
	return &b, nil
}

// ListBOMItems returns BOM lines, optionally narrowed to one assembly.
func (s *Store) ListBOMItems(ctx context.Context, partID *int64, limit, offset int) ([]*inventory.BOMItem, error) {
	query := bomSelect
	var args []any
	if partID != nil {
		query += " WHERE b.part_id = ?"
		args = append(args, *partID)
	}
	query += " ORDER BY b.id LIMIT ? OFFSET ?"
	args = append(args, clampLimit(limit), max(offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bom items: %w", err)
	}
	defer rows.Close()

	var items []*inventory.BOMItem
	for rows.Next() {
		b, err := scanBOMItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

// BOMForPart returns the full bill of materials of one assembly. The part
// must exist, even if its BOM is empty.
func (s *Store) BOMForPart(ctx context.Context, partID int64) ([]*inventory.BOMItem, error) {
	if _, err := s.GetPart(ctx, partID); err != nil {
		return nil, err
	}
	items, err := s.ListBOMItems(ctx, &partID, maxListLimit, 0)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*inventory.BOMItem{}
	}
	return items, nil
}

// ListTags returns all tags with their part counts, ordered by name.
func (s *Store) ListTags(ctx context.Context) ([]*inventory.Tag, error) {
	return s.queryTags(ctx, "", nil)
}

// SearchTags matches the query case-insensitively against tag names.
func (s *Store) SearchTags(ctx context.Context, query string) ([]*inventory.Tag, error) {
	like := "%" + escapeLike(query) + "%"
	return s.queryTags(ctx, `WHERE t.name LIKE ? ESCAPE '\'`, []any{like})
}

func (s *Store) queryTags(ctx context.Context, where string, args []any) ([]*inventory.Tag, error) {
	query := `
SELECT t.id, t.name, (SELECT COUNT(*) FROM part_tags WHERE tag_id = t.id)
FROM tags t ` + where + " ORDER BY t.name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	var tags []*inventory.Tag
	for rows.Next() {
		var t inventory.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.PartCount); err != nil {
			return nil, err
		}
		tags = append(tags, &t)
	}
	return tags, rows.Err()
}

// StockByCategoryAndLocation aggregates stock per (category, location)
// pair, ordered by category then location name.
func (s *Store) StockByCategoryAndLocation(ctx context.Context, categoryID, locationID *int64) ([]*inventory.StockBreakdown, error) {
	var where []string
	var args []any
	if categoryID != nil {
		where = append(where, "p.category_id = ?")
		args = append(args, *categoryID)
	}
	if locationID != nil {
		where = append(where, "s.location_id = ?")
		args = append(args, *locationID)
	}

	query := `
SELECT p.category_id, COALESCE(c.name, ''), s.location_id, COALESCE(l.name, ''),
       SUM(s.quantity), COUNT(*)
FROM stock_items s
JOIN parts p ON p.id = s.part_id
LEFT JOIN categories c ON c.id = p.category_id
LEFT JOIN locations l ON l.id = s.location_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += `
GROUP BY p.category_id, s.location_id
ORDER BY COALESCE(c.name, ''), COALESCE(l.name, '')`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("stock breakdown: %w", err)
	}
	defer rows.Close()

	var out []*inventory.StockBreakdown
	for rows.Next() {
		var b inventory.StockBreakdown
		var cat, loc sql.NullInt64
		if err := rows.Scan(&cat, &b.CategoryName, &loc, &b.LocationName, &b.Quantity, &b.ItemCount); err != nil {
			return nil, err
		}
		if cat.Valid {
			b.CategoryID = &cat.Int64
		}
		if loc.Valid {
			b.LocationID = &loc.Int64
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}
