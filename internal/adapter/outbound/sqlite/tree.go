package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stockpile-hq/stockpile/internal/domain/inventory"
)

const categorySelect = `
SELECT c.id, c.name, c.description, c.parent_id,
       (SELECT COUNT(*) FROM parts WHERE category_id = c.id)
FROM categories c`

func scanCategory(row interface{ Scan(...any) error }) (*inventory.Category, error) {
	var c inventory.Category
	var parent sql.NullInt64
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &parent, &c.PartCount); err != nil {
		return nil, err
	}
	if parent.Valid {
		c.ParentID = &parent.Int64
	}
	return &c, nil
}

// ListCategories returns categories, optionally restricted to the children
// of parentID.
func (s *Store) ListCategories(ctx context.Context, parentID *int64) ([]*inventory.Category, error) {
	query := categorySelect
	var args []any
	if parentID != nil {
		query += " WHERE c.parent_id = ?"
		args = append(args, *parentID)
	}
	query += " ORDER BY c.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []*inventory.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// GetCategory returns one category by id.
func (s *Store) GetCategory(ctx context.Context, id int64) (*inventory.Category, error) {
	c, err := scanCategory(s.db.QueryRowContext(ctx, categorySelect+" WHERE c.id = ?", id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: category %d", inventory.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// CategoryTree returns the category hierarchy rooted at rootID, or the
// full forest of top-level categories when rootID is nil.
func (s *Store) CategoryTree(ctx context.Context, rootID *int64) ([]*inventory.CategoryNode, error) {
	all, err := s.ListCategories(ctx, nil)
	if err != nil {
		return nil, err
	}

	nodes := make(map[int64]*inventory.CategoryNode, len(all))
	for _, c := range all {
		nodes[c.ID] = &inventory.CategoryNode{Category: *c, Children: []*inventory.CategoryNode{}}
	}
	var roots []*inventory.CategoryNode
	for _, c := range all {
		n := nodes[c.ID]
		if c.ParentID != nil {
			if parent, ok := nodes[*c.ParentID]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}

	if rootID == nil {
		return roots, nil
	}
	root, ok := nodes[*rootID]
	if !ok {
		return nil, fmt.Errorf("%w: category %d", inventory.ErrNotFound, *rootID)
	}
	return []*inventory.CategoryNode{root}, nil
}

const locationSelect = `
SELECT l.id, l.name, l.description, l.parent_id,
       (SELECT COUNT(*) FROM stock_items WHERE location_id = l.id)
FROM locations l`

func scanLocation(row interface{ Scan(...any) error }) (*inventory.Location, error) {
	var l inventory.Location
	var parent sql.NullInt64
	if err := row.Scan(&l.ID, &l.Name, &l.Description, &parent, &l.ItemCount); err != nil {
		return nil, err
	}
	if parent.Valid {
		l.ParentID = &parent.Int64
	}
	return &l, nil
}

// ListLocations returns locations, optionally restricted to the children
// of parentID.
func (s *Store) ListLocations(ctx context.Context, parentID *int64) ([]*inventory.Location, error) {
	query := locationSelect
	var args []any
	if parentID != nil {
		query += " WHERE l.parent_id = ?"
		args = append(args, *parentID)
	}
	query += " ORDER BY l.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var locs []*inventory.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		locs = append(locs, l)
	}
	return locs, rows.Err()
}

// GetLocation returns one location by id.
func (s *Store) GetLocation(ctx context.Context, id int64) (*inventory.Location, error) {
	l, err := scanLocation(s.db.QueryRowContext(ctx, locationSelect+" WHERE l.id = ?", id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: location %d", inventory.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	return l, nil
}

// LocationTree returns the location hierarchy rooted at rootID, or the
// full forest when rootID is nil.
func (s *Store) LocationTree(ctx context.Context, rootID *int64) ([]*inventory.LocationNode, error) {
	all, err := s.ListLocations(ctx, nil)
	if err != nil {
		return nil, err
	}

	nodes := make(map[int64]*inventory.LocationNode, len(all))
	for _, l := range all {
		nodes[l.ID] = &inventory.LocationNode{Location: *l, Children: []*inventory.LocationNode{}}
	}
	var roots []*inventory.LocationNode
	for _, l := range all {
		n := nodes[l.ID]
		if l.ParentID != nil {
			if parent, ok := nodes[*l.ParentID]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}

	if rootID == nil {
		return roots, nil
	}
	root, ok := nodes[*rootID]
	if !ok {
		return nil, fmt.Errorf("%w: location %d", inventory.ErrNotFound, *rootID)
	}
	return []*inventory.LocationNode{root}, nil
}
