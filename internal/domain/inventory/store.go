package inventory

import (
	"context"
	"errors"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when a requested record doesn't exist.
	ErrNotFound = errors.New("inventory: not found")
	// ErrConflict is returned when a write violates a uniqueness or
	// reference constraint.
	ErrConflict = errors.New("inventory: conflict")
)

// Store is the outbound port for inventory data. Implementations:
// sqlite (production), and in-test fakes.
type Store interface {
	// Ping verifies the store is reachable. Called during engine startup.
	Ping(ctx context.Context) error

	ListParts(ctx context.Context, f PartFilter) ([]*Part, error)
	GetPart(ctx context.Context, id int64) (*Part, error)
	// SearchParts matches the query case-insensitively against part name,
	// description and IPN.
	SearchParts(ctx context.Context, query string, limit int) ([]*Part, error)
	CreatePart(ctx context.Context, p NewPart) (*Part, error)
	UpdatePart(ctx context.Context, id int64, u PartUpdate) (*Part, error)
	// DeleteParts removes the given parts and their stock. Returns the
	// IDs actually deleted.
	DeleteParts(ctx context.Context, ids []int64) ([]int64, error)

	ListCategories(ctx context.Context, parentID *int64) ([]*Category, error)
	GetCategory(ctx context.Context, id int64) (*Category, error)
	CategoryTree(ctx context.Context, rootID *int64) ([]*CategoryNode, error)

	ListLocations(ctx context.Context, parentID *int64) ([]*Location, error)
	GetLocation(ctx context.Context, id int64) (*Location, error)
	LocationTree(ctx context.Context, rootID *int64) ([]*LocationNode, error)

	ListStockItems(ctx context.Context, f StockFilter) ([]*StockItem, error)
	GetStockItem(ctx context.Context, id int64) (*StockItem, error)
	// AdjustStock adds delta (may be negative) to the item's quantity.
	// The resulting quantity must not go below zero.
	AdjustStock(ctx context.Context, id int64, delta float64, notes string) (*StockItem, error)
	// TransferStock moves the item to another location.
	TransferStock(ctx context.Context, id, locationID int64, notes string) (*StockItem, error)

	ListBOMItems(ctx context.Context, partID *int64, limit, offset int) ([]*BOMItem, error)
	BOMForPart(ctx context.Context, partID int64) ([]*BOMItem, error)

	ListTags(ctx context.Context) ([]*Tag, error)
	SearchTags(ctx context.Context, query string) ([]*Tag, error)

	// StockByCategoryAndLocation aggregates stock quantities per
	// (category, location) pair, optionally narrowed to one category
	// and/or one location.
	StockByCategoryAndLocation(ctx context.Context, categoryID, locationID *int64) ([]*StockBreakdown, error)
}
