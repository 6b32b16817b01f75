// Package inventory defines the read/write model for the inventory data the
// tools expose: parts, stock items, categories, locations, BOM lines and
// tags. The store port is implemented by the sqlite adapter.
package inventory

// Part is a distinct item that can be stocked and assembled.
type Part struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	CategoryID  *int64   `json:"category"`
	IPN         string   `json:"IPN"`
	Revision    string   `json:"revision"`
	Units       string   `json:"units"`
	Active      bool     `json:"active"`
	TotalStock  float64  `json:"total_stock"`
	Tags        []string `json:"tags"`
}

// Category is a node in the part category tree.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentID    *int64 `json:"parent"`
	PartCount   int64  `json:"part_count"`
}

// CategoryNode is a category with its resolved children, for tree queries.
type CategoryNode struct {
	Category
	Children []*CategoryNode `json:"children"`
}

// Location is a node in the stock location tree.
type Location struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentID    *int64 `json:"parent"`
	ItemCount   int64  `json:"item_count"`
}

// LocationNode is a location with its resolved children.
type LocationNode struct {
	Location
	Children []*LocationNode `json:"children"`
}

// StockItem is a quantity of one part at one location.
type StockItem struct {
	ID         int64   `json:"id"`
	PartID     int64   `json:"part"`
	PartName   string  `json:"part_name"`
	LocationID *int64  `json:"location"`
	Quantity   float64 `json:"quantity"`
	Serial     string  `json:"serial"`
	Batch      string  `json:"batch"`
}

// BOMItem is one line of a part's bill of materials: the assembly needs
// Quantity of SubPart per unit built.
type BOMItem struct {
	ID          int64   `json:"id"`
	PartID      int64   `json:"part"`
	SubPartID   int64   `json:"sub_part"`
	SubPartName string  `json:"sub_part_name"`
	Quantity    float64 `json:"quantity"`
	Reference   string  `json:"reference"`
	Optional    bool    `json:"optional"`
}

// Tag is a free-form label attached to parts.
type Tag struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	PartCount int64  `json:"part_count"`
}

// PartFilter narrows list_parts queries. Nil fields are ignored.
type PartFilter struct {
	CategoryID *int64
	Active     *bool
	// Tags restricts to parts carrying ALL of the given tag names.
	Tags   []string
	Limit  int
	Offset int
}

// StockFilter narrows list_stock_items queries.
type StockFilter struct {
	PartID     *int64
	LocationID *int64
	Limit      int
	Offset     int
}

// NewPart carries the fields accepted when creating a part.
type NewPart struct {
	Name        string
	Description string
	CategoryID  *int64
	IPN         string
	Revision    string
	Units       string
	Active      bool
}

// PartUpdate carries the mutable part fields; nil means "leave unchanged".
type PartUpdate struct {
	Name        *string
	Description *string
	Active      *bool
	IPN         *string
	Revision    *string
	Units       *string
}

// StockBreakdown is one row of the combinatory stock report: total quantity
// of parts from one category at one location.
type StockBreakdown struct {
	CategoryID   *int64  `json:"category"`
	CategoryName string  `json:"category_name"`
	LocationID   *int64  `json:"location"`
	LocationName string  `json:"location_name"`
	Quantity     float64 `json:"quantity"`
	ItemCount    int64   `json:"item_count"`
}
