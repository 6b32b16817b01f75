package service

import (
	"context"
	"errors"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/stockpile-hq/stockpile/internal/domain/catalog"
	"github.com/stockpile-hq/stockpile/internal/domain/inventory"
)

func (s *InventoryService) registerStockOperations(reg *catalog.Registry) {
	reg.MustRegister(&catalog.Operation{
		Name:        "list_stock_items",
		Description: "List stock items, optionally filtered by part or location.",
		InputSchema: catalog.ObjectSchema(map[string]*jsonschema.Schema{
			"part_id":     intSchema("Restrict to stock of this part."),
			"location_id": intSchema("Restrict to stock at this location."),
			"limit":       intSchema("Maximum number of items to return."),
			"offset":      intSchema("Number of items to skip."),
			"fields":      fieldsSchema(),
		}),
		ReadOnly: true,
		Handler:  s.listStockItems,
	})
	reg.MustRegister(&catalog.Operation{
		Name:        "get_stock_item",
		Description: "Get one stock item by ID.",
		InputSchema: catalog.ObjectSchema(map[string]*jsonschema.Schema{
			"item_id": intSchema("The stock item ID."),
			"fields":  fieldsSchema(),
		}, "item_id"),
		ReadOnly: true,
		Handler:  s.getStockItem,
	})
	reg.MustRegister(&catalog.Operation{
		Name:        "adjust_stock",
		Description: "Add or remove stock from an item. Negative quantities remove stock; the result cannot go below zero.",
		InputSchema: catalog.ObjectSchema(map[string]*jsonschema.Schema{
			"item_id":  intSchema("The stock item ID."),
			"quantity": numberSchema("Quantity delta; negative to remove stock."),
			"notes":    stringSchema("Optional note recorded with the adjustment."),
		}, "item_id", "quantity"),
		Handler: s.adjustStock,
	})
	reg.MustRegister(&catalog.Operation{
		Name:        "transfer_stock",
		Description: "Move a stock item to another location.",
		InputSchema: catalog.ObjectSchema(map[string]*jsonschema.Schema{
			"item_id":     intSchema("The stock item ID."),
			"location_id": intSchema("Destination location ID."),
			"notes":       stringSchema("Optional note recorded with the transfer."),
		}, "item_id", "location_id"),
		Handler: s.transferStock,
	})
	reg.MustRegister(&catalog.Operation{
		Name:        "stock_by_category_and_location",
		Description: "Aggregate stock quantities per category and location pair, optionally narrowed to one category and/or location.",
		InputSchema: catalog.ObjectSchema(map[string]*jsonschema.Schema{
			"category_id": intSchema("Restrict to parts in this category."),
			"location_id": intSchema("Restrict to stock at this location."),
		}),
		ReadOnly: true,
		Handler:  s.stockBreakdown,
	})
}

func (s *InventoryService) listStockItems(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		PartID     *int64   `json:"part_id"`
		LocationID *int64   `json:"location_id"`
		Limit      int      `json:"limit"`
		Offset     int      `json:"offset"`
		Fields     []string `json:"fields"`
	}
	if err := catalog.DecodeArgs(args, &in); err != nil {
		return nil, err
	}
	items, err := s.store.ListStockItems(ctx, inventory.StockFilter{
		PartID:     in.PartID,
		LocationID: in.LocationID,
		Limit:      in.Limit,
		Offset:     in.Offset,
	})
	if err != nil {
		return nil, err
	}
	return projectFields(items, in.Fields)
}

func (s *InventoryService) getStockItem(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		ItemID int64    `json:"item_id"`
		Fields []string `json:"fields"`
	}
	if err := catalog.DecodeArgs(args, &in); err != nil {
		return nil, err
	}
	item, err := s.store.GetStockItem(ctx, in.ItemID)
	if err != nil {
		return nil, err
	}
	return projectFields(item, in.Fields)
}

func (s *InventoryService) adjustStock(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		ItemID   int64   `json:"item_id"`
		Quantity float64 `json:"quantity"`
		Notes    string  `json:"notes"`
	}
	if err := catalog.DecodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Quantity == 0 {
		return nil, errors.New("quantity must not be zero")
	}
	item, err := s.store.AdjustStock(ctx, in.ItemID, in.Quantity, in.Notes)
	if err != nil {
		return nil, err
	}
	s.loggerFromContext(ctx).InfoContext(ctx, "stock adjusted",
		"item_id", item.ID,
		"delta", in.Quantity,
		"quantity", item.Quantity)
	return item, nil
}

func (s *InventoryService) transferStock(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		ItemID     int64  `json:"item_id"`
		LocationID int64  `json:"location_id"`
		Notes      string `json:"notes"`
	}
	if err := catalog.DecodeArgs(args, &in); err != nil {
		return nil, err
	}
	item, err := s.store.TransferStock(ctx, in.ItemID, in.LocationID, in.Notes)
	if err != nil {
		return nil, err
	}
	s.loggerFromContext(ctx).InfoContext(ctx, "stock transferred",
		"item_id", item.ID,
		"location_id", in.LocationID)
	return item, nil
}

func (s *InventoryService) stockBreakdown(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		CategoryID *int64 `json:"category_id"`
		LocationID *int64 `json:"location_id"`
	}
	if err := catalog.DecodeArgs(args, &in); err != nil {
		return nil, err
	}
	return s.store.StockByCategoryAndLocation(ctx, in.CategoryID, in.LocationID)
}
