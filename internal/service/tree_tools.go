package service

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/stockpile-hq/stockpile/internal/domain/catalog"
)

func (s *InventoryService) registerTreeOperations(reg *catalog.Registry) {
	reg.MustRegister(&catalog.Operation{
		Name:        "list_categories",
		Description: "List part categories, optionally restricted to the children of one category.",
		InputSchema: catalog.ObjectSchema(map[string]*jsonschema.Schema{
			"parent_id": intSchema("Restrict to direct children of this category."),
			"fields":    fieldsSchema(),
		}),
		ReadOnly: true,
		Handler:  s.listCategories,
	})
	reg.MustRegister(&catalog.Operation{
		Name:        "get_category",
		Description: "Get one part category by ID.",
		InputSchema: catalog.ObjectSchema(map[string]*jsonschema.Schema{
			"category_id": intSchema("The category ID."),
			"fields":      fieldsSchema(),
		}, "category_id"),
		ReadOnly: true,
		Handler:  s.getCategory,
	})
	reg.MustRegister(&catalog.Operation{
		Name:        "category_tree",
		Description: "Get the category hierarchy with nested children, optionally rooted at one category.",
		InputSchema: catalog.ObjectSchema(map[string]*jsonschema.Schema{
			"root_id": intSchema("Root the tree at this category instead of the top level."),
		}),
		ReadOnly: true,
		Handler:  s.categoryTree,
	})
	reg.MustRegister(&catalog.Operation{
		Name:        "list_locations",
		Description: "List stock locations, optionally restricted to the children of one location.",
		InputSchema: catalog.ObjectSchema(map[string]*jsonschema.Schema{
			"parent_id": intSchema("Restrict to direct children of this location."),
			"fields":    fieldsSchema(),
		}),
		ReadOnly: true,
		Handler:  s.listLocations,
	})
	reg.MustRegister(&catalog.Operation{
		Name:        "get_location",
		Description: "Get one stock location by ID.",
		InputSchema: catalog.ObjectSchema(map[string]*jsonschema.Schema{
			"location_id": intSchema("The location ID."),
			"fields":      fieldsSchema(),
		}, "location_id"),
		ReadOnly: true,
		Handler:  s.getLocation,
	})
	reg.MustRegister(&catalog.Operation{
		Name:        "location_tree",
		Description: "Get the location hierarchy with nested children, optionally rooted at one location.",
		InputSchema: catalog.ObjectSchema(map[string]*jsonschema.Schema{
			"root_id": intSchema("Root the tree at this location instead of the top level."),
		}),
		ReadOnly: true,
		Handler:  s.locationTree,
	})
}

func (s *InventoryService) listCategories(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		ParentID *int64   `json:"parent_id"`
		Fields   []string `json:"fields"`
	}
	if err := catalog.DecodeArgs(args, &in); err != nil {
		return nil, err
	}
	cats, err := s.store.ListCategories(ctx, in.ParentID)
	if err != nil {
		return nil, err
	}
	return projectFields(cats, in.Fields)
}

func (s *InventoryService) getCategory(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		CategoryID int64    `json:"category_id"`
		Fields     []string `json:"fields"`
	}
	if err := catalog.DecodeArgs(args, &in); err != nil {
		return nil, err
	}
	cat, err := s.store.GetCategory(ctx, in.CategoryID)
	if err != nil {
		return nil, err
	}
	return projectFields(cat, in.Fields)
}

func (s *InventoryService) categoryTree(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		RootID *int64 `json:"root_id"`
	}
	if err := catalog.DecodeArgs(args, &in); err != nil {
		return nil, err
	}
	return s.store.CategoryTree(ctx, in.RootID)
}

func (s *InventoryService) listLocations(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		ParentID *int64   `json:"parent_id"`
		Fields   []string `json:"fields"`
	}
	if err := catalog.DecodeArgs(args, &in); err != nil {
		return nil, err
	}
	locs, err := s.store.ListLocations(ctx, in.ParentID)
	if err != nil {
		return nil, err
	}
	return projectFields(locs, in.Fields)
}

func (s *InventoryService) getLocation(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		LocationID int64    `json:"location_id"`
		Fields     []string `json:"fields"`
	}
	if err := catalog.DecodeArgs(args, &in); err != nil {
		return nil, err
	}
	loc, err := s.store.GetLocation(ctx, in.LocationID)
	if err != nil {
		return nil, err
	}
	return projectFields(loc, in.Fields)
}

func (s *InventoryService) locationTree(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		RootID *int64 `json:"root_id"`
	}
	if err := catalog.DecodeArgs(args, &in); err != nil {
		return nil, err
	}
	return s.store.LocationTree(ctx, in.RootID)
}
