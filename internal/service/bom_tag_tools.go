package service

import (
	"context"
	"errors"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/stockpile-hq/stockpile/internal/domain/catalog"
)

func (s *InventoryService) registerBOMAndTagOperations(reg *catalog.Registry) {
	reg.MustRegister(&catalog.Operation{
		Name:        "list_bom_items",
		Description: "List bill-of-materials lines, optionally restricted to one assembly.",
		InputSchema: catalog.ObjectSchema(map[string]*jsonschema.Schema{
			"part_id": intSchema("Restrict to the BOM of this assembly."),
			"limit":   intSchema("Maximum number of lines to return."),
			"offset":  intSchema("Number of lines to skip."),
			"fields":  fieldsSchema(),
		}),
		ReadOnly: true,
		Handler:  s.listBOMItems,
	})
	reg.MustRegister(&catalog.Operation{
		Name:        "get_bom_for_part",
		Description: "Get the full bill of materials for one assembly.",
		InputSchema: catalog.ObjectSchema(map[string]*jsonschema.Schema{
			"part_id": intSchema("The assembly part ID."),
			"fields":  fieldsSchema(),
		}, "part_id"),
		ReadOnly: true,
		Handler:  s.bomForPart,
	})
	reg.MustRegister(&catalog.Operation{
		Name:        "list_tags",
		Description: "List all part tags with their usage counts.",
		ReadOnly:    true,
		Handler:     s.listTags,
	})
	reg.MustRegister(&catalog.Operation{
		Name:        "search_tags",
		Description: "Search part tags by name.",
		InputSchema: catalog.ObjectSchema(map[string]*jsonschema.Schema{
			"query": stringSchema("Search text, matched case-insensitively."),
		}, "query"),
		ReadOnly: true,
		Handler:  s.searchTags,
	})
}

func (s *InventoryService) listBOMItems(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		PartID *int64   `json:"part_id"`
		Limit  int      `json:"limit"`
		Offset int      `json:"offset"`
		Fields []string `json:"fields"`
	}
	if err := catalog.DecodeArgs(args, &in); err != nil {
		return nil, err
	}
	items, err := s.store.ListBOMItems(ctx, in.PartID, in.Limit, in.Offset)
	if err != nil {
		return nil, err
	}
	return projectFields(items, in.Fields)
}

func (s *InventoryService) bomForPart(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		PartID int64    `json:"part_id"`
		Fields []string `json:"fields"`
	}
	if err := catalog.DecodeArgs(args, &in); err != nil {
		return nil, err
	}
	items, err := s.store.BOMForPart(ctx, in.PartID)
	if err != nil {
		return nil, err
	}
	return projectFields(items, in.Fields)
}

func (s *InventoryService) listTags(ctx context.Context, _ map[string]any) (any, error) {
	return s.store.ListTags(ctx)
}

func (s *InventoryService) searchTags(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := catalog.DecodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Query == "" {
		return nil, errors.New("query must not be empty")
	}
	return s.store.SearchTags(ctx, in.Query)
}
