package service

import (
	"context"
	"errors"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/stockpile-hq/stockpile/internal/domain/catalog"
	"github.com/stockpile-hq/stockpile/internal/domain/inventory"
)

func (s *InventoryService) registerPartOperations(reg *catalog.Registry) {
	reg.MustRegister(&catalog.Operation{
		Name:        "list_parts",
		Description: "List parts, optionally filtered by category, active state or tags.",
		InputSchema: catalog.ObjectSchema(map[string]*jsonschema.Schema{
			"category_id": intSchema("Restrict to parts in this category."),
			"active":      boolSchema("Restrict to active (true) or inactive (false) parts."),
			"tags":        stringListSchema("Restrict to parts carrying all of these tags."),
			"limit":       intSchema("Maximum number of parts to return."),
			"offset":      intSchema("Number of parts to skip."),
			"fields":      fieldsSchema(),
		}),
		ReadOnly: true,
		Handler:  s.listParts,
	})
	reg.MustRegister(&catalog.Operation{
		Name:        "get_part",
		Description: "Get one part by ID, including its total stock and tags.",
		InputSchema: catalog.ObjectSchema(map[string]*jsonschema.Schema{
			"part_id": intSchema("The part ID."),
			"fields":  fieldsSchema(),
		}, "part_id"),
		ReadOnly: true,
		Handler:  s.getPart,
	})
	reg.MustRegister(&catalog.Operation{
		Name:        "search_parts",
		Description: "Search parts by name, description or IPN.",
		InputSchema: catalog.ObjectSchema(map[string]*jsonschema.Schema{
			"query":  stringSchema("Search text, matched case-insensitively."),
			"limit":  intSchema("Maximum number of parts to return."),
			"fields": fieldsSchema(),
		}, "query"),
		ReadOnly: true,
		Handler:  s.searchParts,
	})
	reg.MustRegister(&catalog.Operation{
		Name:        "create_part",
		Description: "Create a new part.",
		InputSchema: catalog.ObjectSchema(map[string]*jsonschema.Schema{
			"name":        stringSchema("Part name."),
			"description": stringSchema("Part description."),
			"category_id": intSchema("Category to file the part under."),
			"ipn":         stringSchema("Internal part number."),
			"revision":    stringSchema("Revision identifier."),
			"units":       stringSchema("Unit of measure, e.g. pcs or m."),
			"active":      boolSchema("Whether the part is active. Defaults to true."),
		}, "name"),
		Handler: s.createPart,
	})
	reg.MustRegister(&catalog.Operation{
		Name:        "update_part",
		Description: "Update fields of an existing part. Omitted fields stay unchanged.",
		InputSchema: catalog.ObjectSchema(map[string]*jsonschema.Schema{
			"part_id":     intSchema("The part ID."),
			"name":        stringSchema("New part name."),
			"description": stringSchema("New description."),
			"ipn":         stringSchema("New internal part number."),
			"revision":    stringSchema("New revision identifier."),
			"units":       stringSchema("New unit of measure."),
			"active":      boolSchema("New active state."),
		}, "part_id"),
		Handler: s.updatePart,
	})
	reg.MustRegister(&catalog.Operation{
		Name:        "delete_parts",
		Description: "Delete multiple parts by ID. Their stock items and BOM lines are removed too.",
		InputSchema: catalog.ObjectSchema(map[string]*jsonschema.Schema{
			"part_ids": intListSchema("IDs of the parts to delete."),
		}, "part_ids"),
		Handler: s.deleteParts,
	})
}

func (s *InventoryService) listParts(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		CategoryID *int64   `json:"category_id"`
		Active     *bool    `json:"active"`
		Tags       []string `json:"tags"`
		Limit      int      `json:"limit"`
		Offset     int      `json:"offset"`
		Fields     []string `json:"fields"`
	}
	if err := catalog.DecodeArgs(args, &in); err != nil {
		return nil, err
	}
	parts, err := s.store.ListParts(ctx, inventory.PartFilter{
		CategoryID: in.CategoryID,
		Active:     in.Active,
		Tags:       in.Tags,
		Limit:      in.Limit,
		Offset:     in.Offset,
	})
	if err != nil {
		return nil, err
	}
	return projectFields(parts, in.Fields)
}

func (s *InventoryService) getPart(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		PartID int64    `json:"part_id"`
		Fields []string `json:"fields"`
	}
	if err := catalog.DecodeArgs(args, &in); err != nil {
		return nil, err
	}
	part, err := s.store.GetPart(ctx, in.PartID)
	if err != nil {
		return nil, err
	}
	return projectFields(part, in.Fields)
}

func (s *InventoryService) searchParts(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		Query  string   `json:"query"`
		Limit  int      `json:"limit"`
		Fields []string `json:"fields"`
	}
	if err := catalog.DecodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Query == "" {
		return nil, errors.New("query must not be empty")
	}
	parts, err := s.store.SearchParts(ctx, in.Query, in.Limit)
	if err != nil {
		return nil, err
	}
	return projectFields(parts, in.Fields)
}

func (s *InventoryService) createPart(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		CategoryID  *int64 `json:"category_id"`
		IPN         string `json:"ipn"`
		Revision    string `json:"revision"`
		Units       string `json:"units"`
		Active      *bool  `json:"active"`
	}
	if err := catalog.DecodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, errors.New("name must not be empty")
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	part, err := s.store.CreatePart(ctx, inventory.NewPart{
		Name:        in.Name,
		Description: in.Description,
		CategoryID:  in.CategoryID,
		IPN:         in.IPN,
		Revision:    in.Revision,
		Units:       in.Units,
		Active:      active,
	})
	if err != nil {
		return nil, err
	}
	s.loggerFromContext(ctx).InfoContext(ctx, "part created",
		"part_id", part.ID,
		"name", part.Name)
	return part, nil
}

func (s *InventoryService) updatePart(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		PartID      int64   `json:"part_id"`
		Name        *string `json:"name"`
		Description *string `json:"description"`
		IPN         *string `json:"ipn"`
		Revision    *string `json:"revision"`
		Units       *string `json:"units"`
		Active      *bool   `json:"active"`
	}
	if err := catalog.DecodeArgs(args, &in); err != nil {
		return nil, err
	}
	part, err := s.store.UpdatePart(ctx, in.PartID, inventory.PartUpdate{
		Name:        in.Name,
		Description: in.Description,
		IPN:         in.IPN,
		Revision:    in.Revision,
		Units:       in.Units,
		Active:      in.Active,
	})
	if err != nil {
		return nil, err
	}
	s.loggerFromContext(ctx).InfoContext(ctx, "part updated", "part_id", part.ID)
	return part, nil
}

func (s *InventoryService) deleteParts(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		PartIDs []int64 `json:"part_ids"`
	}
	if err := catalog.DecodeArgs(args, &in); err != nil {
		return nil, err
	}
	if len(in.PartIDs) == 0 {
		return nil, errors.New("part_ids must not be empty")
	}
	deleted, err := s.store.DeleteParts(ctx, in.PartIDs)
	if err != nil {
		return nil, err
	}
	s.loggerFromContext(ctx).InfoContext(ctx, "parts deleted",
		"requested", len(in.PartIDs),
		"deleted", len(deleted))
	return map[string]any{
		"deleted":   deleted,
		"requested": len(in.PartIDs),
	}, nil
}
