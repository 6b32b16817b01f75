// Package service wires the inventory store into the operation catalog:
// every tool the runtime exposes is registered here, with its schema,
// its read-only annotation and its handler.
package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/stockpile-hq/stockpile/internal/ctxkey"
	"github.com/stockpile-hq/stockpile/internal/domain/catalog"
	"github.com/stockpile-hq/stockpile/internal/domain/inventory"
)

// InventoryService exposes the inventory store as catalog operations.
type InventoryService struct {
	store  inventory.Store
	logger *slog.Logger
}

// NewInventoryService creates the service over the given store.
func NewInventoryService(store inventory.Store, logger *slog.Logger) *InventoryService {
	return &InventoryService{store: store, logger: logger}
}

// RegisterOperations registers every inventory tool on the registry.
// Called once during engine startup.
func (s *InventoryService) RegisterOperations(reg *catalog.Registry) {
	reg.MustRegister(&catalog.Operation{
		Name:        "ping",
		Description: "Check connectivity to the inventory backend.",
		ReadOnly:    true,
		Handler:     s.ping,
	})
	s.registerPartOperations(reg)
	s.registerStockOperations(reg)
	s.registerTreeOperations(reg)
	s.registerBOMAndTagOperations(reg)
}

func (s *InventoryService) ping(ctx context.Context, _ map[string]any) (any, error) {
	if err := s.store.Ping(ctx); err != nil {
		return nil, err
	}
	return map[string]any{"status": "ok"}, nil
}

// loggerFromContext retrieves the request-enriched logger, falling back
// to the service logger.
func (s *InventoryService) loggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return s.logger
}

// Schema helpers shared by the tool registrations.

func intSchema(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: desc}
}

func numberSchema(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "number", Description: desc}
}

func stringSchema(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc}
}

func boolSchema(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Description: desc}
}

func stringListSchema(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "array",
		Description: desc,
		Items:       &jsonschema.Schema{Type: "string"},
	}
}

func intListSchema(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "array",
		Description: desc,
		Items:       &jsonschema.Schema{Type: "integer"},
	}
}

func fieldsSchema() *jsonschema.Schema {
	return stringListSchema("Optional list of field names to include in the result; all fields when omitted.")
}

// projectFields narrows a result to the requested top-level fields. It
// works on the JSON form, so it applies uniformly to single records and
// lists of records. An empty field list returns the value unchanged.
func projectFields(v any, fields []string) (any, error) {
	if len(fields) == 0 {
		return v, nil
	}
	keep := make(map[string]bool, len(fields))
	for _, f := range fields {
		keep[f] = true
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}

	switch t := decoded.(type) {
	case map[string]any:
		return filterMap(t, keep), nil
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			if m, ok := item.(map[string]any); ok {
				out[i] = filterMap(m, keep)
			} else {
				out[i] = item
			}
		}
		return out, nil
	default:
		return decoded, nil
	}
}

func filterMap(m map[string]any, keep map[string]bool) map[string]any {
	out := make(map[string]any, len(keep))
	for k, v := range m {
		if keep[k] {
			out[k] = v
		}
	}
	return out
}
