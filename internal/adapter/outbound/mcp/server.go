// Package mcp adapts the operation catalog onto the MCP protocol runtime
// from the official Go SDK, and exposes that runtime behind the exchange
// engine port.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/stockpile-hq/stockpile/internal/domain/catalog"
)

// ServerInfo names the MCP server implementation as reported during the
// protocol handshake.
type ServerInfo struct {
	Name    string
	Version string
}

// Authorizer gates individual tool calls. A denial surfaces as a
// tool-level error, not a protocol error.
type Authorizer interface {
	Authorize(ctx context.Context, tool string, readOnly bool) error
}

// BuildServer constructs an MCP server exposing every operation in the
// registry as a tool. Operation handlers run inside the SDK's dispatch;
// domain errors surface as tool-level errors, not protocol errors. A nil
// authorizer allows every call.
func BuildServer(reg *catalog.Registry, info ServerInfo, authz Authorizer, logger *slog.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    info.Name,
		Version: info.Version,
	}, nil)

	for _, op := range reg.List() {
		server.AddTool(toolFor(op), handlerFor(reg, op, authz, logger))
	}
	return server
}

func toolFor(op *catalog.Operation) *mcp.Tool {
	schema := op.InputSchema
	if schema == nil {
		schema = &jsonschema.Schema{Type: "object"}
	}
	return &mcp.Tool{
		Name:        op.Name,
		Description: op.Description,
		InputSchema: schema,
		Annotations: &mcp.ToolAnnotations{
			ReadOnlyHint: op.ReadOnly,
		},
	}
}

// handlerFor dispatches through the registry's invoke-by-name surface so
// the tool path and any direct catalog callers share one entry point.
func handlerFor(reg *catalog.Registry, op *catalog.Operation, authz Authorizer, logger *slog.Logger) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if authz != nil {
			if err := authz.Authorize(ctx, op.Name, op.ReadOnly); err != nil {
				return errorResult(err.Error()), nil
			}
		}

		args, err := decodeArguments(req.Params.Arguments)
		if err != nil {
			return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		result, err := reg.Invoke(ctx, op.Name, args)
		if err != nil {
			logger.WarnContext(ctx, "tool call failed",
				"tool", op.Name,
				"error", err)
			return errorResult(err.Error()), nil
		}

		encoded, err := json.Marshal(result)
		if err != nil {
			logger.ErrorContext(ctx, "tool result not serializable",
				"tool", op.Name,
				"error", err)
			return errorResult("internal error: result not serializable"), nil
		}

		return &mcp.CallToolResult{
			Content:           []mcp.Content{&mcp.TextContent{Text: string(encoded)}},
			StructuredContent: result,
		}, nil
	}
}

// decodeArguments normalizes the SDK's loosely-typed tool arguments into
// the map form catalog handlers take.
func decodeArguments(v any) (map[string]any, error) {
	switch args := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return args, nil
	case json.RawMessage:
		if len(args) == 0 {
			return map[string]any{}, nil
		}
		var out map[string]any
		if err := json.Unmarshal(args, &out); err != nil {
			return nil, err
		}
		if out == nil {
			out = map[string]any{}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported argument type %T", v)
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}
