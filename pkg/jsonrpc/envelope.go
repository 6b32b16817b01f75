// Package jsonrpc provides JSON-RPC 2.0 envelope helpers for the bridge's
// HTTP surface. Message encoding and the error object type come from the
// MCP SDK's jsonrpc package; this package only owns the synthesized error
// envelopes the bridge emits before or instead of running an exchange.
package jsonrpc

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// Version is the JSON-RPC protocol version identifier.
const Version = "2.0"

// Error codes the bridge emits on its own behalf. Codes in the -32000..-32099
// range are reserved for implementation-defined server errors.
const (
	// CodeTimeout is emitted when an exchange exceeds its deadline.
	CodeTimeout int64 = -32000
	// CodeUnauthorized is emitted when authentication fails.
	CodeUnauthorized int64 = -32001
	// CodeRateLimited is emitted when a caller exceeds the rate limit.
	CodeRateLimited int64 = -32002
	// CodeInternal is emitted when the engine cannot produce a response.
	CodeInternal int64 = -32603
	// CodeInvalidRequest is emitted when the request body cannot be read.
	CodeInvalidRequest int64 = -32600
)

// errorEnvelope is the synthesized error response. The id is always
// explicit null: these envelopes are produced without parsing the request,
// so no request id is available to echo.
type errorEnvelope struct {
	JSONRPC string         `json:"jsonrpc"`
	Error   *jsonrpc.Error `json:"error"`
	ID      any            `json:"id"`
}

// ErrorEnvelope builds the serialized error envelope for the given code
// and message.
func ErrorEnvelope(code int64, message string) []byte {
	data, err := json.Marshal(errorEnvelope{
		JSONRPC: Version,
		Error:   &jsonrpc.Error{Code: code, Message: message},
	})
	if err != nil {
		// The envelope contains only scalars; this cannot fail.
		panic(fmt.Sprintf("jsonrpc: encode error envelope: %v", err))
	}
	return data
}

// ParseErrorEnvelope decodes a serialized error envelope, for callers that
// need to inspect the code and message.
func ParseErrorEnvelope(data []byte) (*jsonrpc.Error, error) {
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("jsonrpc: decode error envelope: %w", err)
	}
	if env.Error == nil {
		return nil, fmt.Errorf("jsonrpc: envelope has no error object")
	}
	return env.Error, nil
}

// DecodeMessage deserializes JSON-RPC wire data into a *jsonrpc.Request or
// *jsonrpc.Response. Delegates to the MCP SDK.
func DecodeMessage(data []byte) (jsonrpc.Message, error) {
	return jsonrpc.DecodeMessage(data)
}
