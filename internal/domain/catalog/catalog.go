// Package catalog defines the registry of named operations the protocol
// runtime dispatches to. The transport layer is agnostic to what the
// operations do: it only enumerates them and invokes them by name with
// structured arguments.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/jsonschema-go/jsonschema"
)

var (
	// ErrNotFound is returned when invoking an unknown operation.
	ErrNotFound = errors.New("catalog: operation not found")
	// ErrDuplicate is returned when registering a name twice.
	ErrDuplicate = errors.New("catalog: operation already registered")
)

// Handler executes one operation with structured arguments and returns a
// structured result, or a domain error with a human-readable message.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Operation is one named operation exposed through the runtime.
type Operation struct {
	Name        string
	Description string
	// InputSchema describes the operation's arguments. Nil means "no
	// arguments"; the runtime adapter substitutes an empty object schema.
	InputSchema *jsonschema.Schema
	// ReadOnly marks operations with no side effects; surfaced as a tool
	// annotation and usable by authorization policies.
	ReadOnly bool
	Handler  Handler
}

// Registry holds the registered operations. Registration happens during
// engine startup; afterwards the registry is only read.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]*Operation
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]*Operation)}
}

// Register adds an operation. The name must be unique and the handler
// non-nil.
func (r *Registry) Register(op *Operation) error {
	if op.Name == "" {
		return errors.New("catalog: operation name is empty")
	}
	if op.Handler == nil {
		return fmt.Errorf("catalog: operation %q has no handler", op.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ops[op.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, op.Name)
	}
	r.ops[op.Name] = op
	return nil
}

// MustRegister registers an operation and panics on error. For use in
// startup wiring where a registration error is a programming mistake.
func (r *Registry) MustRegister(op *Operation) {
	if err := r.Register(op); err != nil {
		panic(err)
	}
}

// Get returns the named operation.
func (r *Registry) Get(name string) (*Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[name]
	return op, ok
}

// List returns all operations sorted by name.
func (r *Registry) List() []*Operation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Operation, 0, len(r.ops))
	for _, op := range r.ops {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered operation names, sorted.
func (r *Registry) Names() []string {
	ops := r.List()
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.Name
	}
	return names
}

// Len returns the number of registered operations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ops)
}

// Invoke runs the named operation with the given arguments.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	op, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return op.Handler(ctx, args)
}

// Fingerprint returns a stable hash over the operation names and
// descriptions, used to detect catalog changes between exchanges.
func (r *Registry) Fingerprint() uint64 {
	h := xxhash.New()
	for _, op := range r.List() {
		_, _ = h.WriteString(op.Name)
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(op.Description)
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// ObjectSchema builds a JSON schema for an object with the given properties.
func ObjectSchema(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

// DecodeArgs re-marshals loosely-typed arguments into a typed struct, the
// same way JSON-RPC params decode. dst must be a pointer.
func DecodeArgs(args map[string]any, dst any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("catalog: encode args: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("catalog: decode args: %w", err)
	}
	return nil
}
