package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
)

func echoOp(name string) *Operation {
	return &Operation{
		Name:        name,
		Description: "echoes its arguments",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return args, nil
		},
	}
}

func TestRegistryRegisterAndInvoke(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoOp("echo")); err != nil {
		t.Fatal(err)
	}

	out, err := r.Invoke(context.Background(), "echo", map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	m, ok := out.(map[string]any)
	if !ok || m["k"] != "v" {
		t.Errorf("Invoke result = %v, want echoed args", out)
	}
}

func TestRegistryRejectsDuplicatesAndInvalid(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoOp("dup")); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(echoOp("dup")); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate register err = %v, want ErrDuplicate", err)
	}
	if err := r.Register(&Operation{Name: ""}); err == nil {
		t.Error("empty name accepted")
	}
	if err := r.Register(&Operation{Name: "nohandler"}); err == nil {
		t.Error("nil handler accepted")
	}
}

func TestRegistryInvokeUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Invoke(context.Background(), "missing", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(echoOp(name)); err != nil {
			t.Fatal(err)
		}
	}
	names := r.Names()
	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}
}

func TestRegistryFingerprintTracksCatalog(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()
	for _, r := range []*Registry{a, b} {
		if err := r.Register(echoOp("one")); err != nil {
			t.Fatal(err)
		}
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical catalogs have different fingerprints")
	}

	if err := b.Register(echoOp("two")); err != nil {
		t.Fatal(err)
	}
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("fingerprint unchanged after registering a new operation")
	}
}

func TestDecodeArgs(t *testing.T) {
	type input struct {
		PartID int    `json:"part_id"`
		Search string `json:"search"`
	}
	var in input
	err := DecodeArgs(map[string]any{"part_id": float64(7), "search": "resistor"}, &in)
	if err != nil {
		t.Fatal(err)
	}
	if in.PartID != 7 || in.Search != "resistor" {
		t.Errorf("decoded = %+v", in)
	}
}

func TestObjectSchema(t *testing.T) {
	s := ObjectSchema(map[string]*jsonschema.Schema{
		"part_id": {Type: "integer"},
	}, "part_id")
	if s.Type != "object" {
		t.Errorf("Type = %q, want object", s.Type)
	}
	if _, ok := s.Properties["part_id"]; !ok {
		t.Error("part_id property missing")
	}
	if len(s.Required) != 1 || s.Required[0] != "part_id" {
		t.Errorf("Required = %v", s.Required)
	}
}
