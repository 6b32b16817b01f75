package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stockpile-hq/stockpile/internal/domain/auth"
)

func TestAuthStoreTokens(t *testing.T) {
	t.Parallel()

	store := NewAuthStore()
	store.AddToken(&auth.Token{Hash: "sha256:abc", IdentityID: "svc-1", Name: "ci"})

	got, err := store.GetToken(context.Background(), "sha256:abc")
	if err != nil {
		t.Fatal(err)
	}
	if got.IdentityID != "svc-1" {
		t.Errorf("IdentityID = %q, want svc-1", got.IdentityID)
	}

	// Mutating the returned copy must not affect the store.
	got.Revoked = true
	again, err := store.GetToken(context.Background(), "sha256:abc")
	if err != nil {
		t.Fatal(err)
	}
	if again.Revoked {
		t.Error("mutation of a returned token leaked into the store")
	}

	if _, err := store.GetToken(context.Background(), "sha256:missing"); !errors.Is(err, auth.ErrTokenNotFound) {
		t.Errorf("err = %v, want ErrTokenNotFound", err)
	}

	all, err := store.ListTokens(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("ListTokens returned %d tokens, want 1", len(all))
	}
}

func TestAuthStoreIdentities(t *testing.T) {
	t.Parallel()

	store := NewAuthStore()
	store.AddIdentity(&auth.Identity{ID: "svc-1", Name: "CI bot", Roles: []auth.Role{auth.RoleReadOnly}})

	got, err := store.GetIdentity(context.Background(), "svc-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "CI bot" || !got.HasRole(auth.RoleReadOnly) {
		t.Errorf("identity = %+v", got)
	}

	got.Roles[0] = auth.RoleAdmin
	again, err := store.GetIdentity(context.Background(), "svc-1")
	if err != nil {
		t.Fatal(err)
	}
	if again.HasRole(auth.RoleAdmin) {
		t.Error("mutation of returned roles leaked into the store")
	}

	if _, err := store.GetIdentity(context.Background(), "missing"); !errors.Is(err, auth.ErrIdentityNotFound) {
		t.Errorf("err = %v, want ErrIdentityNotFound", err)
	}
}
