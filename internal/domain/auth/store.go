package auth

import (
	"context"
	"errors"
)

// Sentinel errors for credential lookups.
var (
	// ErrTokenNotFound is returned when no token matches the given hash.
	ErrTokenNotFound = errors.New("token not found")
	// ErrIdentityNotFound is returned when a token references a missing identity.
	ErrIdentityNotFound = errors.New("identity not found")
)

// Store provides credential lookup for authentication. The interface lives
// in the domain so adapters can implement it without import cycles.
type Store interface {
	// GetToken retrieves a token by its stored hash.
	// Returns ErrTokenNotFound if no such token exists.
	GetToken(ctx context.Context, hash string) (*Token, error)

	// GetIdentity retrieves an identity by ID.
	// Returns ErrIdentityNotFound if the identity doesn't exist.
	GetIdentity(ctx context.Context, id string) (*Identity, error)

	// ListTokens returns all stored tokens for iteration-based
	// verification of salted (Argon2id) hashes.
	ListTokens(ctx context.Context) ([]*Token, error)
}
