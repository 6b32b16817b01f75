// Package auth contains the domain types and logic for authenticating
// inbound requests to the MCP endpoint.
package auth

import "time"

// Role represents a coarse authorization role.
type Role string

const (
	// RoleAdmin has full access, including mutating tools.
	RoleAdmin Role = "admin"
	// RoleUser has standard access to query and mutate inventory data.
	RoleUser Role = "user"
	// RoleReadOnly may only call read-only tools.
	RoleReadOnly Role = "read-only"
)

// IsValid returns true if the role is a known valid role.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleReadOnly:
		return true
	default:
		return false
	}
}

// Identity represents an authenticated user or service account.
type Identity struct {
	// ID is the unique identifier for this identity.
	ID string
	// Name is the display name.
	Name string
	// Roles are the roles assigned to this identity.
	Roles []Role
}

// HasRole returns true if the identity has the specified role.
func (i *Identity) HasRole(role Role) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RoleNames returns the identity's roles as plain strings, for policy
// evaluation inputs.
func (i *Identity) RoleNames() []string {
	names := make([]string, len(i.Roles))
	for n, r := range i.Roles {
		names[n] = string(r)
	}
	return names
}

// Token represents an access token credential.
type Token struct {
	// Hash is the stored token hash (SHA-256 "sha256:<hex>" or Argon2id
	// PHC format). The raw token is never stored.
	Hash string
	// IdentityID maps this token to an Identity.
	IdentityID string
	// Name is a human-readable label for the token.
	Name string
	// CreatedAt is when the token was created (UTC).
	CreatedAt time.Time
	// ExpiresAt is when the token expires (nil = never).
	ExpiresAt *time.Time
	// Revoked marks the token as revoked.
	Revoked bool
}

// IsExpired returns true if the token has expired. A token with nil
// ExpiresAt never expires.
func (t *Token) IsExpired() bool {
	if t.ExpiresAt == nil {
		return false
	}
	return time.Now().UTC().After(*t.ExpiresAt)
}
