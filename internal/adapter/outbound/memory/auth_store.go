package memory

import (
	"context"
	"sync"

	"github.com/stockpile-hq/stockpile/internal/domain/auth"
)

// AuthStore implements auth.Store with in-memory maps seeded from
// configuration at startup. Safe for concurrent reads.
type AuthStore struct {
	mu         sync.RWMutex
	tokens     map[string]*auth.Token    // hash -> token
	identities map[string]*auth.Identity // id -> identity
}

// NewAuthStore creates an empty auth store.
func NewAuthStore() *AuthStore {
	return &AuthStore{
		tokens:     make(map[string]*auth.Token),
		identities: make(map[string]*auth.Identity),
	}
}

// GetToken retrieves a token by its stored hash.
func (s *AuthStore) GetToken(ctx context.Context, hash string) (*auth.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[hash]
	if !ok {
		return nil, auth.ErrTokenNotFound
	}
	cp := *t
	return &cp, nil
}

// GetIdentity retrieves an identity by ID.
func (s *AuthStore) GetIdentity(ctx context.Context, id string) (*auth.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ident, ok := s.identities[id]
	if !ok {
		return nil, auth.ErrIdentityNotFound
	}
	cp := *ident
	cp.Roles = append([]auth.Role(nil), ident.Roles...)
	return &cp, nil
}

// ListTokens returns all stored tokens, in no particular order.
func (s *AuthStore) ListTokens(ctx context.Context) ([]*auth.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*auth.Token, 0, len(s.tokens))
	for _, t := range s.tokens {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

// AddToken stores a token, keyed by its hash.
func (s *AuthStore) AddToken(t *auth.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	s.tokens[t.Hash] = &cp
}

// AddIdentity stores an identity.
func (s *AuthStore) AddIdentity(ident *auth.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *ident
	cp.Roles = append([]auth.Role(nil), ident.Roles...)
	s.identities[ident.ID] = &cp
}

var _ auth.Store = (*AuthStore)(nil)
