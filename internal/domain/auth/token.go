package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
)

// ErrInvalidToken is returned when a token is unknown, expired or revoked.
var ErrInvalidToken = errors.New("invalid token")

// ErrUnknownHashType is returned when a stored hash has an unrecognized format.
var ErrUnknownHashType = errors.New("unknown hash type")

// TokenService validates raw tokens and resolves their identities.
type TokenService struct {
	store Store
}

// NewTokenService creates a TokenService backed by the given store.
func NewTokenService(store Store) *TokenService {
	return &TokenService{store: store}
}

// Validate checks a raw token and returns the associated identity.
// Returns ErrInvalidToken if the token is unknown, expired or revoked.
//
// SHA-256 hashes are resolved by direct lookup; Argon2id hashes require
// iterating the stored tokens because each carries its own salt.
func (s *TokenService) Validate(ctx context.Context, rawToken string) (*Identity, error) {
	token, err := s.store.GetToken(ctx, HashToken(rawToken))
	if err == nil {
		return s.resolve(ctx, token)
	}

	all, err := s.store.ListTokens(ctx)
	if err != nil {
		return nil, ErrInvalidToken
	}
	for _, candidate := range all {
		match, verifyErr := VerifyToken(rawToken, candidate.Hash)
		if verifyErr != nil {
			continue
		}
		if match {
			return s.resolve(ctx, candidate)
		}
	}
	return nil, ErrInvalidToken
}

// resolve checks revocation/expiry and returns the identity.
func (s *TokenService) resolve(ctx context.Context, token *Token) (*Identity, error) {
	if token.Revoked || token.IsExpired() {
		return nil, ErrInvalidToken
	}
	identity, err := s.store.GetIdentity(ctx, token.IdentityID)
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// HashToken returns the SHA-256 hash of the raw token in "sha256:<hex>"
// form, the format used for config-seeded tokens.
func HashToken(rawToken string) string {
	hash := sha256.Sum256([]byte(rawToken))
	return "sha256:" + hex.EncodeToString(hash[:])
}

// argon2idParams defines OWASP minimum parameters for Argon2id.
// Memory: 47 MiB, Iterations: 1, Parallelism: 1.
var argon2idParams = &argon2id.Params{
	Memory:      47 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// HashTokenArgon2id returns an Argon2id hash of the raw token in PHC
// format: $argon2id$v=19$m=47104,t=1,p=1$<salt>$<hash>
func HashTokenArgon2id(rawToken string) (string, error) {
	return argon2id.CreateHash(rawToken, argon2idParams)
}

// DetectHashType identifies the hash algorithm of a stored hash. Returns
// "argon2id" for PHC format, "sha256" for prefixed or bare hex, "unknown"
// otherwise.
func DetectHashType(storedHash string) string {
	if strings.HasPrefix(storedHash, "$argon2id$") {
		return "argon2id"
	}
	if strings.HasPrefix(storedHash, "sha256:") {
		return "sha256"
	}
	if len(storedHash) == 64 && isHexString(storedHash) {
		return "sha256"
	}
	return "unknown"
}

func isHexString(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// VerifyToken verifies a raw token against a stored hash. Supports Argon2id
// (PHC format), "sha256:"-prefixed, and legacy bare SHA-256 hex. Returns
// (false, ErrUnknownHashType) for unrecognized formats.
func VerifyToken(rawToken, storedHash string) (bool, error) {
	switch DetectHashType(storedHash) {
	case "argon2id":
		return safeArgon2idCompare(rawToken, storedHash)

	case "sha256":
		expected := strings.TrimPrefix(storedHash, "sha256:")
		computed := strings.TrimPrefix(HashToken(rawToken), "sha256:")
		// Constant-time comparison to prevent timing attacks.
		return subtle.ConstantTimeCompare([]byte(computed), []byte(expected)) == 1, nil

	default:
		return false, ErrUnknownHashType
	}
}

// safeArgon2idCompare wraps argon2id.ComparePasswordAndHash with panic
// recovery: the underlying argon2 library panics on malformed hashes with
// invalid parameters (e.g. t=0). Those become errors instead.
func safeArgon2idCompare(rawToken, storedHash string) (match bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			match = false
			err = fmt.Errorf("invalid argon2id hash parameters: %v", r)
		}
	}()
	return argon2id.ComparePasswordAndHash(rawToken, storedHash)
}
