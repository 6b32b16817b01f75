// Package ratelimit defines the rate limiting port for the bridge.
// Implementations use GCRA (Generic Cell Rate Algorithm), which spreads
// requests evenly over time instead of resetting at window boundaries.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Config holds the parameters for one rate limit.
type Config struct {
	// Rate is the number of allowed requests per Period.
	Rate int
	// Burst is how many requests may arrive back to back. Zero means
	// Burst = Rate.
	Burst int
	// Period is the time window Rate applies to.
	Period time.Duration
}

// Result is the outcome of a single limit check.
type Result struct {
	Allowed bool
	// Remaining is how many more requests would currently be allowed.
	Remaining int
	// RetryAfter is how long until the next request would be allowed.
	// Only meaningful when Allowed is false.
	RetryAfter time.Duration
	// ResetAfter is how long until the limiter state for this key decays
	// back to idle.
	ResetAfter time.Duration
}

// Limiter is the rate limiting port. Implementations must be safe for
// concurrent use.
type Limiter interface {
	// Allow records one request under key and reports whether it is
	// within the configured limit.
	Allow(ctx context.Context, key string, cfg Config) (Result, error)
}

// KeyType distinguishes what a limit key identifies.
type KeyType string

const (
	// KeyTypeIP limits by client address, before authentication.
	KeyTypeIP KeyType = "ip"
	// KeyTypeIdentity limits by authenticated identity.
	KeyTypeIdentity KeyType = "identity"
)

// FormatKey builds the structured limiter key "ratelimit:{type}:{value}".
func FormatKey(t KeyType, value string) string {
	return fmt.Sprintf("ratelimit:%s:%s", t, value)
}
