package http

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stockpile-hq/stockpile/internal/ctxkey"
	"github.com/stockpile-hq/stockpile/internal/domain/auth"
	"github.com/stockpile-hq/stockpile/internal/domain/ratelimit"
	"github.com/stockpile-hq/stockpile/pkg/jsonrpc"
)

// ipContextKey carries the resolved client IP for rate limiting.
type ipContextKey struct{}

// RequestIDMiddleware extracts or generates a request ID and enriches the
// logger. The request ID is stored in context using ctxkey.RequestIDKey;
// an enriched logger with the request_id field is stored using
// ctxkey.LoggerKey.
func RequestIDMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			enriched := logger.With("request_id", requestID)

			ctx := context.WithValue(r.Context(), ctxkey.RequestIDKey{}, requestID)
			ctx = context.WithValue(ctx, ctxkey.LoggerKey{}, enriched)

			// Echoed for correlation.
			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggerFromContext retrieves the enriched logger from context.
// Returns slog.Default() if no logger is in context.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// OriginProtection validates the Origin header against an allowlist,
// preventing DNS rebinding through browsers. Requests without an Origin
// header pass (same-origin or non-browser). With an empty allowlist every
// request carrying an Origin is blocked (local-only mode).
func OriginProtection(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := allowed[origin]; !ok {
				http.Error(w, "Forbidden: origin not allowed", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RealIPMiddleware resolves the client's IP address for rate limiting:
// X-Forwarded-For first (only the first entry is trusted), then X-Real-IP,
// then the socket address.
func RealIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := extractRealIP(r)
		ctx := context.WithValue(r.Context(), ipContextKey{}, ip)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractRealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// TokenAuthMiddleware is the request gate. When required, every request
// must carry a valid bearer token; failures are answered with 401 and a
// JSON-RPC error envelope with a null id, since the request body is never
// parsed. When not required, requests pass through without validation and
// no identity is attached.
func TokenAuthMiddleware(svc *auth.TokenService, required bool, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !required {
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" {
				unauthorized(w, r, metrics, "missing bearer token")
				return
			}
			identity, err := svc.Validate(r.Context(), token)
			if err != nil {
				unauthorized(w, r, metrics, "token validation failed")
				return
			}

			ctx := context.WithValue(r.Context(), ctxkey.IdentityKey{}, identity)
			enriched := LoggerFromContext(ctx).With("identity", identity.ID)
			ctx = context.WithValue(ctx, ctxkey.LoggerKey{}, enriched)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

func unauthorized(w http.ResponseWriter, r *http.Request, metrics *Metrics, reason string) {
	LoggerFromContext(r.Context()).WarnContext(r.Context(), "request rejected",
		"reason", reason,
		"path", r.URL.Path)
	if metrics != nil {
		metrics.AuthFailuresTotal.Inc()
	}
	writeError(w, http.StatusUnauthorized, jsonrpc.CodeUnauthorized, "Unauthorized")
}

// RateLimitMiddleware applies a per-IP GCRA limit ahead of the gate.
// A nil limiter or zero rate disables limiting.
func RateLimitMiddleware(limiter ratelimit.Limiter, cfg ratelimit.Config, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || cfg.Rate <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _ := r.Context().Value(ipContextKey{}).(string)
			if ip == "" {
				ip = extractRealIP(r)
			}

			result, err := limiter.Allow(r.Context(), ratelimit.FormatKey(ratelimit.KeyTypeIP, ip), cfg)
			if err != nil {
				// Fail open: a broken limiter must not take the service down.
				LoggerFromContext(r.Context()).ErrorContext(r.Context(), "rate limiter failure", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !result.Allowed {
				if metrics != nil {
					metrics.RateLimitedTotal.Inc()
				}
				w.Header().Set("Retry-After", formatSeconds(result.RetryAfter))
				writeError(w, http.StatusTooManyRequests, jsonrpc.CodeRateLimited, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// formatSeconds renders a duration as whole seconds for the Retry-After
// header, rounding up so clients never retry early.
func formatSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
