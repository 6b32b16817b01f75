// Package config provides the configuration schema for the Stockpile
// bridge: server listener and gate settings, the SQLite database, seeded
// identities and tokens, access policies, rate limiting and telemetry.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration.
type Config struct {
	// Server configures the HTTP listener and the exchange bridge.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Database configures the SQLite inventory store.
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`

	// Auth configures file-based identities and bearer tokens.
	// Optional: when empty and the gate is required, every request is
	// rejected.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// Policies defines the access control rules evaluated per tool call.
	// Optional: when empty, every authenticated call is allowed.
	Policies []PolicyConfig `yaml:"policies" mapstructure:"policies" validate:"omitempty,dive"`

	// RateLimit configures optional per-IP rate limiting.
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`

	// Telemetry configures optional OpenTelemetry tracing and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`

	// DevMode enables development defaults: a dev identity and token, an
	// allow-all policy and debug logging.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server. TLS certificates are optional;
// without them the server speaks plain HTTP (use a reverse proxy for TLS
// in production).
type ServerConfig struct {
	// HTTPAddr is the address to listen on (e.g., "127.0.0.1:8080").
	// Defaults to "127.0.0.1:8080" (localhost only) if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	// Defaults to "info" if empty. DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// ExchangeTimeout bounds one exchange through the runtime (e.g.,
	// "30s", "1m"). Defaults to "30s".
	ExchangeTimeout string `yaml:"exchange_timeout" mapstructure:"exchange_timeout" validate:"omitempty"`

	// RequireAuth controls the request gate. Defaults to true; set to
	// false only for local development.
	RequireAuth bool `yaml:"require_auth" mapstructure:"require_auth"`

	// AllowedOrigins is the Origin allowlist for DNS rebinding
	// protection. Empty blocks every request that carries an Origin
	// header (local-only mode).
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`

	// TLSCert and TLSKey are paths to a certificate/key pair. Both must
	// be set to enable TLS.
	TLSCert string `yaml:"tls_cert" mapstructure:"tls_cert"`
	TLSKey  string `yaml:"tls_key" mapstructure:"tls_key"`
}

// DatabaseConfig configures the SQLite inventory store.
type DatabaseConfig struct {
	// Path is the SQLite database file. Defaults to "stockpile.db".
	// Use ":memory:" for an ephemeral store.
	Path string `yaml:"path" mapstructure:"path"`

	// Fixtures is an optional YAML fixture file loaded into an empty
	// database at startup.
	Fixtures string `yaml:"fixtures" mapstructure:"fixtures"`
}

// AuthConfig configures file-based authentication.
type AuthConfig struct {
	// Identities defines the known identities (users/services).
	Identities []IdentityConfig `yaml:"identities" mapstructure:"identities" validate:"omitempty,dive"`

	// Tokens defines the bearer tokens that map to identities.
	Tokens []TokenConfig `yaml:"tokens" mapstructure:"tokens" validate:"omitempty,dive"`
}

// IdentityConfig defines a file-based identity.
type IdentityConfig struct {
	// ID is the unique identifier for this identity.
	ID string `yaml:"id" mapstructure:"id" validate:"required"`

	// Name is the human-readable name for this identity.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	// Roles are the roles assigned to this identity (used in policy
	// evaluation). At least one is required.
	Roles []string `yaml:"roles" mapstructure:"roles" validate:"required,min=1,dive,oneof=admin user read-only"`
}

// TokenConfig defines a bearer token that authenticates as an identity.
type TokenConfig struct {
	// TokenHash is the stored token hash: "sha256:<hex>" or an Argon2id
	// PHC string. Generate with `stockpile hash-token`.
	TokenHash string `yaml:"token_hash" mapstructure:"token_hash" validate:"required,token_hash"`

	// IdentityID references the identity this token authenticates as.
	// Must match an ID in Auth.Identities.
	IdentityID string `yaml:"identity_id" mapstructure:"identity_id" validate:"required"`

	// Name is a human-readable label for the token.
	Name string `yaml:"name" mapstructure:"name"`
}

// PolicyConfig defines a named set of access control rules.
type PolicyConfig struct {
	// Name is the unique identifier for this policy.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	// Rules are evaluated in order; first match wins.
	Rules []RuleConfig `yaml:"rules" mapstructure:"rules" validate:"required,min=1,dive"`
}

// RuleConfig defines a single access control rule.
type RuleConfig struct {
	// Name is a human-readable identifier for this rule.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	// Condition is a CEL expression over the call context (tool,
	// read_only, identity, roles).
	Condition string `yaml:"condition" mapstructure:"condition" validate:"required"`

	// Action is what to do when the condition matches: "allow" or "deny".
	Action string `yaml:"action" mapstructure:"action" validate:"required,oneof=allow deny"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	// Enabled turns rate limiting on or off. Defaults to true.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// IPRate is the maximum requests per minute per IP address.
	// Defaults to 100 if rate limiting is enabled.
	IPRate int `yaml:"ip_rate" mapstructure:"ip_rate" validate:"omitempty,min=1"`

	// Burst is the extra burst allowance on top of the steady rate.
	// Defaults to IPRate.
	Burst int `yaml:"burst" mapstructure:"burst" validate:"omitempty,min=1"`

	// CleanupInterval is how often expired entries are swept (e.g., "5m").
	// Defaults to "5m".
	CleanupInterval string `yaml:"cleanup_interval" mapstructure:"cleanup_interval" validate:"omitempty"`

	// MaxTTL is the maximum age of an entry before removal (e.g., "1h").
	// Defaults to "1h".
	MaxTTL string `yaml:"max_ttl" mapstructure:"max_ttl" validate:"omitempty"`
}

// TelemetryConfig configures OpenTelemetry export. Off by default.
type TelemetryConfig struct {
	// Enabled turns tracing and metric export on.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// SampleRatio is the trace sampling ratio in (0, 1]. Zero samples
	// everything.
	SampleRatio float64 `yaml:"sample_ratio" mapstructure:"sample_ratio" validate:"omitempty,min=0,max=1"`

	// ExportInterval is the metric export interval (e.g., "1m").
	// Defaults to "1m".
	ExportInterval string `yaml:"export_interval" mapstructure:"export_interval" validate:"omitempty"`
}

// devTokenHash is the SHA-256 of "dev-token", the development bearer token.
const devTokenHash = "sha256:c91cbbedf8c712e8e2b7517ddeca8fe4fde839ebd8339e0b2001363002b37712"

// SetDevDefaults applies permissive defaults for development mode: a dev
// identity with the admin role, the "dev-token" bearer token and an
// allow-all policy. Applied before validation so required fields are
// satisfied.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}

	if len(c.Auth.Identities) == 0 {
		c.Auth.Identities = []IdentityConfig{
			{
				ID:    "dev-user",
				Name:  "Development User",
				Roles: []string{"admin"},
			},
		}
	}

	if len(c.Auth.Tokens) == 0 {
		c.Auth.Tokens = []TokenConfig{
			{
				TokenHash:  devTokenHash,
				IdentityID: "dev-user",
				Name:       "dev token",
			},
		}
	}

	if len(c.Policies) == 0 {
		c.Policies = []PolicyConfig{
			{
				Name: "dev-allow-all",
				Rules: []RuleConfig{
					{
						Name:      "allow-all",
						Condition: "true",
						Action:    "allow",
					},
				},
			},
		}
	}

	c.Server.LogLevel = "debug"
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	// Bind to localhost only by default. Users who need network access
	// must explicitly set http_addr: "0.0.0.0:8080".
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.ExchangeTimeout == "" {
		c.Server.ExchangeTimeout = "30s"
	}
	// The gate defaults to on. viper.IsSet distinguishes "not set" (zero
	// value) from "explicitly false".
	if !viper.IsSet("server.require_auth") {
		c.Server.RequireAuth = true
	}

	if c.Database.Path == "" {
		c.Database.Path = "stockpile.db"
	}

	// Rate limit defaults — enabled by default for security.
	if !viper.IsSet("rate_limit.enabled") {
		c.RateLimit.Enabled = true
	}
	if c.RateLimit.IPRate == 0 {
		c.RateLimit.IPRate = 100
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = c.RateLimit.IPRate
	}
	if c.RateLimit.CleanupInterval == "" {
		c.RateLimit.CleanupInterval = "5m"
	}
	if c.RateLimit.MaxTTL == "" {
		c.RateLimit.MaxTTL = "1h"
	}

	if c.Telemetry.ExportInterval == "" {
		c.Telemetry.ExportInterval = "1m"
	}
}

// ExchangeTimeoutDuration parses the exchange timeout, falling back to 30
// seconds on a malformed value. Validate reports the malformed value as an
// error before this is reached in normal startup.
func (c *Config) ExchangeTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Server.ExchangeTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
