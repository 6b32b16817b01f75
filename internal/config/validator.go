package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers project-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	// token_hash: "sha256:<64 hex>" or an Argon2id PHC string.
	if err := v.RegisterValidation("token_hash", validateTokenHash); err != nil {
		return fmt.Errorf("failed to register token_hash validator: %w", err)
	}
	return nil
}

// validateTokenHash accepts the two stored-hash formats the token service
// understands.
func validateTokenHash(fl validator.FieldLevel) bool {
	hash := fl.Field().String()

	if strings.HasPrefix(hash, "$argon2id$") {
		return true
	}
	if h, ok := strings.CutPrefix(hash, "sha256:"); ok {
		return len(h) == 64 && isHex(h)
	}
	return false
}

func isHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// Validate validates the Config using struct tags and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateDurations(); err != nil {
		return err
	}
	if err := c.validateIdentityReferences(); err != nil {
		return err
	}
	if err := c.validateTLSPair(); err != nil {
		return err
	}
	return nil
}

// validateDurations parses every duration-typed string field.
func (c *Config) validateDurations() error {
	fields := map[string]string{
		"server.exchange_timeout":     c.Server.ExchangeTimeout,
		"rate_limit.cleanup_interval": c.RateLimit.CleanupInterval,
		"rate_limit.max_ttl":          c.RateLimit.MaxTTL,
		"telemetry.export_interval":   c.Telemetry.ExportInterval,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q", name, value)
		}
		if d <= 0 {
			return fmt.Errorf("%s: duration must be positive, got %q", name, value)
		}
	}
	return nil
}

// validateIdentityReferences ensures every token references a configured
// identity.
func (c *Config) validateIdentityReferences() error {
	known := make(map[string]struct{}, len(c.Auth.Identities))
	for _, identity := range c.Auth.Identities {
		known[identity.ID] = struct{}{}
	}
	for i, token := range c.Auth.Tokens {
		if _, exists := known[token.IdentityID]; !exists {
			return fmt.Errorf("tokens[%d]: references unknown identity_id: %s", i, token.IdentityID)
		}
	}
	return nil
}

// validateTLSPair ensures the certificate and key are set together.
func (c *Config) validateTLSPair() error {
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return errors.New("server: tls_cert and tls_key must be set together")
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to
// user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single
// validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "token_hash":
		return fmt.Sprintf("%s must be 'sha256:<hex>' or an Argon2id PHC string", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
