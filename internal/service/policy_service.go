package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stockpile-hq/stockpile/internal/ctxkey"
	"github.com/stockpile-hq/stockpile/internal/domain/auth"
	"github.com/stockpile-hq/stockpile/internal/domain/policy"
)

// PolicyService authorizes tool calls against the configured rule set,
// using the authenticated identity carried in the request context.
type PolicyService struct {
	engine *policy.Engine
	logger *slog.Logger
}

// NewPolicyService creates the service over a compiled policy engine.
func NewPolicyService(engine *policy.Engine, logger *slog.Logger) *PolicyService {
	return &PolicyService{engine: engine, logger: logger}
}

// Authorize evaluates the rule set for one tool call. A denial comes back
// as a plain error suitable for surfacing as a tool-level error.
func (s *PolicyService) Authorize(ctx context.Context, tool string, readOnly bool) error {
	in := policy.Input{Tool: tool, ReadOnly: readOnly}
	if ident, ok := ctx.Value(ctxkey.IdentityKey{}).(*auth.Identity); ok && ident != nil {
		in.Identity = ident.ID
		in.Roles = ident.RoleNames()
	}

	decision, err := s.engine.Evaluate(ctx, in)
	if err != nil {
		return fmt.Errorf("policy evaluation: %w", err)
	}
	if !decision.Allowed {
		s.logger.WarnContext(ctx, "tool call denied by policy",
			"tool", tool,
			"identity", in.Identity,
			"rule", decision.Rule)
		if decision.Rule != "" {
			return fmt.Errorf("denied by policy rule %q", decision.Rule)
		}
		return errors.New("denied by policy")
	}
	return nil
}
