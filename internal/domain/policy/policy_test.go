package policy

import (
	"context"
	"strings"
	"testing"
)

func TestEmptyRuleSetAllows(t *testing.T) {
	e, err := NewEngine(nil)
	if err != nil {
		t.Fatal(err)
	}
	d, err := e.Evaluate(context.Background(), Input{Tool: "list_parts"})
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed {
		t.Error("empty rule set denied the call")
	}
}

func TestDenyRuleWins(t *testing.T) {
	e, err := NewEngine([]Rule{
		{Name: "allow-all", Effect: EffectAllow, Expression: `true`},
		{Name: "no-deletes", Effect: EffectDeny, Expression: `tool.startsWith("delete_")`},
	})
	if err != nil {
		t.Fatal(err)
	}

	d, err := e.Evaluate(context.Background(), Input{Tool: "delete_parts"})
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Error("deny rule did not win over allow rule")
	}
	if d.Rule != "no-deletes" {
		t.Errorf("deciding rule = %q, want no-deletes", d.Rule)
	}

	d, err = e.Evaluate(context.Background(), Input{Tool: "list_parts"})
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed || d.Rule != "allow-all" {
		t.Errorf("decision = %+v, want allow via allow-all", d)
	}
}

func TestAllowRulesRequireMatch(t *testing.T) {
	e, err := NewEngine([]Rule{
		{Name: "readers", Effect: EffectAllow, Expression: `read_only || "admin" in roles`},
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		in   Input
		want bool
	}{
		{"read-only tool", Input{Tool: "list_parts", ReadOnly: true}, true},
		{"admin caller", Input{Tool: "create_part", Roles: []string{"admin"}}, true},
		{"plain user mutating", Input{Tool: "create_part", Roles: []string{"user"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := e.Evaluate(context.Background(), tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if d.Allowed != tt.want {
				t.Errorf("Allowed = %v, want %v", d.Allowed, tt.want)
			}
		})
	}
}

func TestIdentityVariable(t *testing.T) {
	e, err := NewEngine([]Rule{
		{Name: "block-bot", Effect: EffectDeny, Expression: `identity == "bot"`},
	})
	if err != nil {
		t.Fatal(err)
	}
	d, err := e.Evaluate(context.Background(), Input{Tool: "list_parts", Identity: "bot"})
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Error("identity-based deny did not apply")
	}
}

func TestNewEngineRejectsBadRules(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{"bad effect", Rule{Name: "x", Effect: "maybe", Expression: "true"}},
		{"empty expression", Rule{Name: "x", Effect: EffectAllow, Expression: ""}},
		{"syntax error", Rule{Name: "x", Effect: EffectAllow, Expression: "tool =="}},
		{"non-bool result", Rule{Name: "x", Effect: EffectAllow, Expression: `tool`}},
		{"unknown variable", Rule{Name: "x", Effect: EffectAllow, Expression: `user == "a"`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEngine([]Rule{tt.rule}); err == nil {
				t.Error("invalid rule accepted")
			}
		})
	}
}

func TestValidateExpressionLimits(t *testing.T) {
	if err := ValidateExpression(strings.Repeat("a", maxExpressionLength+1)); err == nil {
		t.Error("over-long expression accepted")
	}
	deep := strings.Repeat("(", maxNestingDepth+1) + "true" + strings.Repeat(")", maxNestingDepth+1)
	if err := ValidateExpression(deep); err == nil {
		t.Error("over-nested expression accepted")
	}
	if err := ValidateExpression(`tool == "x"`); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
}
