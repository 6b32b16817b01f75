package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stockpile-hq/stockpile/internal/adapter/outbound/memory"
	"github.com/stockpile-hq/stockpile/internal/config"
	"github.com/stockpile-hq/stockpile/internal/domain/policy"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseDurationOr(t *testing.T) {
	if got := parseDurationOr("90s", time.Minute); got != 90*time.Second {
		t.Errorf("valid duration: got %v", got)
	}
	if got := parseDurationOr("junk", time.Minute); got != time.Minute {
		t.Errorf("malformed duration: got %v", got)
	}
	if got := parseDurationOr("-1s", time.Minute); got != time.Minute {
		t.Errorf("negative duration: got %v", got)
	}
}

func TestBuildPolicyEngine(t *testing.T) {
	cfg := &config.Config{
		Policies: []config.PolicyConfig{
			{
				Name: "base",
				Rules: []config.RuleConfig{
					{Name: "reads", Condition: "read_only", Action: "allow"},
					{Name: "no-deletes", Condition: `tool == "delete_parts"`, Action: "deny"},
				},
			},
		},
	}

	engine, rules, err := buildPolicyEngine(cfg)
	if err != nil {
		t.Fatalf("buildPolicyEngine: %v", err)
	}
	if rules != 2 {
		t.Errorf("rules = %d, want 2", rules)
	}

	dec, err := engine.Evaluate(context.Background(), policy.Input{
		Tool: "delete_parts", ReadOnly: false,
	})
	if err != nil {
		t.Fatal(err)
	}
	if dec.Allowed {
		t.Error("deny rule did not apply")
	}
	if dec.Rule != "base/no-deletes" {
		t.Errorf("deciding rule = %q, want base/no-deletes", dec.Rule)
	}
}

func TestBuildPolicyEngineRejectsBadExpression(t *testing.T) {
	cfg := &config.Config{
		Policies: []config.PolicyConfig{
			{
				Name: "broken",
				Rules: []config.RuleConfig{
					{Name: "oops", Condition: "tool ==", Action: "deny"},
				},
			},
		},
	}
	if _, _, err := buildPolicyEngine(cfg); err == nil {
		t.Fatal("invalid CEL expression compiled")
	}
}

func TestBuildPolicyEngineEmptyAllowsAll(t *testing.T) {
	engine, rules, err := buildPolicyEngine(&config.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if rules != 0 {
		t.Errorf("rules = %d, want 0", rules)
	}
	dec, err := engine.Evaluate(context.Background(), policy.Input{Tool: "anything"})
	if err != nil || !dec.Allowed {
		t.Errorf("empty rule set must allow: dec=%+v err=%v", dec, err)
	}
}

func TestSeedAuthFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth.Identities = []config.IdentityConfig{
		{ID: "ops", Name: "Operations", Roles: []string{"admin", "user"}},
	}
	cfg.Auth.Tokens = []config.TokenConfig{
		{TokenHash: "sha256:00", IdentityID: "ops", Name: "ops token"},
	}

	store := memory.NewAuthStore()
	seedAuthFromConfig(cfg, store)

	ident, err := store.GetIdentity(context.Background(), "ops")
	if err != nil {
		t.Fatalf("GetIdentity: %v", err)
	}
	if len(ident.Roles) != 2 {
		t.Errorf("roles = %v", ident.Roles)
	}
	token, err := store.GetToken(context.Background(), "sha256:00")
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if token.IdentityID != "ops" {
		t.Errorf("token identity = %q", token.IdentityID)
	}
}

func TestReadPIDFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.pid")

	if got := readPIDFile(path); got != 0 {
		t.Errorf("missing file: pid = %d, want 0", got)
	}

	if err := os.WriteFile(path, []byte("12345\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := readPIDFile(path); got != 12345 {
		t.Errorf("pid = %d, want 12345", got)
	}

	if err := os.WriteFile(path, []byte("junk"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := readPIDFile(path); got != 0 {
		t.Errorf("garbage file: pid = %d, want 0", got)
	}
}
