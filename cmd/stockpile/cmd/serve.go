package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stockpile-hq/stockpile/internal/adapter/inbound/http"
	mcpadapter "github.com/stockpile-hq/stockpile/internal/adapter/outbound/mcp"
	"github.com/stockpile-hq/stockpile/internal/adapter/outbound/memory"
	"github.com/stockpile-hq/stockpile/internal/adapter/outbound/sqlite"
	"github.com/stockpile-hq/stockpile/internal/config"
	"github.com/stockpile-hq/stockpile/internal/domain/auth"
	"github.com/stockpile-hq/stockpile/internal/domain/catalog"
	"github.com/stockpile-hq/stockpile/internal/domain/exchange"
	"github.com/stockpile-hq/stockpile/internal/domain/inventory"
	"github.com/stockpile-hq/stockpile/internal/domain/policy"
	"github.com/stockpile-hq/stockpile/internal/domain/ratelimit"
	"github.com/stockpile-hq/stockpile/internal/domain/runtime"
	"github.com/stockpile-hq/stockpile/internal/service"
	"github.com/stockpile-hq/stockpile/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the server",
	Long: `Start the Stockpile server.

The server exposes the MCP endpoint on /mcp, a health probe on /health and
Prometheus metrics on /metrics. The protocol runtime starts lazily on the
first exchange.

Examples:
  # Start with config file settings
  stockpile serve

  # Start in development mode (dev token, allow-all policy, debug logs)
  stockpile serve --dev

  # Start with a specific config file
  stockpile --config /path/to/config.yaml serve`,
	RunE: runServe,
}

var devMode bool

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (dev token, allow-all policy, debug logging)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load without validation so the --dev flag can override first.
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Signal context for graceful shutdown. stop() restores default signal
	// handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}
	if cfg.DevMode {
		logger.Warn("development mode enabled, do not use in production")
	}

	// Write the PID file so "stockpile stop" can find us.
	pidPath := pidFilePath()
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("failed to write PID file", "path", pidPath, "error", err)
	} else {
		defer os.Remove(pidPath)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}
	logger.Info("stockpile stopped")
	return nil
}

// run wires all components together and serves until the context ends.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = store.Close() }()
	logger.Info("database opened", "path", cfg.Database.Path)

	if cfg.Database.Fixtures != "" {
		if err := seedIfEmpty(ctx, store, cfg.Database.Fixtures, logger); err != nil {
			return fmt.Errorf("seed fixtures: %w", err)
		}
	}

	// Auth: identities and token hashes come from config.
	authStore := memory.NewAuthStore()
	seedAuthFromConfig(cfg, authStore)
	tokenService := auth.NewTokenService(authStore)
	logger.Debug("seeded auth from config",
		"identities", len(cfg.Auth.Identities),
		"tokens", len(cfg.Auth.Tokens))

	// Policies: compile once at startup, invalid rules fail the boot.
	engine, ruleCount, err := buildPolicyEngine(cfg)
	if err != nil {
		return fmt.Errorf("compile policies: %w", err)
	}
	policyService := service.NewPolicyService(engine, logger)
	logger.Info("policies compiled", "rules", ruleCount)

	// Tool catalog and MCP server.
	registry := catalog.NewRegistry()
	service.NewInventoryService(store, logger).RegisterOperations(registry)
	server := mcpadapter.BuildServer(registry, mcpadapter.ServerInfo{
		Name:    "stockpile",
		Version: Version,
	}, policyService, logger)
	logger.Info("tool catalog registered",
		"tools", registry.Len(),
		"fingerprint", fmt.Sprintf("%016x", registry.Fingerprint()))

	// The runtime handle starts the engine on the first exchange. Startup
	// verifies the store is reachable before the engine goes live.
	handle := runtime.NewHandle(func(ctx context.Context) (exchange.Engine, error) {
		if err := store.Ping(ctx); err != nil {
			return nil, fmt.Errorf("database ping: %w", err)
		}
		logger.Info("protocol engine started")
		return mcpadapter.NewEngine(server, logger), nil
	})

	opts := []http.Option{
		http.WithAddr(cfg.Server.HTTPAddr),
		http.WithExchangeTimeout(cfg.ExchangeTimeoutDuration()),
		http.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		http.WithAuth(tokenService, cfg.Server.RequireAuth),
		http.WithLogger(logger),
	}
	if cfg.Server.TLSCert != "" && cfg.Server.TLSKey != "" {
		opts = append(opts, http.WithTLS(cfg.Server.TLSCert, cfg.Server.TLSKey))
	}

	var rateLimiter *memory.RateLimiter
	if cfg.RateLimit.Enabled {
		cleanup := parseDurationOr(cfg.RateLimit.CleanupInterval, 5*time.Minute)
		maxTTL := parseDurationOr(cfg.RateLimit.MaxTTL, time.Hour)
		rateLimiter = memory.NewRateLimiterWithConfig(cleanup, maxTTL)
		rateLimiter.StartSweep(ctx)
		defer rateLimiter.Stop()

		opts = append(opts, http.WithRateLimit(rateLimiter, ratelimit.Config{
			Rate:   cfg.RateLimit.IPRate,
			Burst:  cfg.RateLimit.Burst,
			Period: time.Minute,
		}))
		logger.Debug("rate limiting enabled",
			"ip_rate", cfg.RateLimit.IPRate,
			"burst", cfg.RateLimit.Burst)
	}

	tel, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "stockpile",
		ServiceVersion: Version,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		ExportInterval: parseDurationOr(cfg.Telemetry.ExportInterval, time.Minute),
	})
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()
	if tel.Enabled() {
		opts = append(opts, http.WithMiddleware(tel.Middleware))
		logger.Info("telemetry enabled")
	}

	opts = append(opts, http.WithHealthChecker(
		http.NewHealthChecker(store, rateLimiter, handle, registry, Version)))

	transport := http.NewTransport(handle, opts...)
	logger.Info("stockpile ready",
		"addr", cfg.Server.HTTPAddr,
		"require_auth", cfg.Server.RequireAuth,
		"version", Version)
	return transport.Start(ctx)
}

// seedIfEmpty loads fixtures only into an empty database. Fixture rows
// carry explicit IDs, so re-seeding a populated database would conflict.
func seedIfEmpty(ctx context.Context, store *sqlite.Store, path string, logger *slog.Logger) error {
	existing, err := store.ListParts(ctx, inventory.PartFilter{Limit: 1})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Debug("database already populated, skipping fixtures", "path", path)
		return nil
	}

	fixtures, err := sqlite.LoadFixtures(path)
	if err != nil {
		return err
	}
	if err := store.Seed(ctx, fixtures); err != nil {
		return err
	}
	logger.Info("fixtures loaded",
		"path", path,
		"parts", len(fixtures.Parts),
		"stock_items", len(fixtures.StockItems))
	return nil
}

// seedAuthFromConfig copies config identities and tokens into the store.
func seedAuthFromConfig(cfg *config.Config, store *memory.AuthStore) {
	for _, ident := range cfg.Auth.Identities {
		roles := make([]auth.Role, len(ident.Roles))
		for i, r := range ident.Roles {
			roles[i] = auth.Role(r)
		}
		store.AddIdentity(&auth.Identity{
			ID:    ident.ID,
			Name:  ident.Name,
			Roles: roles,
		})
	}
	now := time.Now().UTC()
	for _, token := range cfg.Auth.Tokens {
		store.AddToken(&auth.Token{
			Hash:       token.TokenHash,
			IdentityID: token.IdentityID,
			Name:       token.Name,
			CreatedAt:  now,
		})
	}
}

// buildPolicyEngine flattens the configured policies into one ordered rule
// set and compiles it.
func buildPolicyEngine(cfg *config.Config) (*policy.Engine, int, error) {
	var rules []policy.Rule
	for _, p := range cfg.Policies {
		for _, r := range p.Rules {
			rules = append(rules, policy.Rule{
				Name:       p.Name + "/" + r.Name,
				Effect:     policy.Effect(r.Action),
				Expression: r.Condition,
			})
		}
	}
	engine, err := policy.NewEngine(rules)
	if err != nil {
		return nil, 0, err
	}
	return engine, len(rules), nil
}

// parseLogLevel converts a string log level to slog.Level. Returns
// slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parseDurationOr parses a duration string, falling back to def on a
// malformed or non-positive value.
func parseDurationOr(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// pidFilePath returns the standard location for the Stockpile PID file.
func pidFilePath() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".stockpile", "server.pid")
	}
	return filepath.Join(os.TempDir(), "stockpile-server.pid")
}

// writePIDFile writes the current process PID to the given path, creating
// parent directories as needed.
func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}
