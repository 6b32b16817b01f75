package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stockpile-hq/stockpile/internal/adapter/outbound/sqlite"
	"github.com/stockpile-hq/stockpile/internal/config"
)

var seedDBPath string

var seedCmd = &cobra.Command{
	Use:   "seed [fixtures.yaml]",
	Short: "Load inventory fixtures into the database",
	Long: `Load an inventory fixture file into the SQLite database.

The fixture file defines categories, locations, parts, stock items, BOM
lines and tags in YAML. Fixture rows carry explicit IDs, so seeding is
meant for an empty database.

The database path comes from the config file (database.path) unless
overridden with --db.

Examples:
  stockpile seed fixtures.yaml
  stockpile seed --db /var/lib/stockpile/stockpile.db fixtures.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedDBPath, "db", "", "database file (default: config database.path)")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	dbPath := seedDBPath
	if dbPath == "" {
		cfg, err := config.LoadConfigRaw()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		dbPath = cfg.Database.Path
	}

	fixtures, err := sqlite.LoadFixtures(args[0])
	if err != nil {
		return fmt.Errorf("failed to load fixtures: %w", err)
	}

	store, err := sqlite.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Seed(cmd.Context(), fixtures); err != nil {
		return fmt.Errorf("failed to seed database: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Seeded %s: %d categories, %d locations, %d parts, %d stock items, %d BOM lines\n",
		dbPath,
		len(fixtures.Categories),
		len(fixtures.Locations),
		len(fixtures.Parts),
		len(fixtures.StockItems),
		len(fixtures.BOMItems))
	return nil
}
