// Package cmd provides the CLI commands for Stockpile.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stockpile-hq/stockpile/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "stockpile",
	Short: "Stockpile - inventory data over MCP",
	Long: `Stockpile serves inventory data (parts, stock, categories, locations,
BOMs and tags) to MCP clients over HTTP.

It bridges each HTTP request through an embedded MCP runtime: requests are
authenticated at the gate, authorized per tool call by CEL policies, rate
limited per IP, and answered from a SQLite inventory store.

Quick start:
  1. Create a config file: stockpile.yaml
  2. Run: stockpile serve

Configuration:
  Config is loaded from stockpile.yaml in the current directory,
  $HOME/.stockpile/, or /etc/stockpile/.

  Environment variables can override config values with the STOCKPILE_ prefix.
  Example: STOCKPILE_SERVER_HTTP_ADDR=:9090

Commands:
  serve       Start the server
  stop        Stop the running server
  seed        Load inventory fixtures into the database
  hash-token  Generate a stored hash for a bearer token
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./stockpile.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
