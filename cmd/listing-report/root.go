package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listing-report",
		Short: "Scrape product listings into an xlsx report",
		Long: `listing-report visits the configured listing pages in a headless browser,
extracts title and price for every product, optionally follows each product's
detail page for one extra field, and writes one worksheet per site.

Configuration is read from the environment (SERVER_*, BROWSER_*, SCRAPE_*,
DB_*, REDIS_*, LOG_*). Site registries come from the built-in defaults and
the YAML file named by SITES_FILE.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewSitesCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
