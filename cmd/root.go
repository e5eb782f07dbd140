// Package cmd defines and implements the CLI commands for the sitedown
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitedown",
		Short: "Crawl a website and export it as Markdown.",
		Long: `sitedown walks a website breadth-first, converts every page it accepts
to Markdown, and merges the results into a single document. Crawling stays
within the start URL's site, visits each page once, and drops pages whose
converted content duplicates an already-accepted page.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.AddCommand(newCrawlCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
