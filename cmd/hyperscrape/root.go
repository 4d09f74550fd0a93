package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for hyperscrape.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hyperscrape",
		Short: "Crawler for hyper:// drives",
		Long: `hyperscrape discovers hyper:// drives by crawling outward from a set of seeds.

Each drive is listed, its text files are scanned for hyper:// addresses and
its mounts are followed, until every reachable drive has been visited once.
Drives are read from a local store directory or from a drive daemon.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
