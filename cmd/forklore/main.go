// Package main provides the entry point for the forklore CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0-dev"
	globalUser string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "forklore",
		Short:   "Branching fiction with a spoiler-safe, time-versioned wiki",
		Version: version,
	}

	rootCmd.PersistentFlags().StringVarP(&globalUser, "user", "u", os.Getenv(EnvUser), "User to act as (or set "+EnvUser+")")

	rootCmd.AddCommand(
		newInitCmd(),
		newServeCmd(),
		newWorksCmd(),
		newBranchesCmd(),
		newLinksCmd(),
		newVoteCmd(),
		newWikiCmd(),
		newImportCmd(),
	)

	return rootCmd
}
