// Package main is the entry point for the mirrorrank CLI.
//
// Usage:
//
//	mirrorrank run                      # Rank the mirrors listed in mirrors.md
//	mirrorrank run -c mirrorrank.yaml   # Rank the mirrors from a config file
//	mirrorrank serve -c mirrorrank.yaml # Re-rank periodically and serve the results
//	mirrorrank validate -c config.yaml  # Validate configuration
//	mirrorrank version                  # Show version info
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// newRootCmd builds the command tree. Each call returns fresh flag state.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mirrorrank",
		Short: "Rank container registry mirrors by reliability and latency",
		Long: `mirrorrank probes container registry mirrors and ranks them.

Every mirror receives a fixed number of HEAD requests to /v2/. A 200 or 401
answer counts as success. Mirrors are ranked by success rate, then by average
latency, and the usable ones are written to valid_mirrors.txt.

Quick start:
  1. List mirrors in a Markdown table (mirrors.md):
       | Mirror                 | Status |
       |------------------------|--------|
       | ` + "`docker.m.daocloud.io`" + ` | 正常   |
  2. Run: mirrorrank run
  3. Use the mirrors in valid_mirrors.txt`,
		SilenceUsage: true,
	}

	root.AddCommand(newRunCmd(), newServeCmd(), newValidateCmd(), newVersionCmd())
	return root
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// newVersionCmd prints version information.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit hash, and build date of this mirrorrank binary.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mirrorrank %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

// newLogger creates a JSON logger on stderr for CLI use.
func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	})), nil
}
