package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/mirrorrank/config"
)

// newValidateCmd validates a config file without probing anything.
func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file",
		Long: `Validate a mirrorrank configuration file without probing any mirror.

This command parses the YAML, expands environment variables, and validates
all fields. Source files are not read. It's useful for CI/CD pipelines or
pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  mirrorrank validate -c config.yaml
  mirrorrank validate --config /etc/mirrorrank/config.yaml`,
		RunE: runValidate,
	}

	cmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	output := cfg.OutputPath()
	if output == "" {
		output = "(disabled)"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Attempts:       %d x %s (delay %s)\n",
		cfg.Attempts, cfg.Timeout.Duration(), cfg.AttemptDelay.Duration())
	fmt.Fprintf(out, "  Concurrency:    %d\n", cfg.MaxConcurrency)
	fmt.Fprintf(out, "  URL template:   %s\n", cfg.URLTemplate)
	fmt.Fprintf(out, "  Sources:        %d markdown + %d files + %d mirrors\n",
		len(cfg.Sources.Markdown), len(cfg.Sources.Files), len(cfg.Mirrors))
	fmt.Fprintf(out, "  Output:         %s\n", output)
	fmt.Fprintf(out, "  Serve:          port %d, every %s\n", cfg.Serve.Port, cfg.Serve.Interval.Duration())

	return nil
}
