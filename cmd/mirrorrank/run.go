package main

import (
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/mirrorrank"
	"github.com/jpalmerr/mirrorrank/config"
	"github.com/jpalmerr/mirrorrank/report"
	"github.com/jpalmerr/mirrorrank/source"
)

// defaultMarkdown is read when no config file and no other source is given.
const defaultMarkdown = "mirrors.md"

// newRunCmd ranks the mirrors once and writes the report.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Probe and rank mirrors once",
		Long: `Probe every mirror, print the ranking and write the valid mirror list.

Mirrors come from a config file, Markdown tables (--markdown), plain text
files (--file) and literal endpoints (--mirror). Without any of these,
mirrors.md in the current directory is read. Flags override config values.

Exit codes:
  0 - Ranking completed
  1 - No mirrors found, invalid input or interrupted (nothing is written)

Example:
  mirrorrank run
  mirrorrank run --mirror docker.m.daocloud.io --mirror dockerproxy.net
  mirrorrank run -c mirrorrank.yaml --json > ranking.json`,
		RunE: runRun,
	}

	defaults := config.Default()
	f := cmd.Flags()
	f.StringP("config", "c", "", "path to config file")
	f.StringSlice("markdown", nil, "Markdown table to read mirrors from (repeatable)")
	f.StringSlice("file", nil, "text file with one mirror per line (repeatable)")
	f.StringSlice("mirror", nil, "mirror endpoint host[:port] (repeatable)")
	f.StringP("output", "o", report.DefaultValidListPath, "valid mirror list path, empty to disable")
	f.Int("attempts", defaults.Attempts, "probes per mirror")
	f.Duration("timeout", defaults.Timeout.Duration(), "timeout per probe")
	f.Duration("delay", defaults.AttemptDelay.Duration(), "pause after every probe")
	f.Int("concurrency", defaults.MaxConcurrency, "mirrors evaluated at once")
	f.String("url-template", "", "probe URL template (default https://{{.Endpoint}}/v2/)")
	f.Bool("json", false, "write the ranking to stdout as JSON")
	f.Bool("no-color", false, "disable colored output")
	f.String("log-level", "warn", "log level (debug, info, warn, error)")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := newLogger(level)
	if err != nil {
		return err
	}

	cfg, err := runConfig(cmd)
	if err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")

	// with --json stdout carries only the document
	var consoleOut io.Writer = cmd.OutOrStdout()
	if asJSON {
		consoleOut = cmd.ErrOrStderr()
	}
	console := report.NewConsole(consoleOut, noColor)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	endpoints, err := source.Load(ctx, config.BuildSource(cfg))
	if err != nil {
		if errors.Is(err, source.ErrNoEndpoints) {
			console.NoEndpoints(err)
		}
		return err
	}

	opts := append(config.RunnerOptions(cfg),
		mirrorrank.WithLogger(logger),
		mirrorrank.WithEvaluatedCallback(console.EndpointBlock),
		mirrorrank.WithResultCallback(console.Arrival),
	)
	runner, err := mirrorrank.New(opts...)
	if err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	defer runner.Close()

	console.Begin(len(endpoints))
	ranked := runner.Run(ctx, endpoints)
	if ctx.Err() != nil {
		// an interrupted run writes nothing
		return fmt.Errorf("run interrupted: %w", ctx.Err())
	}

	sinks := []report.Sink{console}
	output := cfg.OutputPath()
	if output != "" {
		sinks = append(sinks, report.ValidListFile{Path: output})
	}
	if asJSON {
		sinks = append(sinks, report.JSON{W: cmd.OutOrStdout()})
	}
	if err := report.Multi(sinks...).Write(ranked); err != nil {
		return err
	}

	if output != "" {
		console.Written(len(report.ValidURLs(ranked)), output)
	}
	return nil
}

// runConfig loads the config file, if any, and applies flag overrides.
func runConfig(cmd *cobra.Command) (*config.Config, error) {
	f := cmd.Flags()

	cfg := config.Default()
	if path, _ := f.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if f.Changed("attempts") {
		cfg.Attempts, _ = f.GetInt("attempts")
	}
	if f.Changed("timeout") {
		d, _ := f.GetDuration("timeout")
		cfg.Timeout = config.Duration(d)
	}
	if f.Changed("delay") {
		d, _ := f.GetDuration("delay")
		delay := config.Duration(d)
		cfg.AttemptDelay = &delay
	}
	if f.Changed("concurrency") {
		cfg.MaxConcurrency, _ = f.GetInt("concurrency")
	}
	if f.Changed("url-template") {
		cfg.URLTemplate, _ = f.GetString("url-template")
	}
	if f.Changed("output") {
		output, _ := f.GetString("output")
		cfg.Output = &output
	}

	markdown, _ := f.GetStringSlice("markdown")
	files, _ := f.GetStringSlice("file")
	mirrors, _ := f.GetStringSlice("mirror")
	cfg.Sources.Markdown = append(cfg.Sources.Markdown, markdown...)
	cfg.Sources.Files = append(cfg.Sources.Files, files...)
	cfg.Mirrors = append(cfg.Mirrors, mirrors...)

	if len(cfg.Sources.Markdown) == 0 && len(cfg.Sources.Files) == 0 && len(cfg.Mirrors) == 0 {
		cfg.Sources.Markdown = []string{defaultMarkdown}
	}
	return cfg, nil
}
