package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/mirrorrank"
	"github.com/jpalmerr/mirrorrank/config"
	"github.com/jpalmerr/mirrorrank/source"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newServeCmd starts watch mode.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Re-rank mirrors periodically and serve the results",
		Long: `Start mirrorrank in watch mode.

The server will:
  - Load configuration from the specified YAML file
  - Rank all configured mirrors immediately and then every serve.interval
  - Serve the latest ranking on the configured port

Routes: / (dashboard), /api/results, /api/sse, /api/ws, /metrics, /healthz.

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  mirrorrank serve -c mirrorrank.yaml
  mirrorrank serve --config /etc/mirrorrank/config.yaml --port 9090`,
		RunE: runServe,
	}

	cmd.Flags().StringP("config", "c", "", "path to config file (required)")
	cmd.Flags().Int("port", 0, "override serve.port from the config file")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := newLogger(level)
	if err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.Serve.Port, _ = cmd.Flags().GetInt("port")
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	endpoints, err := source.Load(ctx, config.BuildSource(cfg))
	if err != nil {
		return err
	}

	logger.Info("config loaded",
		"endpoints", len(endpoints),
		"markdown_sources", len(cfg.Sources.Markdown),
		"file_sources", len(cfg.Sources.Files),
	)

	opts := append(config.RunnerOptions(cfg), mirrorrank.WithLogger(logger))
	runner, err := mirrorrank.New(opts...)
	if err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	defer runner.Close()

	// Serve blocks until ctx is cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- runner.Serve(ctx, endpoints)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
