package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/mirrorrank"
	"github.com/jpalmerr/mirrorrank/report"
)

func main() {
	// start mock mirrors (see mock_mirror.go)
	endpoints, stopMirrors := StartMockMirrors([]mirrorProfile{
		{name: "fast", latency: 40 * time.Millisecond},
		{name: "slow", latency: 400 * time.Millisecond},
		{name: "flaky", latency: 80 * time.Millisecond, failRate: 0.5},
		{name: "broken", latency: 20 * time.Millisecond, failRate: 1},
	})
	defer stopMirrors()

	// one dead endpoint: nothing listens on port 1
	endpoints = append(endpoints, "127.0.0.1:1")

	console := report.NewConsole(os.Stdout, false)

	runner, err := mirrorrank.New(
		mirrorrank.WithAttempts(5),
		mirrorrank.WithAttemptDelay(200*time.Millisecond),
		mirrorrank.WithMaxConcurrency(3),
		mirrorrank.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))),
		mirrorrank.WithEvaluatedCallback(console.EndpointBlock),
		mirrorrank.WithResultCallback(console.Arrival),
	)
	if err != nil {
		slog.Error("failed to create runner", "error", err)
		os.Exit(1)
	}
	defer runner.Close()

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   mirrorrank Demo                                     ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Mirrors:                                            ║")
	fmt.Println("  ║   • 4 mock (fast, slow, flaky, broken)                ║")
	fmt.Println("  ║   • 1 dead (connection refused)                       ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	// set up context with signal handling so Ctrl+C aborts the run
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	console.Begin(len(endpoints))
	ranked := runner.Run(ctx, endpoints)
	if err := console.Write(ranked); err != nil {
		slog.Error("failed to write report", "error", err)
		os.Exit(1)
	}
}
