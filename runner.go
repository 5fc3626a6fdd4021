package mirrorrank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/jpalmerr/mirrorrank/dashboard"
	"github.com/jpalmerr/mirrorrank/internal/metrics"
	"github.com/jpalmerr/mirrorrank/internal/prober"
	"github.com/jpalmerr/mirrorrank/internal/server"
	"github.com/jpalmerr/mirrorrank/internal/store"
)

const (
	defaultInterval = 10 * time.Minute
	defaultPort     = 8080
)

// ErrNoEndpoints is returned by [Runner.Serve] when there is nothing to
// evaluate.
var ErrNoEndpoints = errors.New("at least one endpoint is required")

// Runner evaluates registry mirrors and ranks them.
//
// A Runner is created with [New] and functional options. It is safe for
// concurrent use; each call to [Runner.RunAll] is an independent run.
//
// The typical one-shot use is:
//
//	r, err := mirrorrank.New(mirrorrank.WithMaxConcurrency(5))
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	for i, s := range r.Run(ctx, endpoints) {
//	    fmt.Printf("%d. %s %.0f%%\n", i+1, s.URL, s.SuccessRate*100)
//	}
type Runner struct {
	attempts       int
	timeout        time.Duration
	attemptDelay   time.Duration
	maxConcurrency int
	interval       time.Duration
	port           int
	title          string
	logger         *slog.Logger
	evaluatedHooks []func(Stats)
	resultHooks    []func(Stats)
	clock          clock.Clock

	client      *prober.Client
	evaluator   *prober.Evaluator
	coordinator *prober.Coordinator
}

// New creates a [Runner] with the given options.
//
// Defaults:
//   - Attempts: 5
//   - Timeout: 5 seconds per attempt
//   - Attempt delay: 1 second
//   - Max concurrency: 10
//   - URL template: https://{{.Endpoint}}/v2/
//   - Watch interval: 10 minutes, port 8080
//
// Returns an error if any option is invalid.
func New(opts ...Option) (*Runner, error) {
	cfg := &runnerConfig{
		attempts:       prober.DefaultAttempts,
		timeout:        prober.DefaultTimeout,
		attemptDelay:   prober.DefaultAttemptDelay,
		maxConcurrency: prober.DefaultMaxConcurrency,
		urlTemplate:    prober.DefaultURLTemplate,
		interval:       defaultInterval,
		port:           defaultPort,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := prober.NewClient(cfg.urlTemplate, cfg.clock)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		attempts:       cfg.attempts,
		timeout:        cfg.timeout,
		attemptDelay:   cfg.attemptDelay,
		maxConcurrency: cfg.maxConcurrency,
		interval:       cfg.interval,
		port:           cfg.port,
		title:          cfg.title,
		logger:         logger,
		evaluatedHooks: cfg.evaluatedHooks,
		resultHooks:    cfg.resultHooks,
		clock:          cfg.clock,
		client:         client,
	}

	var p prober.Prober = client
	if cfg.prober != nil {
		p = r.adaptProber(cfg.prober)
	}

	delay := cfg.attemptDelay
	if delay == 0 {
		// the evaluator treats zero as "use the default"
		delay = -1
	}

	r.evaluator = prober.NewEvaluator(p, prober.Settings{
		Attempts:     cfg.attempts,
		Timeout:      cfg.timeout,
		AttemptDelay: delay,
		Clock:        cfg.clock,
		BaseURL:      client.BaseURL,
		OnEvaluated:  r.onEvaluated,
	})
	r.coordinator = prober.NewCoordinator(r.evaluator, cfg.maxConcurrency)

	return r, nil
}

// Evaluate probes a single endpoint Attempts times and returns its [Stats].
// It never fails; every problem is recorded in the outcomes.
func (r *Runner) Evaluate(ctx context.Context, endpoint string) Stats {
	return toPublicStats(r.evaluator.Evaluate(ctx, endpoint))
}

// RunAll evaluates every endpoint once, at most MaxConcurrency at a time,
// and returns one [Stats] per input entry in completion order.
//
// Duplicate entries are evaluated independently. RunAll blocks until every
// evaluation has finished. An empty input returns an empty slice.
func (r *Runner) RunAll(ctx context.Context, endpoints []string) []Stats {
	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID)
	start := time.Now()

	logger.Info("run started",
		"endpoints", len(endpoints),
		"max_concurrency", r.maxConcurrency,
		"attempts", r.attempts,
	)

	results := make([]Stats, 0, len(endpoints))
	r.coordinator.RunAll(ctx, endpoints, func(ps prober.Stats) {
		stats := toPublicStats(ps)
		results = append(results, stats)
		logStats(logger, stats)
		r.invokeHooks(r.resultHooks, stats)
	})

	logger.Info("run completed",
		"endpoints", len(results),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return results
}

// Run evaluates every endpoint and returns the results ranked best first.
// It is Rank(RunAll(ctx, endpoints)).
func (r *Runner) Run(ctx context.Context, endpoints []string) []Stats {
	return Rank(r.RunAll(ctx, endpoints))
}

// Serve runs watch mode: a full ranking round immediately and then every
// interval, with the latest ranking served over HTTP.
//
// Serve blocks until ctx is cancelled and returns nil on graceful shutdown.
// It returns [ErrNoEndpoints] for an empty list and an error if the HTTP
// server cannot bind its port.
func (r *Runner) Serve(ctx context.Context, endpoints []string) error {
	if len(endpoints) == 0 {
		return ErrNoEndpoints
	}

	r.logger.Info("watch mode starting", "endpoint_count", len(endpoints))
	r.logger.Info("rounds configured", "interval", r.interval.String())
	r.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", r.port))

	if ctx.Err() != nil {
		return nil
	}

	resultStore := store.NewMemoryStore()
	recorder := metrics.NewRecorder()

	scheduler := prober.NewScheduler(endpoints, r.interval, r.coordinator,
		func(roundID string, ps prober.Stats) {
			// store and metrics first, callbacks after the data is visible
			recorder.ObserveStats(ps)
			stats := toPublicStats(ps)
			resultStore.Update(toStoreResult(roundID, stats))
			logStats(r.logger.With("round_id", roundID), stats)
			r.invokeHooks(r.resultHooks, stats)
		}, r.clock, r.logger)
	scheduler.Start(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for round := range scheduler.Rounds() {
			ranked := Rank(toPublicStatsSlice(round.Results))
			recorder.ObserveRound(round.Duration)
			resultStore.Replace(round.ID, toStoreResults(round.ID, ranked))

			attrs := []any{"round_id", round.ID, "endpoints", len(ranked)}
			if len(ranked) > 0 {
				attrs = append(attrs, "best", ranked[0].URL, "best_success_rate", ranked[0].SuccessRate)
			}
			r.logger.Info("ranking updated", attrs...)
		}
	}()

	cleanup := func() {
		scheduler.Stop()
		wg.Wait()
	}

	httpServer := server.NewServer(resultStore, r.port, dashboard.Assets, r.title, recorder.Handler(), r.logger)
	if err := httpServer.Start(ctx); err != nil {
		cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-ctx.Done()
	cleanup()
	r.logger.Info("watch mode stopped")
	return nil
}

// Close releases idle connections held by the built-in prober.
func (r *Runner) Close() {
	r.client.Close()
}

// Attempts returns the number of probes sent to each endpoint.
func (r *Runner) Attempts() int {
	return r.attempts
}

// Timeout returns the per-attempt timeout.
func (r *Runner) Timeout() time.Duration {
	return r.timeout
}

// AttemptDelay returns the pause taken after each attempt.
func (r *Runner) AttemptDelay() time.Duration {
	return r.attemptDelay
}

// MaxConcurrency returns the maximum number of endpoints evaluated at once.
func (r *Runner) MaxConcurrency() int {
	return r.maxConcurrency
}

// Interval returns the watch mode round interval.
func (r *Runner) Interval() time.Duration {
	return r.interval
}

// Port returns the watch mode HTTP port.
func (r *Runner) Port() int {
	return r.port
}

// onEvaluated runs on the evaluating goroutine.
func (r *Runner) onEvaluated(ps prober.Stats) {
	if len(r.evaluatedHooks) == 0 {
		return
	}
	r.invokeHooks(r.evaluatedHooks, toPublicStats(ps))
}

// invokeHooks gives every callback its own copy of the outcomes.
func (r *Runner) invokeHooks(hooks []func(Stats), stats Stats) {
	for _, cb := range hooks {
		invokeCallbackSafe(cb, stats.clone(), r.logger)
	}
}

// adaptProber wraps a caller-supplied Prober for the evaluator, turning a
// panic into a failed attempt.
func (r *Runner) adaptProber(p Prober) prober.Prober {
	return prober.ProberFunc(func(ctx context.Context, endpoint string, timeout time.Duration) (out prober.Outcome) {
		defer func() {
			if rec := recover(); rec != nil {
				correlationID := uuid.NewString()
				r.logger.Error("prober panic",
					"correlation_id", correlationID,
					"endpoint", endpoint,
					"panic", fmt.Sprintf("%v", rec),
					"stack", string(debug.Stack()),
				)
				out = prober.Outcome{
					Class: prober.ClassOther,
					Err:   fmt.Errorf("prober panic (correlation_id: %s)", correlationID),
				}
			}
		}()

		o := p.Probe(ctx, endpoint, timeout)
		return prober.Outcome{
			Succeeded:  o.Succeeded,
			Latency:    o.Latency,
			StatusCode: o.StatusCode,
			Class:      prober.Class(o.Class),
			Err:        o.Err,
		}
	})
}

// invokeCallbackSafe calls cb with panic recovery. Panics are logged with a
// correlation ID and the stack, and do not propagate.
func invokeCallbackSafe(cb func(Stats), stats Stats, logger *slog.Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("callback panic",
				"correlation_id", uuid.NewString(),
				"endpoint", stats.Endpoint,
				"panic", fmt.Sprintf("%v", rec),
				"stack", string(debug.Stack()),
			)
		}
	}()
	cb(stats)
}

// logStats logs one finished evaluation. Unreachable endpoints log at WARN.
func logStats(logger *slog.Logger, s Stats) {
	attrs := []any{
		"endpoint", s.Endpoint,
		"url", s.URL,
		"success_rate", s.SuccessRate,
	}
	if !s.Reachable() {
		classes := make(map[string]int)
		for class, n := range s.FailureCounts() {
			classes[class.String()] = n
		}
		logger.Warn("endpoint unreachable", append(attrs, "failures", classes)...)
		return
	}
	logger.Debug("endpoint evaluated", append(attrs, "avg_latency_ms", s.AvgLatency*1000)...)
}

// toPublicStats converts internal stats to the public type. The outcomes
// slice is copied so callbacks cannot alias evaluator state.
func toPublicStats(ps prober.Stats) Stats {
	outcomes := make([]Outcome, len(ps.Outcomes))
	for i, o := range ps.Outcomes {
		outcomes[i] = Outcome{
			Succeeded:  o.Succeeded,
			Latency:    o.Latency,
			StatusCode: o.StatusCode,
			Class:      ErrorClass(o.Class),
			Err:        o.Err,
		}
	}
	return Stats{
		Endpoint:    ps.Endpoint,
		URL:         ps.URL,
		Successes:   ps.Successes,
		Attempts:    ps.Attempts,
		SuccessRate: ps.SuccessRate,
		AvgLatency:  ps.AvgLatency,
		Outcomes:    outcomes,
		CheckedAt:   ps.CheckedAt,
	}
}

func toPublicStatsSlice(in []prober.Stats) []Stats {
	out := make([]Stats, len(in))
	for i, ps := range in {
		out[i] = toPublicStats(ps)
	}
	return out
}

// toStoreResult converts stats to the storage representation.
func toStoreResult(roundID string, s Stats) store.Result {
	var avg *float64
	if !math.IsInf(s.AvgLatency, 1) {
		ms := s.AvgLatency * 1000
		avg = &ms
	}

	var failures map[string]int
	if counts := s.FailureCounts(); len(counts) > 0 {
		failures = make(map[string]int, len(counts))
		for class, n := range counts {
			failures[class.String()] = n
		}
	}

	return store.Result{
		Endpoint:     s.Endpoint,
		URL:          s.URL,
		SuccessRate:  s.SuccessRate,
		Successes:    s.Successes,
		Attempts:     s.Attempts,
		AvgLatencyMs: avg,
		Failures:     failures,
		RoundID:      roundID,
		CheckedAt:    s.CheckedAt,
	}
}

func toStoreResults(roundID string, ranked []Stats) []store.Result {
	out := make([]store.Result, len(ranked))
	for i, s := range ranked {
		out[i] = toStoreResult(roundID, s)
	}
	return out
}
