package prober

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// Round is one complete evaluation of every endpoint.
type Round struct {
	// ID identifies the round in logs and API responses.
	ID string
	// StartedAt is when the round was dispatched.
	StartedAt time.Time
	// Duration is the wall time of the whole round.
	Duration time.Duration
	// Results holds one Stats per endpoint, in completion order.
	Results []Stats
}

// Scheduler repeats full evaluation rounds on a fixed interval.
//
// The first round runs immediately on start. Rounds never overlap: a tick
// that fires while a round is still running is dropped. Completed rounds are
// emitted on the channel returned by [Scheduler.Rounds].
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	endpoints   []string
	interval    time.Duration
	coordinator *Coordinator
	onResult    func(roundID string, stats Stats)
	clock       clock.Clock
	rounds      chan Round
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	started   bool
	stopped   bool
	closeOnce sync.Once
}

// NewScheduler creates a new round [Scheduler].
//
// Parameters:
//   - endpoints: Endpoints evaluated in every round
//   - interval: Time between the starts of consecutive rounds
//   - coordinator: Runs each round with bounded concurrency
//   - onResult: Called as each endpoint of a round completes (may be nil)
//   - clk: Drives the round ticker and timings (nil uses the wall clock)
//   - logger: Logger for scheduler events
//
// The scheduler must be started with [Scheduler.Start] and stopped with
// [Scheduler.Stop].
func NewScheduler(endpoints []string, interval time.Duration, coordinator *Coordinator, onResult func(string, Stats), clk clock.Clock, logger *slog.Logger) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{
		endpoints:   endpoints,
		interval:    interval,
		coordinator: coordinator,
		onResult:    onResult,
		clock:       clk,
		rounds:      make(chan Round, 1),
		logger:      logger,
	}
}

// Rounds returns a receive-only channel that emits each completed [Round].
//
// The channel is closed when the scheduler stops.
func (s *Scheduler) Rounds() <-chan Round {
	return s.rounds
}

// Start begins the round loop in a background goroutine.
//
// Start is non-blocking and idempotent. If Stop was called before Start,
// Start is a no-op. If ctx is nil, context.Background() is used.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	roundCtx := s.ctx // capture under lock to avoid race
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.closeOnce.Do(func() { close(s.rounds) })

		s.runRound(roundCtx)

		ticker := s.clock.Ticker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-roundCtx.Done():
				return
			case <-ticker.C:
				s.runRound(roundCtx)
			}
		}
	}()
}

// Stop halts the scheduler and waits for the round loop to exit.
//
// A round in progress observes the cancelled context, so its remaining
// probes fail fast. Stop is idempotent and safe to call before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()

	// ensure channel is closed even if Start() was never called
	s.closeOnce.Do(func() { close(s.rounds) })
}

// runRound evaluates all endpoints once and emits the round.
// Rounds interrupted by cancellation are dropped, and results that finish
// after cancellation are not passed to onResult.
func (s *Scheduler) runRound(ctx context.Context) {
	round := Round{
		ID:        uuid.NewString(),
		StartedAt: s.clock.Now(),
	}
	s.logger.Info("round started", "round_id", round.ID, "endpoints", len(s.endpoints))

	round.Results = s.coordinator.RunAll(ctx, s.endpoints, func(stats Stats) {
		if s.onResult != nil && ctx.Err() == nil {
			s.onResult(round.ID, stats)
		}
	})
	round.Duration = s.clock.Since(round.StartedAt)

	if ctx.Err() != nil {
		s.logger.Info("round interrupted", "round_id", round.ID)
		return
	}

	s.logger.Info("round completed",
		"round_id", round.ID,
		"duration_ms", round.Duration.Milliseconds(),
	)

	select {
	case s.rounds <- round:
	case <-ctx.Done():
	}
}
