package prober

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// instantEvaluator returns a successful result immediately, or blocks until
// the context is done when block is set.
type instantEvaluator struct {
	block bool
	calls atomic.Int32
}

func (e *instantEvaluator) Evaluate(ctx context.Context, endpoint string) Stats {
	e.calls.Add(1)
	if e.block {
		<-ctx.Done()
		return Stats{Endpoint: endpoint, Attempts: 1}
	}
	return Stats{Endpoint: endpoint, Attempts: 1, Successes: 1, SuccessRate: 1}
}

func newTestScheduler(endpoints []string, interval time.Duration, ev EndpointEvaluator) *Scheduler {
	return NewScheduler(endpoints, interval, NewCoordinator(ev, 2), nil, nil, testLogger())
}

// TestScheduler_StopBeforeStart verifies that calling Stop() on a scheduler
// that was never started does not panic and is a safe no-op.
func TestScheduler_StopBeforeStart(t *testing.T) {
	scheduler := newTestScheduler([]string{"alpha"}, time.Minute, &instantEvaluator{})

	// this must not panic
	scheduler.Stop()
}

// TestScheduler_StopTwice verifies that Stop() is idempotent.
func TestScheduler_StopTwice(t *testing.T) {
	scheduler := newTestScheduler([]string{"alpha"}, time.Minute, &instantEvaluator{})
	scheduler.Start(context.Background())

	// both calls must complete without panic or deadlock
	scheduler.Stop()
	scheduler.Stop()
}

// TestScheduler_StopAfterStart verifies the normal lifecycle: Start followed
// by Stop results in clean shutdown with the rounds channel closed.
func TestScheduler_StopAfterStart(t *testing.T) {
	scheduler := newTestScheduler([]string{"alpha"}, time.Minute, &instantEvaluator{})
	scheduler.Start(context.Background())

	go func() {
		for range scheduler.Rounds() {
		}
	}()

	time.Sleep(50 * time.Millisecond)
	scheduler.Stop()

	select {
	case _, ok := <-scheduler.Rounds():
		if ok {
			t.Error("expected rounds channel to be closed after Stop()")
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for rounds channel to close")
	}
}

// TestScheduler_ConcurrentStartStop verifies that calling Start() and Stop()
// concurrently does not race or panic.
func TestScheduler_ConcurrentStartStop(t *testing.T) {
	for i := 0; i < 100; i++ {
		scheduler := newTestScheduler([]string{"alpha"}, time.Minute, &instantEvaluator{})

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			scheduler.Start(context.Background())
		}()
		go func() {
			defer wg.Done()
			scheduler.Stop()
		}()
		wg.Wait()

		// Stop may have run first, leaving a started loop behind
		scheduler.Stop()
		for range scheduler.Rounds() {
		}
	}
}

// TestScheduler_StopDuringRound verifies that a round blocked on slow
// endpoints is interrupted by Stop and never emitted.
func TestScheduler_StopDuringRound(t *testing.T) {
	ev := &instantEvaluator{block: true}
	scheduler := newTestScheduler([]string{"a", "b", "c"}, time.Minute, ev)
	scheduler.Start(context.Background())

	deadline := time.Now().Add(time.Second)
	for ev.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	done := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return while a round was in progress")
	}

	if _, ok := <-scheduler.Rounds(); ok {
		t.Error("interrupted round was emitted")
	}
}

// TestScheduler_InterruptedResultsNotReported verifies that endpoints
// finishing after Stop do not reach onResult.
func TestScheduler_InterruptedResultsNotReported(t *testing.T) {
	ev := &instantEvaluator{block: true}
	var reported atomic.Int32
	scheduler := NewScheduler([]string{"a", "b"}, time.Minute, NewCoordinator(ev, 2),
		func(string, Stats) { reported.Add(1) }, nil, testLogger())
	scheduler.Start(context.Background())

	deadline := time.Now().Add(time.Second)
	for ev.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	scheduler.Stop()

	if got := reported.Load(); got != 0 {
		t.Errorf("onResult calls = %d, want 0 for an interrupted round", got)
	}
}

// TestScheduler_StartTwice verifies that Start() is idempotent.
func TestScheduler_StartTwice(t *testing.T) {
	ev := &instantEvaluator{}
	scheduler := newTestScheduler([]string{"alpha"}, time.Minute, ev)

	scheduler.Start(context.Background())
	scheduler.Start(context.Background())

	round := <-scheduler.Rounds()
	scheduler.Stop()

	if len(round.Results) != 1 {
		t.Errorf("len(Results) = %d, want 1", len(round.Results))
	}
	if got := ev.calls.Load(); got != 1 {
		t.Errorf("evaluations = %d, want 1 (second Start must not launch another loop)", got)
	}
}

// TestScheduler_StopBeforeStartThenStart verifies that Start after Stop is a
// no-op and the channel stays closed.
func TestScheduler_StopBeforeStartThenStart(t *testing.T) {
	ev := &instantEvaluator{}
	scheduler := newTestScheduler([]string{"alpha"}, time.Minute, ev)

	scheduler.Stop()
	scheduler.Start(context.Background())

	if _, ok := <-scheduler.Rounds(); ok {
		t.Error("expected closed rounds channel")
	}
	if got := ev.calls.Load(); got != 0 {
		t.Errorf("evaluations = %d, want 0", got)
	}
}

// TestScheduler_ContextCancellation verifies that cancelling the parent
// context shuts the loop down and closes the channel.
func TestScheduler_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	scheduler := newTestScheduler([]string{"alpha"}, time.Minute, &instantEvaluator{})
	scheduler.Start(ctx)

	<-scheduler.Rounds()
	cancel()

	select {
	case _, ok := <-scheduler.Rounds():
		if ok {
			t.Error("unexpected round after cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("rounds channel not closed after context cancellation")
	}
	scheduler.Stop()
}

// TestScheduler_ImmediateRoundOnStart verifies the first round runs at once
// instead of waiting a full interval.
func TestScheduler_ImmediateRoundOnStart(t *testing.T) {
	scheduler := newTestScheduler([]string{"alpha", "beta"}, time.Hour, &instantEvaluator{})
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	select {
	case round := <-scheduler.Rounds():
		if round.ID == "" {
			t.Error("round ID is empty")
		}
		if len(round.Results) != 2 {
			t.Errorf("len(Results) = %d, want 2", len(round.Results))
		}
	case <-time.After(time.Second):
		t.Fatal("first round not emitted immediately")
	}
}

// TestScheduler_RoundsFollowInterval drives a mock clock through two ticks.
func TestScheduler_RoundsFollowInterval(t *testing.T) {
	mock := clock.NewMock()
	var perResult atomic.Int32
	scheduler := NewScheduler([]string{"alpha"}, 10*time.Minute, NewCoordinator(&instantEvaluator{}, 1),
		func(roundID string, stats Stats) {
			if roundID == "" {
				t.Error("onResult received an empty round ID")
			}
			perResult.Add(1)
		}, mock, testLogger())

	scheduler.Start(context.Background())
	defer scheduler.Stop()

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		var round Round
		received := false
		deadline := time.Now().Add(2 * time.Second)
		for !received && time.Now().Before(deadline) {
			select {
			case round = <-scheduler.Rounds():
				received = true
			default:
				if i > 0 {
					mock.Add(10 * time.Minute)
				} else {
					time.Sleep(time.Millisecond)
				}
			}
		}
		if !received {
			t.Fatalf("round %d not emitted", i+1)
		}
		if seen[round.ID] {
			t.Errorf("round ID %q reused", round.ID)
		}
		seen[round.ID] = true
	}

	if got := perResult.Load(); got < 3 {
		t.Errorf("onResult calls = %d, want at least 3", got)
	}
}
