package prober

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProber answers per endpoint with a fixed outcome and counts calls.
type scriptedProber struct {
	outcomes map[string]Outcome
	calls    atomic.Int32
}

func (p *scriptedProber) Probe(ctx context.Context, endpoint string, timeout time.Duration) Outcome {
	p.calls.Add(1)
	if ctx.Err() != nil {
		return Outcome{Class: ClassOther, Err: ctx.Err()}
	}
	return p.outcomes[endpoint]
}

func alphaBetaProber() *scriptedProber {
	return &scriptedProber{outcomes: map[string]Outcome{
		"alpha": {Succeeded: true, Latency: 100 * time.Millisecond, StatusCode: 200, Class: ClassNone},
		"beta":  {Class: ClassConnectionRefused, Err: errors.New("connection refused")},
	}}
}

// noDelay disables the inter-attempt pause so tests run instantly.
const noDelay = -1

func TestEvaluator_AlphaBetaScenario(t *testing.T) {
	p := alphaBetaProber()
	ev := NewEvaluator(p, Settings{AttemptDelay: noDelay})

	alpha := ev.Evaluate(context.Background(), "alpha")
	beta := ev.Evaluate(context.Background(), "beta")

	assert.Equal(t, 1.0, alpha.SuccessRate)
	assert.InDelta(t, 0.1, alpha.AvgLatency, 1e-9)
	assert.Equal(t, 5, alpha.Successes)
	assert.Equal(t, "https://alpha", alpha.URL)

	assert.Equal(t, 0.0, beta.SuccessRate)
	assert.True(t, math.IsInf(beta.AvgLatency, 1), "AvgLatency = %v, want +Inf", beta.AvgLatency)
	assert.Equal(t, 0, beta.Successes)

	assert.Equal(t, int32(2*DefaultAttempts), p.calls.Load())
}

func TestEvaluator_ExactAttemptCount(t *testing.T) {
	for _, attempts := range []int{1, 3, 5, 8} {
		p := alphaBetaProber()
		ev := NewEvaluator(p, Settings{Attempts: attempts, AttemptDelay: noDelay})

		stats := ev.Evaluate(context.Background(), "alpha")

		assert.Equal(t, int32(attempts), p.calls.Load())
		assert.Len(t, stats.Outcomes, attempts)
		assert.Equal(t, attempts, stats.Attempts)
	}
}

func TestEvaluator_DefaultsApplied(t *testing.T) {
	ev := NewEvaluator(alphaBetaProber(), Settings{})

	assert.Equal(t, DefaultAttempts, ev.settings.Attempts)
	assert.Equal(t, DefaultTimeout, ev.settings.Timeout)
	assert.Equal(t, DefaultAttemptDelay, ev.settings.AttemptDelay)
	assert.NotNil(t, ev.settings.Clock)
}

func TestEvaluator_PassesTimeoutToProber(t *testing.T) {
	var got time.Duration
	p := ProberFunc(func(ctx context.Context, endpoint string, timeout time.Duration) Outcome {
		got = timeout
		return Outcome{Succeeded: true}
	})

	NewEvaluator(p, Settings{Attempts: 1, Timeout: 3 * time.Second, AttemptDelay: noDelay}).
		Evaluate(context.Background(), "alpha")

	assert.Equal(t, 3*time.Second, got)
}

// TestEvaluator_PausesAfterEveryAttempt drives a mock clock and checks that
// each attempt, the last one included, is followed by a full delay.
func TestEvaluator_PausesAfterEveryAttempt(t *testing.T) {
	mock := clock.NewMock()
	start := mock.Now()
	p := alphaBetaProber()
	ev := NewEvaluator(p, Settings{Attempts: 3, AttemptDelay: time.Second, Clock: mock})

	done := make(chan Stats, 1)
	go func() { done <- ev.Evaluate(context.Background(), "alpha") }()

	var stats Stats
	require.Eventually(t, func() bool {
		select {
		case stats = <-done:
			return true
		default:
			mock.Add(time.Second)
			return false
		}
	}, 5*time.Second, time.Millisecond)

	assert.Equal(t, int32(3), p.calls.Load())
	assert.GreaterOrEqual(t, mock.Now().Sub(start), 3*time.Second)
	assert.False(t, stats.CheckedAt.Before(start.Add(3*time.Second)))
}

func TestEvaluator_CancelledContextSkipsDelay(t *testing.T) {
	p := alphaBetaProber()
	ev := NewEvaluator(p, Settings{AttemptDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan Stats, 1)
	go func() { done <- ev.Evaluate(ctx, "alpha") }()

	select {
	case stats := <-done:
		// attempt count stays fixed so the rate denominator is unchanged
		assert.Len(t, stats.Outcomes, DefaultAttempts)
		assert.Equal(t, 0.0, stats.SuccessRate)
		assert.True(t, math.IsInf(stats.AvgLatency, 1))
	case <-time.After(2 * time.Second):
		t.Fatal("Evaluate did not return promptly after cancellation")
	}
}

func TestEvaluator_OnEvaluatedAndBaseURL(t *testing.T) {
	var hooked []Stats
	ev := NewEvaluator(alphaBetaProber(), Settings{
		AttemptDelay: noDelay,
		BaseURL:      func(endpoint string) string { return "http://" + endpoint + ":5000" },
		OnEvaluated:  func(s Stats) { hooked = append(hooked, s) },
	})

	stats := ev.Evaluate(context.Background(), "alpha")

	require.Len(t, hooked, 1)
	assert.Equal(t, stats.Endpoint, hooked[0].Endpoint)
	assert.Equal(t, "http://alpha:5000", stats.URL)
}

func TestSummarize(t *testing.T) {
	ok := func(ms int) Outcome {
		return Outcome{Succeeded: true, Latency: time.Duration(ms) * time.Millisecond}
	}
	fail := func(ms int) Outcome {
		return Outcome{Latency: time.Duration(ms) * time.Millisecond, Class: ClassTimeout}
	}

	tests := []struct {
		name        string
		outcomes    []Outcome
		wantRate    float64
		wantLatency float64
	}{
		{name: "all succeed", outcomes: []Outcome{ok(100), ok(200), ok(300), ok(400), ok(500)}, wantRate: 1, wantLatency: 0.3},
		{name: "failed latency ignored", outcomes: []Outcome{ok(100), fail(5000), ok(300), fail(5000), fail(5000)}, wantRate: 0.4, wantLatency: 0.2},
		{name: "three of five", outcomes: []Outcome{ok(500), ok(500), ok(500), fail(1), fail(1)}, wantRate: 0.6, wantLatency: 0.5},
		{name: "none succeed", outcomes: []Outcome{fail(1), fail(1), fail(1), fail(1), fail(1)}, wantRate: 0, wantLatency: math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := Summarize("mirror", "https://mirror", tt.outcomes, len(tt.outcomes), time.Time{})

			assert.InDelta(t, tt.wantRate, stats.SuccessRate, 1e-9)
			assert.GreaterOrEqual(t, stats.SuccessRate, 0.0)
			assert.LessOrEqual(t, stats.SuccessRate, 1.0)
			if math.IsInf(tt.wantLatency, 1) {
				assert.True(t, math.IsInf(stats.AvgLatency, 1))
			} else {
				assert.InDelta(t, tt.wantLatency, stats.AvgLatency, 1e-9)
			}
		})
	}
}

func TestSummarize_ZeroAttempts(t *testing.T) {
	stats := Summarize("mirror", "https://mirror", nil, 0, time.Time{})

	assert.Equal(t, 0.0, stats.SuccessRate)
	assert.True(t, math.IsInf(stats.AvgLatency, 1))
}
