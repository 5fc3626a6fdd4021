package prober

import (
	"context"
	"math"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	DefaultAttempts     = 5
	DefaultTimeout      = 5 * time.Second
	DefaultAttemptDelay = 1 * time.Second
)

// Settings configures an [Evaluator].
//
// Zero values select the defaults: 5 attempts, 5s timeout, 1s delay and the
// wall clock. A negative AttemptDelay disables the delay.
type Settings struct {
	// Attempts is the number of sequential probes per endpoint.
	Attempts int
	// Timeout bounds each probe.
	Timeout time.Duration
	// AttemptDelay is slept after every attempt, including the last.
	AttemptDelay time.Duration
	// Clock drives the inter-attempt delay and the CheckedAt timestamp.
	Clock clock.Clock
	// BaseURL derives the Stats URL from an endpoint. If nil, the endpoint is
	// prefixed with "https://".
	BaseURL func(endpoint string) string
	// OnEvaluated, if set, is called from the evaluating goroutine with the
	// finished Stats before Evaluate returns.
	OnEvaluated func(Stats)
}

// Evaluator drives a [Prober] for a fixed number of attempts per endpoint.
//
// Evaluate never fails: the prober turns every failure into an [Outcome],
// so the evaluator only counts and averages.
type Evaluator struct {
	prober   Prober
	settings Settings
}

// NewEvaluator creates an [Evaluator] for p with the given settings.
func NewEvaluator(p Prober, settings Settings) *Evaluator {
	if settings.Attempts <= 0 {
		settings.Attempts = DefaultAttempts
	}
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}
	if settings.AttemptDelay == 0 {
		settings.AttemptDelay = DefaultAttemptDelay
	}
	if settings.Clock == nil {
		settings.Clock = clock.New()
	}
	return &Evaluator{prober: p, settings: settings}
}

// Evaluate probes endpoint exactly Attempts times in sequence, pausing
// AttemptDelay after each attempt, and returns the aggregated [Stats].
//
// If ctx is cancelled the remaining pauses are skipped; the remaining probes
// are still issued so the attempt count stays fixed, and they fail quickly.
func (e *Evaluator) Evaluate(ctx context.Context, endpoint string) Stats {
	outcomes := make([]Outcome, 0, e.settings.Attempts)
	for i := 0; i < e.settings.Attempts; i++ {
		outcomes = append(outcomes, e.prober.Probe(ctx, endpoint, e.settings.Timeout))
		e.pause(ctx)
	}

	url := "https://" + endpoint
	if e.settings.BaseURL != nil {
		url = e.settings.BaseURL(endpoint)
	}

	stats := Summarize(endpoint, url, outcomes, e.settings.Attempts, e.settings.Clock.Now())
	if e.settings.OnEvaluated != nil {
		e.settings.OnEvaluated(stats)
	}
	return stats
}

// pause sleeps AttemptDelay unless ctx is done first.
func (e *Evaluator) pause(ctx context.Context) {
	if e.settings.AttemptDelay <= 0 || ctx.Err() != nil {
		return
	}
	timer := e.settings.Clock.Timer(e.settings.AttemptDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Summarize reduces attempt outcomes into [Stats].
//
// attempts is the success rate denominator and is normally len(outcomes).
// Only successful attempts contribute to the latency average; with no
// successes AvgLatency is +Inf.
func Summarize(endpoint, url string, outcomes []Outcome, attempts int, checkedAt time.Time) Stats {
	var (
		successes int
		total     time.Duration
	)
	for _, o := range outcomes {
		if o.Succeeded {
			successes++
			total += o.Latency
		}
	}

	stats := Stats{
		Endpoint:   endpoint,
		URL:        url,
		Successes:  successes,
		Attempts:   attempts,
		AvgLatency: math.Inf(1),
		Outcomes:   outcomes,
		CheckedAt:  checkedAt,
	}
	if attempts > 0 {
		stats.SuccessRate = float64(successes) / float64(attempts)
	}
	if successes > 0 {
		stats.AvgLatency = total.Seconds() / float64(successes)
	}
	return stats
}
