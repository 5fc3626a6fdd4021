package prober

import (
	"context"

	"golang.org/x/sync/errgroup"
)

const DefaultMaxConcurrency = 10

// EndpointEvaluator evaluates a single endpoint. [*Evaluator] implements it.
type EndpointEvaluator interface {
	Evaluate(ctx context.Context, endpoint string) Stats
}

// Coordinator evaluates a list of endpoints with bounded concurrency.
//
// At most maxConcurrency endpoints are evaluated at once. Results are
// collected in completion order on the calling goroutine.
type Coordinator struct {
	evaluator      EndpointEvaluator
	maxConcurrency int
}

// NewCoordinator creates a [Coordinator]. A non-positive maxConcurrency
// selects [DefaultMaxConcurrency].
func NewCoordinator(ev EndpointEvaluator, maxConcurrency int) *Coordinator {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &Coordinator{evaluator: ev, maxConcurrency: maxConcurrency}
}

// MaxConcurrency returns the worker limit.
func (c *Coordinator) MaxConcurrency() int {
	return c.maxConcurrency
}

// RunAll evaluates every endpoint once and returns all results in completion
// order.
//
// One evaluation is dispatched per entry, duplicates included. RunAll blocks
// until every evaluation has finished; it never returns partial results.
// onResult, if non-nil, is called on the calling goroutine as each result
// arrives. An empty endpoint list returns an empty, non-nil slice.
func (c *Coordinator) RunAll(ctx context.Context, endpoints []string, onResult func(Stats)) []Stats {
	results := make([]Stats, 0, len(endpoints))
	if len(endpoints) == 0 {
		return results
	}

	completed := make(chan Stats)

	go func() {
		var g errgroup.Group
		g.SetLimit(c.maxConcurrency)
		for _, endpoint := range endpoints {
			endpoint := endpoint
			// Go blocks while maxConcurrency evaluations are in flight
			g.Go(func() error {
				completed <- c.evaluator.Evaluate(ctx, endpoint)
				return nil
			})
		}
		_ = g.Wait()
		close(completed)
	}()

	for stats := range completed {
		results = append(results, stats)
		if onResult != nil {
			onResult(stats)
		}
	}
	return results
}
