package store

import "time"

// Result is the stored form of one mirror's evaluation.
//
// Result is optimized for JSON serialization (REST API, SSE and WebSocket
// streams) and decoupled from the prober's internal types.
type Result struct {
	// Rank is the 1-based position in the latest ranking. Zero for results
	// streamed before their round completed.
	Rank int `json:"rank,omitempty"`

	// Endpoint is the mirror identifier (host[:port]).
	Endpoint string `json:"endpoint"`

	// URL is the mirror's base URL.
	URL string `json:"url"`

	// SuccessRate is successes divided by attempts, in [0, 1].
	SuccessRate float64 `json:"success_rate"`

	Successes int `json:"successes"`
	Attempts  int `json:"attempts"`

	// AvgLatencyMs is the mean latency of successful attempts in
	// milliseconds. nil when no attempt succeeded.
	AvgLatencyMs *float64 `json:"avg_latency_ms"`

	// Failures counts failed attempts per error class.
	Failures map[string]int `json:"failures,omitempty"`

	// RoundID identifies the evaluation round that produced the result.
	RoundID string `json:"round_id"`

	// CheckedAt is when the evaluation finished.
	CheckedAt time.Time `json:"checked_at"`
}

// Store holds the latest ranking and streams per-mirror results.
//
// Implementations must be safe for concurrent access.
type Store interface {
	// Update records a single result as it arrives and notifies all
	// subscribers. Results are keyed by Endpoint.
	Update(result Result)

	// Replace installs a completed ranking. Ranks are assigned from the
	// slice order, starting at 1.
	Replace(roundID string, ranked []Result)

	// GetAll returns the latest ranking in ranked order. Before the first
	// ranking is installed it returns the streamed results ordered by
	// endpoint. The returned slice is a snapshot.
	GetAll() []Result

	// RoundID returns the ID of the round behind the current ranking, or
	// an empty string if none has completed.
	RoundID() string

	// Subscribe returns a channel that receives results as they arrive.
	// Slow consumers may miss updates. Caller must call Unsubscribe when done.
	Subscribe() <-chan Result

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Result)
}
