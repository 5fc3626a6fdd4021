package prober

import (
	"context"
	"time"
)

// Class is the failure category of a single probe attempt.
//
// This is the prober-internal version of mirrorrank.ErrorClass, kept as a
// separate type to avoid circular dependencies.
type Class string

const (
	ClassNone              Class = "none"
	ClassTimeout           Class = "timeout"
	ClassConnectionRefused Class = "connection_refused"
	ClassDNSFailure        Class = "dns_failure"
	ClassTLSFailure        Class = "tls_failure"
	ClassUnexpectedStatus  Class = "unexpected_status"
	ClassOther             Class = "other"
)

// Outcome is the result of one probe attempt against one endpoint.
type Outcome struct {
	// Succeeded reports whether the endpoint answered with 200 or 401.
	Succeeded bool
	// Latency is the elapsed time of the attempt, measured for failed
	// attempts too.
	Latency time.Duration
	// StatusCode is zero when no response was received.
	StatusCode int
	// Class is ClassNone for successful attempts.
	Class Class
	// Err is the underlying failure, nil on success.
	Err error
}

// Prober performs a single reachability attempt against an endpoint.
//
// Implementations must never panic on network failures and must return
// within roughly timeout.
type Prober interface {
	Probe(ctx context.Context, endpoint string, timeout time.Duration) Outcome
}

// ProberFunc adapts a function to the [Prober] interface.
type ProberFunc func(ctx context.Context, endpoint string, timeout time.Duration) Outcome

// Probe calls f(ctx, endpoint, timeout).
func (f ProberFunc) Probe(ctx context.Context, endpoint string, timeout time.Duration) Outcome {
	return f(ctx, endpoint, timeout)
}

// Stats aggregates all attempts made against one endpoint.
type Stats struct {
	// Endpoint is the identifier as given by the source (host[:port]).
	Endpoint string
	// URL is the endpoint's base URL (probe URL without its path).
	URL string
	// Successes is the number of attempts that succeeded.
	Successes int
	// Attempts is the configured attempt count, the success rate denominator.
	Attempts int
	// SuccessRate is Successes / Attempts.
	SuccessRate float64
	// AvgLatency is the mean latency in seconds over successful attempts,
	// +Inf when there were none.
	AvgLatency float64
	// Outcomes holds one entry per attempt, in attempt order.
	Outcomes []Outcome
	// CheckedAt is when the last attempt finished.
	CheckedAt time.Time
}
