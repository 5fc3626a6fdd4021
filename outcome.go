package mirrorrank

import (
	"context"
	"math"
	"time"
)

// ErrorClass is the failure category of a single probe attempt.
//
// The set of classes is closed. Classification inspects the error chain
// structurally; error text is never parsed.
type ErrorClass string

const (
	// ClassNone marks a successful attempt.
	ClassNone ErrorClass = "none"

	// ClassTimeout means no response arrived within the attempt timeout.
	ClassTimeout ErrorClass = "timeout"

	// ClassConnectionRefused means the host actively refused the TCP connection.
	ClassConnectionRefused ErrorClass = "connection_refused"

	// ClassDNSFailure means the endpoint host could not be resolved.
	ClassDNSFailure ErrorClass = "dns_failure"

	// ClassTLSFailure means the TLS handshake failed.
	ClassTLSFailure ErrorClass = "tls_failure"

	// ClassUnexpectedStatus means a response arrived with a status other
	// than 200 or 401.
	ClassUnexpectedStatus ErrorClass = "unexpected_status"

	// ClassOther covers every remaining failure, including cancellation.
	ClassOther ErrorClass = "other"
)

// String returns the string representation of the class.
func (c ErrorClass) String() string {
	return string(c)
}

// Outcome holds the result of one probe attempt. Immutable once produced.
type Outcome struct {
	// Succeeded reports whether the endpoint answered 200 or 401.
	Succeeded bool

	// Latency is the elapsed time of the attempt. It is recorded for failed
	// attempts too, but only successful latencies enter the average.
	Latency time.Duration

	// StatusCode is the HTTP status received. Zero if the request failed
	// before a response arrived.
	StatusCode int

	// Class is [ClassNone] for successful attempts.
	Class ErrorClass

	// Err is the underlying failure, nil on success.
	Err error
}

// Stats aggregates every attempt made against one endpoint.
//
// SuccessRate is Successes / Attempts and always lies in [0, 1]. AvgLatency
// is the mean latency in seconds over successful attempts, or +Inf when no
// attempt succeeded.
type Stats struct {
	// Endpoint is the identifier as given by the source (host[:port]).
	Endpoint string

	// URL is the endpoint's base URL, e.g. "https://docker.m.daocloud.io".
	URL string

	Successes int

	// Attempts is the configured attempt count.
	Attempts int

	SuccessRate float64

	AvgLatency float64

	// Outcomes holds one entry per attempt, in attempt order.
	Outcomes []Outcome

	// CheckedAt is when the evaluation finished.
	CheckedAt time.Time
}

// Reachable reports whether at least one attempt succeeded.
func (s Stats) Reachable() bool {
	return s.Successes > 0 && !math.IsInf(s.AvgLatency, 1)
}

func (s Stats) clone() Stats {
	s.Outcomes = append([]Outcome(nil), s.Outcomes...)
	return s
}

// FailureCounts returns the number of failed attempts per [ErrorClass].
func (s Stats) FailureCounts() map[ErrorClass]int {
	counts := make(map[ErrorClass]int)
	for _, out := range s.Outcomes {
		if !out.Succeeded {
			counts[out.Class]++
		}
	}
	return counts
}

// Prober performs a single reachability attempt against an endpoint.
//
// Implementations must not return errors or panic on network failures:
// every failure is reported through [Outcome]. A Prober must return within
// roughly the given timeout and must be safe for concurrent use.
type Prober interface {
	Probe(ctx context.Context, endpoint string, timeout time.Duration) Outcome
}

// ProberFunc adapts an ordinary function to the [Prober] interface.
type ProberFunc func(ctx context.Context, endpoint string, timeout time.Duration) Outcome

// Probe calls f(ctx, endpoint, timeout).
func (f ProberFunc) Probe(ctx context.Context, endpoint string, timeout time.Duration) Outcome {
	return f(ctx, endpoint, timeout)
}
