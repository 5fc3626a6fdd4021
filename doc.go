// Package mirrorrank probes container registry mirrors and ranks them by
// reliability and latency.
//
// Each endpoint (a host[:port] identifier such as "docker.m.daocloud.io") is
// probed a fixed number of times with an HTTP HEAD request to its registry
// API base, https://{endpoint}/v2/. A response of 200 or 401 counts as a
// success: 401 is what a healthy registry returns to anonymous clients.
// Certificate verification is disabled so self-signed mirrors can be
// measured.
//
// # Quick Start
//
//	r, err := mirrorrank.New()
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	ranked := r.Run(ctx, []string{"docker.m.daocloud.io", "mirror.ccs.tencentyun.com"})
//	for i, s := range ranked {
//	    fmt.Printf("%d. %s %.0f%% %.3fs\n", i+1, s.URL, s.SuccessRate*100, s.AvgLatency)
//	}
//
// # Scoring
//
// An endpoint's [Stats] carry its success rate (successes over the fixed
// attempt count) and the mean latency of its successful attempts, which is
// +Inf when none succeeded. [Rank] sorts by success rate descending, then
// average latency ascending, keeping input order for exact ties.
//
// Failed attempts are classified into a closed set of [ErrorClass] values
// (timeout, connection refused, DNS failure, TLS failure, unexpected status,
// other) by inspecting the error chain.
//
// # Configuration
//
// A [Runner] is configured with functional options:
//
//	r, err := mirrorrank.New(
//	    mirrorrank.WithAttempts(3),
//	    mirrorrank.WithTimeout(2 * time.Second),
//	    mirrorrank.WithMaxConcurrency(20),
//	    mirrorrank.WithURLTemplate("http://{{.Endpoint}}/v2/"),
//	    mirrorrank.WithResultCallback(func(s mirrorrank.Stats) {
//	        log.Printf("%s: %.0f%%", s.URL, s.SuccessRate*100)
//	    }),
//	)
//
// # Watch Mode
//
// [Runner.Serve] repeats a full round on an interval and serves the latest
// ranking over HTTP, with live updates via Server-Sent Events and WebSocket
// and Prometheus metrics at /metrics.
//
// # Architecture
//
// Internal packages (under internal/):
//
//   - prober: HTTP prober, error classification, per-endpoint evaluator,
//     bounded-concurrency coordinator and the round scheduler
//   - store: latest ranking with pub/sub of live results
//   - server: HTTP API, SSE and WebSocket streams
//   - metrics: Prometheus collectors
//
// The source package loads endpoint lists (markdown tables, text files,
// literals) and the report package renders and writes ranked results.
package mirrorrank
