// Package server provides the HTTP surface of watch mode.
//
// It serves the embedded dashboard at "/", the latest ranking at
// "/api/results", live per-mirror results at "/api/sse" (Server-Sent Events)
// and "/api/ws" (WebSocket), Prometheus metrics at "/metrics" and a liveness
// probe at "/healthz".
//
// The server shuts down gracefully when its context is cancelled, with a
// 5-second timeout for in-flight requests.
package server
