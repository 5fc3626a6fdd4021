package main

import (
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"
)

// mirrorProfile describes how a mock registry mirror answers /v2/.
type mirrorProfile struct {
	name     string
	latency  time.Duration
	failRate float64 // share of requests answered with 503
}

// mockMirrorHandler answers like a registry that requires auth: 401 on
// success, 503 on a simulated failure.
func mockMirrorHandler(p mirrorProfile) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// simulate latency variance of +-25%
		jitter := time.Duration(rand.Int63n(int64(p.latency)/2+1)) - p.latency/4
		time.Sleep(p.latency + jitter)

		if rand.Float64() < p.failRate {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Docker-Distribution-Api-Version", "registry/2.0")
		w.WriteHeader(http.StatusUnauthorized)
	})
}

// StartMockMirrors starts one TLS server per profile and returns their
// endpoints (host:port) and a function that stops them all.
func StartMockMirrors(profiles []mirrorProfile) ([]string, func()) {
	var (
		endpoints []string
		servers   []*httptest.Server
	)
	for _, p := range profiles {
		srv := httptest.NewTLSServer(mockMirrorHandler(p))
		servers = append(servers, srv)
		endpoints = append(endpoints, strings.TrimPrefix(srv.URL, "https://"))
	}
	return endpoints, func() {
		for _, srv := range servers {
			srv.Close()
		}
	}
}
