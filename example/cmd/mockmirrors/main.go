// Standalone mock registry mirrors for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockmirrors
//
// Then in another terminal:
//
//	go run ./cmd/mirrorrank run --url-template "http://{{.Endpoint}}/v2/" \
//	    --mirror localhost:9001 --mirror localhost:9002 --mirror localhost:9003
//
// or in watch mode:
//
//	go run ./cmd/mirrorrank serve -c example/mirrorrank.yaml
package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"
)

// health is the behaviour of a mirror at a point in time.
type health struct {
	name     string
	failRate float64
	latency  time.Duration
}

var healths = []health{
	{name: "healthy", failRate: 0, latency: 50 * time.Millisecond},
	{name: "degraded", failRate: 0.4, latency: 300 * time.Millisecond},
	{name: "down", failRate: 1, latency: 10 * time.Millisecond},
}

type mirrorState struct {
	mu           sync.Mutex
	healthIdx    int
	nextChangeAt time.Time
}

func main() {
	addrs := []string{":9001", ":9002", ":9003"}

	fmt.Println("Mock registry mirrors starting on", addrs)
	fmt.Println("Mirrors cycle through: healthy → degraded → down")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	errc := make(chan error, len(addrs))
	for i, addr := range addrs {
		state := &mirrorState{
			// stagger the mirrors so they do not change in lockstep
			healthIdx:    i % len(healths),
			nextChangeAt: time.Now().Add(time.Duration(20+rand.Intn(41)) * time.Second),
		}
		mux := http.NewServeMux()
		mux.Handle("/v2/", mirrorHandler(addr, state))
		go func(addr string) {
			errc <- http.ListenAndServe(addr, mux)
		}(addr)
	}

	if err := <-errc; err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func mirrorHandler(addr string, state *mirrorState) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state.mu.Lock()
		if time.Now().After(state.nextChangeAt) {
			old := healths[state.healthIdx].name
			state.healthIdx = (state.healthIdx + 1) % len(healths)
			state.nextChangeAt = time.Now().Add(time.Duration(20+rand.Intn(41)) * time.Second)
			slog.Info("health change", "mirror", addr, "from", old, "to", healths[state.healthIdx].name)
		}
		h := healths[state.healthIdx]
		state.mu.Unlock()

		time.Sleep(h.latency + time.Duration(rand.Intn(50))*time.Millisecond)

		if rand.Float64() < h.failRate {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Docker-Distribution-Api-Version", "registry/2.0")
		w.WriteHeader(http.StatusUnauthorized)
	})
}
