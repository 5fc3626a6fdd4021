package mirrorrank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

// waitForHTTP polls url until it answers 200 or the deadline passes.
func waitForHTTP(t *testing.T, url string) *http.Response {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil && resp.StatusCode == http.StatusOK {
			return resp
		}
		if err == nil {
			_ = resp.Body.Close()
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("%s did not become available", url)
	return nil
}

// TestServe_BlocksUntilContextCancelled verifies that Serve blocks until the
// provided context is cancelled.
func TestServe_BlocksUntilContextCancelled(t *testing.T) {
	r := newFakeRunner(t, WithPort(19301))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Serve(ctx, []string{"alpha"})
	}()

	time.Sleep(100 * time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("Serve() returned early with error: %v", err)
	default:
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after context cancellation")
	}
}

func TestServe_ReturnsImmediatelyIfContextAlreadyCancelled(t *testing.T) {
	r := newFakeRunner(t, WithPort(19302))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		done <- r.Serve(ctx, []string{"alpha"})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return with already-cancelled context")
	}
}

func TestServe_NoEndpoints(t *testing.T) {
	r := newFakeRunner(t, WithPort(19303))

	err := r.Serve(context.Background(), nil)
	if !errors.Is(err, ErrNoEndpoints) {
		t.Errorf("Serve(nil) error = %v, want ErrNoEndpoints", err)
	}
}

// TestServe_PublishesRanking runs one round and reads it back over HTTP.
func TestServe_PublishesRanking(t *testing.T) {
	const port = 19304
	r := newFakeRunner(t, WithPort(port))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Serve(ctx, []string{"beta", "alpha"})
	}()
	defer func() {
		cancel()
		<-done
	}()

	base := fmt.Sprintf("http://localhost:%d", port)
	waitForHTTP(t, base+"/healthz").Body.Close()

	var body struct {
		RoundID string `json:"round_id"`
		Results []struct {
			Rank         int      `json:"rank"`
			Endpoint     string   `json:"endpoint"`
			AvgLatencyMs *float64 `json:"avg_latency_ms"`
		} `json:"results"`
	}
	deadline := time.Now().Add(3 * time.Second)
	for body.RoundID == "" && time.Now().Before(deadline) {
		resp := waitForHTTP(t, base+"/api/results")
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode /api/results: %v", err)
		}
		_ = resp.Body.Close()
		if body.RoundID == "" {
			time.Sleep(20 * time.Millisecond)
		}
	}

	if body.RoundID == "" {
		t.Fatal("no ranking published")
	}
	if len(body.Results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(body.Results))
	}
	if body.Results[0].Endpoint != "alpha" || body.Results[0].Rank != 1 {
		t.Errorf("results[0] = %+v, want alpha ranked 1", body.Results[0])
	}
	if body.Results[1].AvgLatencyMs != nil {
		t.Errorf("beta avg_latency_ms = %v, want null", *body.Results[1].AvgLatencyMs)
	}

	resp := waitForHTTP(t, base+"/metrics")
	metrics, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(metrics), `mirrorrank_success_rate{endpoint="alpha"} 1`) {
		t.Errorf("metrics missing alpha success rate:\n%s", metrics)
	}
	if !strings.Contains(string(metrics), "mirrorrank_rounds_total 1") {
		t.Errorf("metrics missing completed round:\n%s", metrics)
	}
}

func TestServe_PortInUse(t *testing.T) {
	const port = 19305
	first := newFakeRunner(t, WithPort(port))
	second := newFakeRunner(t, WithPort(port))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- first.Serve(ctx, []string{"alpha"})
	}()
	defer func() {
		cancel()
		<-done
	}()
	waitForHTTP(t, fmt.Sprintf("http://localhost:%d/healthz", port)).Body.Close()

	err := second.Serve(context.Background(), []string{"alpha"})
	if err == nil || !strings.Contains(err.Error(), "failed to start HTTP server") {
		t.Errorf("Serve() error = %v, want bind failure", err)
	}
}

// TestServe_MultipleSequentialRuns verifies a runner can serve again after
// the previous run shut down.
func TestServe_MultipleSequentialRuns(t *testing.T) {
	for i := 0; i < 3; i++ {
		r := newFakeRunner(t, WithPort(19306+i))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- r.Serve(ctx, []string{"alpha"})
		}()

		time.Sleep(100 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("iteration %d: Serve() returned error: %v", i, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("iteration %d: Serve() did not return", i)
		}
	}
}

var roundsTotalPattern = regexp.MustCompile(`mirrorrank_rounds_total (\d+)`)

// TestServe_RoundsFollowRunnerClock advances a mock clock by one interval
// and expects a second round without waiting in real time.
func TestServe_RoundsFollowRunnerClock(t *testing.T) {
	const port = 19309
	mock := clock.NewMock()
	r := newFakeRunner(t, WithPort(port), WithInterval(MinInterval), WithClock(mock))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Serve(ctx, []string{"alpha"})
	}()
	defer func() {
		cancel()
		<-done
	}()

	base := fmt.Sprintf("http://localhost:%d", port)
	rounds := func() int {
		resp := waitForHTTP(t, base+"/metrics")
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		m := roundsTotalPattern.FindSubmatch(body)
		if m == nil {
			return 0
		}
		n, _ := strconv.Atoi(string(m[1]))
		return n
	}

	deadline := time.Now().Add(3 * time.Second)
	for rounds() < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	for rounds() < 2 && time.Now().Before(deadline) {
		mock.Add(MinInterval)
		time.Sleep(20 * time.Millisecond)
	}

	if got := rounds(); got < 2 {
		t.Errorf("rounds_total = %d, want at least 2 after advancing the clock", got)
	}
}
