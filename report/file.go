package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jpalmerr/mirrorrank"
)

// DefaultValidListPath is where the run command writes the valid list.
const DefaultValidListPath = "valid_mirrors.txt"

// ValidListFile writes the URLs of every result with a non-zero success
// rate, in ranked order, one per line without a trailing newline.
type ValidListFile struct {
	Path string
}

// Write replaces the file at Path.
func (f ValidListFile) Write(ranked []mirrorrank.Stats) error {
	content := strings.Join(ValidURLs(ranked), "\n")
	if err := os.WriteFile(f.Path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write valid mirror list: %w", err)
	}
	return nil
}

// jsonResult is the JSON form of one ranked result.
type jsonResult struct {
	Rank              int            `json:"rank"`
	Endpoint          string         `json:"endpoint"`
	URL               string         `json:"url"`
	SuccessRate       float64        `json:"success_rate"`
	Successes         int            `json:"successes"`
	Attempts          int            `json:"attempts"`
	AvgLatencySeconds *float64       `json:"avg_latency_seconds"`
	Failures          map[string]int `json:"failures,omitempty"`
	CheckedAt         time.Time      `json:"checked_at"`
}

// JSON writes the ranking to W as an indented JSON array.
// avg_latency_seconds is null for unreachable mirrors.
type JSON struct {
	W io.Writer
}

// Write encodes ranked.
func (j JSON) Write(ranked []mirrorrank.Stats) error {
	out := make([]jsonResult, len(ranked))
	for i, s := range ranked {
		var failures map[string]int
		if counts := s.FailureCounts(); len(counts) > 0 {
			failures = make(map[string]int, len(counts))
			for class, n := range counts {
				failures[class.String()] = n
			}
		}
		out[i] = jsonResult{
			Rank:              i + 1,
			Endpoint:          s.Endpoint,
			URL:               s.URL,
			SuccessRate:       s.SuccessRate,
			Successes:         s.Successes,
			Attempts:          s.Attempts,
			AvgLatencySeconds: latencySeconds(s.AvgLatency),
			Failures:          failures,
			CheckedAt:         s.CheckedAt,
		}
	}

	enc := json.NewEncoder(j.W)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return nil
}
