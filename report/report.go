// Package report renders ranked mirror results: a colorised console report,
// the valid mirror list file and a JSON document.
package report

import (
	"math"

	"go.uber.org/multierr"

	"github.com/jpalmerr/mirrorrank"
)

// Sink receives the final ranking of a run.
type Sink interface {
	Write(ranked []mirrorrank.Stats) error
}

// SinkFunc adapts an ordinary function to the [Sink] interface.
type SinkFunc func(ranked []mirrorrank.Stats) error

// Write calls f(ranked).
func (f SinkFunc) Write(ranked []mirrorrank.Stats) error {
	return f(ranked)
}

type multiSink []Sink

// Multi returns a [Sink] that writes to every sink in order. A failing sink
// does not stop the others; all errors are combined.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

func (m multiSink) Write(ranked []mirrorrank.Stats) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Write(ranked))
	}
	return err
}

// ValidURLs returns the URLs of every result with a success rate above zero,
// in the order given.
func ValidURLs(ranked []mirrorrank.Stats) []string {
	urls := make([]string, 0, len(ranked))
	for _, s := range ranked {
		if s.SuccessRate > 0 {
			urls = append(urls, s.URL)
		}
	}
	return urls
}

// latencySeconds returns avg, or nil when no attempt succeeded.
func latencySeconds(avg float64) *float64 {
	if math.IsInf(avg, 1) {
		return nil
	}
	return &avg
}
