// Package metrics exports mirror evaluation results as Prometheus metrics.
package metrics

import (
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpalmerr/mirrorrank/internal/prober"
)

const namespace = "mirrorrank"

// Recorder owns a private registry so several runners can coexist in one
// process (and in tests) without duplicate registration panics.
type Recorder struct {
	registry *prometheus.Registry

	successRate   *prometheus.GaugeVec
	avgLatency    *prometheus.GaugeVec
	attempts      *prometheus.CounterVec
	rounds        prometheus.Counter
	roundDuration prometheus.Histogram
}

// NewRecorder creates a Recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		successRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "success_rate",
			Help:      "Fraction of successful probes in the latest evaluation.",
		}, []string{"endpoint"}),
		avgLatency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "avg_latency_seconds",
			Help:      "Mean latency of successful probes in the latest evaluation.",
		}, []string{"endpoint"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Probe attempts by endpoint and outcome class.",
		}, []string{"endpoint", "class"}),
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Completed evaluation rounds.",
		}),
		roundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_duration_seconds",
			Help:      "Wall time of complete evaluation rounds.",
			Buckets:   []float64{1, 5, 10, 20, 30, 60, 120, 300},
		}),
	}

	r.registry.MustRegister(
		r.successRate,
		r.avgLatency,
		r.attempts,
		r.rounds,
		r.roundDuration,
	)
	return r
}

// ObserveStats records one endpoint evaluation.
//
// The latency gauge is removed for endpoints without a successful attempt,
// since +Inf is not a useful sample.
func (r *Recorder) ObserveStats(stats prober.Stats) {
	r.successRate.WithLabelValues(stats.Endpoint).Set(stats.SuccessRate)
	if math.IsInf(stats.AvgLatency, 1) {
		r.avgLatency.DeleteLabelValues(stats.Endpoint)
	} else {
		r.avgLatency.WithLabelValues(stats.Endpoint).Set(stats.AvgLatency)
	}

	for _, out := range stats.Outcomes {
		r.attempts.WithLabelValues(stats.Endpoint, string(out.Class)).Inc()
	}
}

// ObserveRound records a completed round.
func (r *Recorder) ObserveRound(d time.Duration) {
	r.rounds.Inc()
	r.roundDuration.Observe(d.Seconds())
}

// Handler serves the recorder's registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry, mainly for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}
