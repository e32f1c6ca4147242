// Package metrics provides Prometheus metrics for the presentation pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all presentation pipeline metrics.
type Metrics struct {
	PresentationsTotal        *prometheus.CounterVec // Presentations generated, by format
	GenerationFailuresTotal   *prometheus.CounterVec // Generation failures, by format
	GenerationDurationSeconds prometheus.Histogram
	FormatSplitsTotal         prometheus.Counter // Disclosures split because the default format could not carry all credentials
}

// New creates a new Metrics instance with all metrics registered.
func New() *Metrics {
	return &Metrics{
		PresentationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "credhub_presentations_generated_total",
			Help: "Total number of presentations generated by format",
		}, []string{"format"}),

		GenerationFailuresTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "credhub_presentation_failures_total",
			Help: "Total number of presentation generation failures by format",
		}, []string{"format"}),

		GenerationDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "credhub_presentation_generation_duration_seconds",
			Help:    "Duration of presentation assembly including signing",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}),

		FormatSplitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credhub_presentation_format_splits_total",
			Help: "Total number of disclosures split across formats because the default format could not embed all credentials",
		}),
	}
}

// ObserveGeneration records one generated presentation.
func (m *Metrics) ObserveGeneration(format string, duration time.Duration) {
	m.PresentationsTotal.WithLabelValues(format).Inc()
	m.GenerationDurationSeconds.Observe(duration.Seconds())
}
