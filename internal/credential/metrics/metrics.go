// Package metrics provides Prometheus metrics for the credential query and
// reconciliation paths.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all credential engine metrics.
type Metrics struct {
	// Query path
	QueriesTotal         *prometheus.CounterVec // Disclosure queries by outcome (success, invalid_scope, ...)
	QueryDurationSeconds prometheus.Histogram
	CredentialsFiltered  *prometheus.CounterVec // Credentials excluded by validity filtering, by reason

	// Watchdog
	WatchdogTicksTotal       prometheus.Counter
	StateTransitionsTotal    *prometheus.CounterVec // State changes persisted by the watchdog, by target state
	RenewalsRequestedTotal   prometheus.Counter
	RenewalFailuresTotal     prometheus.Counter
	StatusCheckFailuresTotal prometheus.Counter

	// Revocation cache
	RevocationCacheHits   prometheus.Counter
	RevocationCacheMisses prometheus.Counter
}

// New creates a new Metrics instance with all metrics registered.
func New() *Metrics {
	return &Metrics{
		QueriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "credhub_credential_queries_total",
			Help: "Total number of disclosure queries by outcome",
		}, []string{"outcome"}),

		QueryDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "credhub_credential_query_duration_seconds",
			Help:    "Duration of disclosure query resolution",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		CredentialsFiltered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "credhub_credentials_filtered_total",
			Help: "Total number of credentials excluded from disclosure by validity filtering",
		}, []string{"reason"}),

		WatchdogTicksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credhub_watchdog_ticks_total",
			Help: "Total number of watchdog reconciliation runs",
		}),

		StateTransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "credhub_credential_state_transitions_total",
			Help: "Total number of credential state transitions persisted by the watchdog",
		}, []string{"state"}),

		RenewalsRequestedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credhub_credential_renewals_requested_total",
			Help: "Total number of renewal requests sent to the renewal initiator",
		}),

		RenewalFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credhub_credential_renewal_failures_total",
			Help: "Total number of failed renewal initiations",
		}),

		StatusCheckFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credhub_credential_status_check_failures_total",
			Help: "Total number of failed status-check calls",
		}),

		RevocationCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credhub_revocation_cache_hits_total",
			Help: "Total number of revocation cache hits",
		}),

		RevocationCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credhub_revocation_cache_misses_total",
			Help: "Total number of revocation cache misses",
		}),
	}
}

// ObserveQuery records one resolved disclosure query.
func (m *Metrics) ObserveQuery(outcome string, duration time.Duration) {
	m.QueriesTotal.WithLabelValues(outcome).Inc()
	m.QueryDurationSeconds.Observe(duration.Seconds())
}
