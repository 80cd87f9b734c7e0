// Package metrics holds the engine's Prometheus counters, grounded on the
// teacher's interfaces/http/metrics.go MetricsRegistry shape.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry holds every counter the engine increments.
type Registry struct {
	TicksDropped        prometheus.Counter
	ZombiesCancelled     *prometheus.CounterVec
	PairsOpened          *prometheus.CounterVec
	SingleLegRecoveries  *prometheus.CounterVec
	SingleLegUnwinds     *prometheus.CounterVec
	EmergencyCloses      *prometheus.CounterVec
	EmergencyCloseErrors *prometheus.CounterVec
	RateLimitWaits       *prometheus.HistogramVec
}

// NewRegistry builds and registers every counter against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	m := &Registry{
		TicksDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fundingkeeper_scheduler_ticks_dropped_total",
			Help: "Scheduler ticks skipped because a prior tick was still running",
		}),
		ZombiesCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fundingkeeper_zombie_orders_cancelled_total",
			Help: "Zombie orders cancelled by the pairing sweep, by venue",
		}, []string{"venue"}),
		PairsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fundingkeeper_pairs_opened_total",
			Help: "Pair-open attempts, by outcome (both_filled, single_leg, both_failed)",
		}, []string{"outcome"}),
		SingleLegRecoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fundingkeeper_single_leg_recoveries_total",
			Help: "Single-leg recovery attempts, by outcome (filled, timeout)",
		}, []string{"outcome"}),
		SingleLegUnwinds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fundingkeeper_single_leg_unwinds_total",
			Help: "Single-leg positions unwound after exhausting the retry budget, by reason",
		}, []string{"reason"}),
		EmergencyCloses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fundingkeeper_emergency_closes_total",
			Help: "Emergency hedged closes triggered by the liquidation monitor, by symbol",
		}, []string{"symbol"}),
		EmergencyCloseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fundingkeeper_emergency_close_errors_total",
			Help: "Emergency close attempts that exhausted their retry budget, by symbol",
		}, []string{"symbol"}),
		RateLimitWaits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fundingkeeper_rate_limit_wait_seconds",
			Help:    "Time spent waiting on a venue's rate limiter, by venue and priority",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"venue", "priority"}),
	}

	reg.MustRegister(
		m.TicksDropped, m.ZombiesCancelled, m.PairsOpened, m.SingleLegRecoveries,
		m.SingleLegUnwinds, m.EmergencyCloses, m.EmergencyCloseErrors, m.RateLimitWaits,
	)
	return m
}
