// Package metrics defines the prometheus collectors exposed at
// /metrics, grounded on the corpus's prometheus/client_golang usage
// (brain2-backend, manifold, contextd) rather than the teacher's
// hand-rolled runtime.MemStats counters, which stay as the /statistics
// JSON endpoint instead.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors bundles the counters and histograms the core records
// against, registered once at startup.
type Collectors struct {
	IngestLatency       prometheus.Histogram
	BeliefConflictTotal prometheus.Counter
	ForgottenTotal      prometheus.Counter
	ReinforcedTotal     prometheus.Counter
	WeakenedTotal       prometheus.Counter
	HTTPRequestsTotal   *prometheus.CounterVec
}

func NewCollectors(registry *prometheus.Registry) *Collectors {
	c := &Collectors{
		IngestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "synapse_ingest_duration_seconds",
			Help:    "Time to ingest one memory through classify/extract/reconcile.",
			Buckets: prometheus.DefBuckets,
		}),
		BeliefConflictTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "synapse_belief_conflicts_total",
			Help: "Number of belief conflicts detected.",
		}),
		ForgottenTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "synapse_memories_forgotten_total",
			Help: "Number of memories archived by the forgetting engine.",
		}),
		ReinforcedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "synapse_beliefs_reinforced_total",
			Help: "Number of belief reinforcement events.",
		}),
		WeakenedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "synapse_beliefs_weakened_total",
			Help: "Number of belief weakening events.",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "synapse_http_requests_total",
			Help: "HTTP requests by route and status class.",
		}, []string{"route", "status_class"}),
	}

	registry.MustRegister(c.IngestLatency, c.BeliefConflictTotal, c.ForgottenTotal, c.ReinforcedTotal, c.WeakenedTotal, c.HTTPRequestsTotal)
	return c
}
