package server

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus instruments for the query endpoints.
type Metrics struct {
	Queries   *prometheus.CounterVec
	Duration  *prometheus.HistogramVec
	Retrieval prometheus.Histogram
}

// NewMetrics registers and returns the server metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "copilot_queries_total",
			Help: "Queries handled, by mode (query|stream) and outcome (ok|error|rejected).",
		}, []string{"mode", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "copilot_query_duration_seconds",
			Help:    "Wall-clock duration of query handling.",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
		Retrieval: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "copilot_retrieval_duration_seconds",
			Help:    "Wall-clock duration of vector index lookups.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.Queries, m.Duration, m.Retrieval)
	return m
}
