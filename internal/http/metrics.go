package http

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"vibechain/internal/core"
)

// Metrics implements core.Metrics on its own registry, so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	HopsTotal            *prometheus.CounterVec
	ResolutionsTotal     *prometheus.CounterVec
	RejectionsTotal      *prometheus.CounterVec
	SimilarityCallsTotal *prometheus.CounterVec
	SimilarityDuration   *prometheus.HistogramVec
	WalksTotal           *prometheus.CounterVec
	WalkDuration         prometheus.Histogram
	RequestsRejected     *prometheus.CounterVec
}

var _ core.Metrics = (*Metrics)(nil)

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HopsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vibechain_hops_total",
				Help: "Total number of walk hops by outcome",
			},
			[]string{"outcome"},
		),
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vibechain_resolutions_total",
				Help: "Total number of accepted suggestions by resolution method",
			},
			[]string{"method"},
		),
		RejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vibechain_rejections_total",
				Help: "Total number of rejected suggestions by reason",
			},
			[]string{"reason"},
		),
		SimilarityCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vibechain_similarity_calls_total",
				Help: "Total number of similarity service calls",
			},
			[]string{"provider", "status"},
		),
		SimilarityDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vibechain_similarity_duration_seconds",
				Help:    "Time spent in similarity service calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		WalksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vibechain_walks_total",
				Help: "Total number of walks by outcome",
			},
			[]string{"outcome"},
		),
		WalkDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vibechain_walk_duration_seconds",
				Help:    "Time spent building a queue",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		RequestsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vibechain_requests_rejected_total",
				Help: "Total number of API requests turned away",
			},
			[]string{"reason"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HopsTotal,
		m.ResolutionsTotal,
		m.RejectionsTotal,
		m.SimilarityCallsTotal,
		m.SimilarityDuration,
		m.WalksTotal,
		m.WalkDuration,
		m.RequestsRejected,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveHop(outcome string) {
	m.HopsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveResolution(method core.Method) {
	m.ResolutionsTotal.WithLabelValues(string(method)).Inc()
}

func (m *Metrics) ObserveRejection(reason string) {
	m.RejectionsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveSimilarityCall(provider, status string, took time.Duration) {
	m.SimilarityCallsTotal.WithLabelValues(provider, status).Inc()
	m.SimilarityDuration.WithLabelValues(provider).Observe(took.Seconds())
}

func (m *Metrics) ObserveWalk(outcome string, took time.Duration) {
	m.WalksTotal.WithLabelValues(outcome).Inc()
	m.WalkDuration.Observe(took.Seconds())
}

func (m *Metrics) recordRejectedRequest(reason string) {
	m.RequestsRejected.WithLabelValues(reason).Inc()
}
