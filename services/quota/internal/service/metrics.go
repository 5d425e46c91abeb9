// Package service wires engine events to prometheus.
package service

import (
	"strconv"
	"time"

	"github.com/Usama125/ResumeAgentAI-sub000/services/quota/internal/limiter"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Decisions     *prometheus.CounterVec
	CheckLatency  *prometheus.HistogramVec
	StoreFailures *prometheus.CounterVec
	AuthFallbacks *prometheus.CounterVec
	EventsDropped prometheus.Counter
}

func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quota_decisions_total",
				Help: "Quota decisions by class, path and result.",
			},
			[]string{"class", "path", "allowed"},
		),
		CheckLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quota_check_duration_seconds",
				Help:    "Quota check duration in seconds.",
				Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"path"},
		),
		StoreFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quota_store_failures_total",
				Help: "Store errors that made the engine fail open.",
			},
			[]string{"class", "path"},
		),
		AuthFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quota_auth_fallback_total",
				Help: "Requests whose credentials could not be resolved.",
			},
			[]string{"policy"},
		),
		EventsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quota_denial_events_dropped_total",
				Help: "Denial events dropped because the emitter buffer was full.",
			},
		),
	}

	registry.MustRegister(m.Decisions, m.CheckLatency, m.StoreFailures, m.AuthFallbacks, m.EventsDropped)
	return m
}

func (m *Metrics) Decided(class limiter.Class, path limiter.Path, d limiter.Decision, elapsed time.Duration) {
	m.Decisions.WithLabelValues(string(class), string(path), strconv.FormatBool(d.Allowed)).Inc()
	m.CheckLatency.WithLabelValues(string(path)).Observe(elapsed.Seconds())
}

func (m *Metrics) FailedOpen(class limiter.Class, path limiter.Path, _ error) {
	m.StoreFailures.WithLabelValues(string(class), string(path)).Inc()
}
