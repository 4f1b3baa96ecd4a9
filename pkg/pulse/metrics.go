package pulse

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Flush outcomes reported by the flushes counter.
const (
	FlushOutcomeStored   = "stored"
	FlushOutcomeFallback = "fallback"
	FlushOutcomeDropped  = "dropped"
)

// Metrics are the Prometheus collectors updated by the profiler.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Decisions           *prometheus.CounterVec
	Flushes             *prometheus.CounterVec
	ChildInsertFailures *prometheus.CounterVec
	ProfiledDuration    prometheus.Histogram
	FilesTracked        prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// Collectors already registered by an earlier call are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "sampling_decisions_total",
			Help:      "Sampling decisions by outcome and rule.",
		}, []string{"decision", "reason"}),
		Flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "flushes_total",
			Help:      "Profile flushes by outcome.",
		}, []string{"outcome"}),
		ChildInsertFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "child_insert_failures_total",
			Help:      "Slow query and asset rows that failed to insert.",
		}, []string{"kind"}),
		ProfiledDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pulse",
			Name:      "profiled_request_duration_milliseconds",
			Help:      "Total time of profiled requests.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}),
		FilesTracked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "files_tracked_total",
			Help:      "Code file loads attributed to a plugin or theme.",
		}),
	}

	if reg == nil {
		return m
	}

	m.Decisions = register(reg, m.Decisions)
	m.Flushes = register(reg, m.Flushes)
	m.ChildInsertFailures = register(reg, m.ChildInsertFailures)
	m.ProfiledDuration = register(reg, m.ProfiledDuration)
	m.FilesTracked = register(reg, m.FilesTracked)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *Metrics) decision(d Decision) {
	if m == nil {
		return
	}
	label := "skip"
	if d.Profile {
		label = "profile"
	}
	m.Decisions.WithLabelValues(label, d.Reason).Inc()
}

func (m *Metrics) flush(report FlushReport) {
	if m == nil {
		return
	}
	switch {
	case report.Stored():
		m.Flushes.WithLabelValues(FlushOutcomeStored).Inc()
	case report.Fallback && report.FallbackErr == nil:
		m.Flushes.WithLabelValues(FlushOutcomeFallback).Inc()
	default:
		m.Flushes.WithLabelValues(FlushOutcomeDropped).Inc()
	}
	if n := len(report.Queries.Failed()); n > 0 {
		m.ChildInsertFailures.WithLabelValues("slow_query").Add(float64(n))
	}
	if n := len(report.Assets.Failed()); n > 0 {
		m.ChildInsertFailures.WithLabelValues("asset").Add(float64(n))
	}
	if report.Profile != nil {
		m.ProfiledDuration.Observe(report.Profile.TotalTime)
	}
}

func (m *Metrics) fileTracked() {
	if m == nil {
		return
	}
	m.FilesTracked.Inc()
}
