// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package metrics holds the Prometheus collectors of the trust engine.
//
// Collectors live on a [Metrics] value with its own registry rather than in
// package globals, so every engine (and every test) gets an isolated set.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "tls_trust_engine"

// Metrics is the set of engine collectors.
type Metrics struct {
	registry *prometheus.Registry

	VerificationsTotal          *prometheus.CounterVec
	VerificationDurationSeconds prometheus.Histogram
	PhaseTransitionsTotal       *prometheus.CounterVec
	FetchesTotal                *prometheus.CounterVec
	RepositoryLookupsTotal      *prometheus.CounterVec
	PromptsTotal                *prometheus.CounterVec
	PanicRecoveriesTotal        prometheus.Counter
	StoreRecords                *prometheus.GaugeVec
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		VerificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Finished verifications by outcome and alert.",
		}, []string{"outcome", "alert"}),

		VerificationDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "verification_duration_seconds",
			Help:      "Wall time from Verify to a terminal phase, including suspensions.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		PhaseTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Verifier phase transitions by target phase.",
		}, []string{"phase"}),

		FetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Network fetches started by the verifier, by purpose and result.",
		}, []string{"purpose", "result"}),

		RepositoryLookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repository_lookups_total",
			Help:      "Repository certificate lookups by kind and result.",
		}, []string{"kind", "result"}),

		PromptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prompts_total",
			Help:      "Trust prompts by category and decision.",
		}, []string{"category", "decision"}),

		PanicRecoveriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "panic_recoveries_total",
			Help:      "Verifier transitions that panicked and were turned into internal errors.",
		}),

		StoreRecords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_records",
			Help:      "Live trust store records by collection.",
		}, []string{"kind"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.VerificationsTotal,
		m.VerificationDurationSeconds,
		m.PhaseTransitionsTotal,
		m.FetchesTotal,
		m.RepositoryLookupsTotal,
		m.PromptsTotal,
		m.PanicRecoveriesTotal,
		m.StoreRecords,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// ObserveVerification records a finished verification. alert is empty for
// accepted ones.
func (m *Metrics) ObserveVerification(outcome, alert string, d time.Duration) {
	if m == nil {
		return
	}
	if alert == "" {
		alert = "none"
	}
	m.VerificationsTotal.WithLabelValues(outcome, alert).Inc()
	m.VerificationDurationSeconds.Observe(d.Seconds())
}

// ObservePhase counts a transition into phase.
func (m *Metrics) ObservePhase(phase string) {
	if m == nil {
		return
	}
	m.PhaseTransitionsTotal.WithLabelValues(phase).Inc()
}

// ObserveFetch counts one fetch.
func (m *Metrics) ObserveFetch(purpose string, err error) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(purpose, result(err)).Inc()
}

// ObserveRepositoryLookup counts one repository lookup.
func (m *Metrics) ObserveRepositoryLookup(kind string, err error) {
	if m == nil {
		return
	}
	m.RepositoryLookupsTotal.WithLabelValues(kind, result(err)).Inc()
}

// ObservePrompt counts one answered prompt.
func (m *Metrics) ObservePrompt(category, decision string) {
	if m == nil {
		return
	}
	m.PromptsTotal.WithLabelValues(category, decision).Inc()
}

// ObservePanic counts one recovered panic.
func (m *Metrics) ObservePanic() {
	if m == nil {
		return
	}
	m.PanicRecoveriesTotal.Inc()
}

// SetStoreRecords publishes live record counts per collection.
func (m *Metrics) SetStoreRecords(counts map[string]int) {
	if m == nil {
		return
	}
	for kind, n := range counts {
		m.StoreRecords.WithLabelValues(kind).Set(float64(n))
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
