// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"

	SkipReasonInRetry  = "in_retry"
	SkipReasonInactive = "inactive"

	PersistPhaseBookkeeping = "bookkeeping"
	PersistPhaseRetry       = "retry"
	PersistPhasePost        = "post_timeout"
)

// Metrics are the counters of the timer engine.
// Each instance owns a registry, so several services (and tests) never collide.
type Metrics struct {
	registry *prometheus.Registry

	timeouts        *prometheus.CounterVec
	retries         *prometheus.CounterVec
	skippedFirings  *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	scheduledTimers prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		timeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xtimer_timeouts_total",
				Help: "Total number of timeout callback invocations, by result",
			},
			[]string{"result"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xtimer_retries_total",
				Help: "Total number of timeout retries, by result",
			},
			[]string{"result"},
		),
		skippedFirings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xtimer_skipped_firings_total",
				Help: "Total number of firings that were skipped, by reason",
			},
			[]string{"reason"},
		),
		persistFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xtimer_persist_failures_total",
				Help: "Total number of failures to persist a timer, by phase",
			},
			[]string{"phase"},
		),
		scheduledTimers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "xtimer_scheduled_timers",
				Help: "Number of timers currently waiting to fire",
			},
		),
	}
	m.registry.MustRegister(m.timeouts, m.retries, m.skippedFirings, m.persistFailures, m.scheduledTimers)
	return m
}

func (m *Metrics) Timeout(result string) {
	m.timeouts.WithLabelValues(result).Inc()
}

func (m *Metrics) Retry(result string) {
	m.retries.WithLabelValues(result).Inc()
}

func (m *Metrics) SkippedFiring(reason string) {
	m.skippedFirings.WithLabelValues(reason).Inc()
}

func (m *Metrics) PersistFailure(phase string) {
	m.persistFailures.WithLabelValues(phase).Inc()
}

func (m *Metrics) SetScheduledTimers(n int) {
	m.scheduledTimers.Set(float64(n))
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
