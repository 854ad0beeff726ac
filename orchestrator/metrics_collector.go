// Copyright 2025 ChurchOps
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector exposes pipeline metrics through Prometheus.
type MetricsCollector struct {
	requestsTotal  *prometheus.CounterVec
	phaseDurations *prometheus.HistogramVec
	tokensTotal    prometheus.Counter
	tokensSaved    prometheus.Counter
}

// NewMetricsCollector creates a collector and registers its metrics on the
// given registerer.
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	c := &MetricsCollector{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datapilot_requests_total",
			Help: "Query pipeline requests by outcome",
		}, []string{"outcome"}),
		phaseDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "datapilot_phase_duration_seconds",
			Help:    "Wall-clock duration of each pipeline phase",
			Buckets: prometheus.DefBuckets,
		}, []string{"phase"}),
		tokensTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "datapilot_completion_tokens_total",
			Help: "Completion-service tokens consumed",
		}),
		tokensSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "datapilot_tokens_saved_total",
			Help: "Estimated tokens saved by local data reduction",
		}),
	}

	reg.MustRegister(c.requestsTotal, c.phaseDurations, c.tokensTotal, c.tokensSaved)
	return c
}

// RecordRequest counts one finished request by outcome.
func (c *MetricsCollector) RecordRequest(outcome string) {
	c.requestsTotal.WithLabelValues(outcome).Inc()
}

// ObservePhase records the duration of one pipeline phase.
func (c *MetricsCollector) ObservePhase(phase string, durationMs int64) {
	c.phaseDurations.WithLabelValues(phase).Observe(float64(durationMs) / 1000.0)
}

// RecordTokens counts consumed and estimated-saved completion tokens.
func (c *MetricsCollector) RecordTokens(total, saved int) {
	c.tokensTotal.Add(float64(total))
	c.tokensSaved.Add(float64(saved))
}
