// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics exposes Prometheus instrumentation for the conversation
// store. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the store's collectors, registered on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	operations        *prometheus.CounterVec
	persistFailures   *prometheus.CounterVec
	generationSeconds *prometheus.HistogramVec
	conversations     prometheus.Gauge
	rollbacks         prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatstore_operations_total",
			Help: "Store operations applied, by operation",
		}, []string{"op"}),
		persistFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatstore_persist_failures_total",
			Help: "Failed writes to durable storage, by key",
		}, []string{"key"}),
		generationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chatstore_generation_seconds",
			Help:    "Time from placeholder insertion to assistant reply",
			Buckets: []float64{0.5, 1, 1.5, 2, 2.5, 3, 5},
		}, []string{"kind", "outcome"}),
		conversations: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chatstore_conversations",
			Help: "Conversations currently held by the store",
		}),
		rollbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatstore_delete_rollbacks_total",
			Help: "Optimistic deletions that were rolled back",
		}),
	}
}

// Op counts one applied operation.
func (m *Metrics) Op(op string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op).Inc()
}

// PersistFailure counts one failed durable write.
func (m *Metrics) PersistFailure(key string) {
	if m == nil {
		return
	}
	m.persistFailures.WithLabelValues(key).Inc()
}

// Generation observes a generation or regeneration round trip.
func (m *Metrics) Generation(kind, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.generationSeconds.WithLabelValues(kind, outcome).Observe(seconds)
}

// Conversations sets the conversation count gauge.
func (m *Metrics) Conversations(n int) {
	if m == nil {
		return
	}
	m.conversations.Set(float64(n))
}

// Rollback counts one rolled back deletion.
func (m *Metrics) Rollback() {
	if m == nil {
		return
	}
	m.rollbacks.Inc()
}
