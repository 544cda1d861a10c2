// Copyright (C) 2025 IntelliChat Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the chat
// service.
//
// # Description
//
// Metrics cover both delivery surfaces (HTTP streaming and the
// WebSocket gateway) plus provider call outcomes. They are exposed on
// the /metrics endpoint for Prometheus scraping.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace for all metrics.
const metricsNamespace = "intellichat"

// ChatMetrics holds the Prometheus metrics for chat operations.
//
// # Fields
//
//   - RequestsTotal: Counter of generation requests by surface,
//     provider, and status.
//   - ChunksTotal: Counter of stream fragments delivered by provider.
//   - StreamDurationSeconds: Histogram of end-to-end generation time.
//   - ActiveStreams: Gauge of in-flight streamed generations.
//   - ActiveConnections: Gauge of open WebSocket connections.
//   - ErrorsTotal: Counter of failures by surface and error kind.
type ChatMetrics struct {
	RequestsTotal         *prometheus.CounterVec
	ChunksTotal           *prometheus.CounterVec
	StreamDurationSeconds *prometheus.HistogramVec
	ActiveStreams         *prometheus.GaugeVec
	ActiveConnections     prometheus.Gauge
	ErrorsTotal           *prometheus.CounterVec
}

// NewChatMetrics creates and registers the metrics on the given
// registerer. Call once per process with prometheus.DefaultRegisterer,
// or per test with a fresh registry.
func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "chat",
				Name:      "requests_total",
				Help:      "Generation requests by surface, provider, and status.",
			},
			[]string{"surface", "provider", "status"},
		),
		ChunksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "chat",
				Name:      "chunks_total",
				Help:      "Stream fragments delivered to clients by provider.",
			},
			[]string{"provider"},
		),
		StreamDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "chat",
				Name:      "stream_duration_seconds",
				Help:      "End-to-end generation duration.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"surface", "provider"},
		),
		ActiveStreams: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "chat",
				Name:      "active_streams",
				Help:      "In-flight streamed generations.",
			},
			[]string{"surface"},
		),
		ActiveConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "ws",
				Name:      "active_connections",
				Help:      "Open WebSocket connections.",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "chat",
				Name:      "errors_total",
				Help:      "Failures by surface and error kind.",
			},
			[]string{"surface", "kind"},
		),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.ChunksTotal,
		m.StreamDurationSeconds,
		m.ActiveStreams,
		m.ActiveConnections,
		m.ErrorsTotal,
	)
	return m
}
