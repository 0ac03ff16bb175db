// BrewOps - Tea Factory Operations Platform
// Copyright 2026 BrewOps Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brewops/brewops

// Package metrics holds the Prometheus collectors for the messaging core:
// API latency/throughput, websocket connection lifecycle, and message /
// notification volume.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brewops_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brewops_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "brewops_api_active_requests",
			Help: "Number of API requests currently in flight",
		},
	)

	// Realtime gateway metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "brewops_ws_connections",
			Help: "Number of open websocket connections",
		},
	)

	WSEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brewops_ws_events_total",
			Help: "Total inbound websocket events by type",
		},
		[]string{"event"},
	)

	// Messaging metrics
	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brewops_messages_sent_total",
			Help: "Total messages persisted, by realtime delivery outcome",
		},
		[]string{"delivered"},
	)

	NotificationsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brewops_notifications_created_total",
			Help: "Total notifications persisted, by kind",
		},
		[]string{"kind"},
	)
)

// RecordAPIRequest records one finished HTTP request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// TrackWSConnection adjusts the open-connection gauge.
func TrackWSConnection(open bool) {
	if open {
		WSConnections.Inc()
	} else {
		WSConnections.Dec()
	}
}

// RecordWSEvent counts one inbound gateway event.
func RecordWSEvent(event string) {
	WSEventsTotal.WithLabelValues(event).Inc()
}

// RecordMessageSent counts one persisted message.
func RecordMessageSent(deliveredRealtime bool) {
	if deliveredRealtime {
		MessagesSentTotal.WithLabelValues("realtime").Inc()
	} else {
		MessagesSentTotal.WithLabelValues("store_only").Inc()
	}
}

// RecordNotificationCreated counts one persisted notification.
func RecordNotificationCreated(kind string) {
	NotificationsCreatedTotal.WithLabelValues(kind).Inc()
}
