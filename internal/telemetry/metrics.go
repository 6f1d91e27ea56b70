/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics.
var (
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talentgrid_api_requests_total",
		Help: "Total number of HTTP API requests.",
	}, []string{"method", "endpoint", "status"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "talentgrid_api_request_duration_seconds",
		Help:    "HTTP API request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "talentgrid_api_active_connections",
		Help: "Number of in-flight HTTP requests.",
	})
)

// Database metrics.
var (
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "talentgrid_db_query_duration_seconds",
		Help:    "Database operation latency by operation and table.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talentgrid_db_errors_total",
		Help: "Database errors by operation and table.",
	}, []string{"operation", "table"})

	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "talentgrid_db_connections_active",
		Help: "Open database connections.",
	})
)

// Scheduling metrics.
var (
	SlotsGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "talentgrid_slots_generated_total",
		Help: "Slots created by inventory generation.",
	})

	BookingsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "talentgrid_bookings_created_total",
		Help: "Bookings successfully created.",
	})

	BookingConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "talentgrid_booking_conflicts_total",
		Help: "Booking attempts that lost a claim race or hit a taken slot.",
	})

	BookingTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talentgrid_booking_transitions_total",
		Help: "Lifecycle transitions by resulting status and rule.",
	}, []string{"status", "rule"})

	AttendanceEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talentgrid_attendance_events_total",
		Help: "Join and leave events recorded, by participant and kind.",
	}, []string{"participant", "kind"})

	CacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talentgrid_cache_requests_total",
		Help: "Bookable slot cache lookups by outcome.",
	}, []string{"outcome"})
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
