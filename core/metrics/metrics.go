// Package metrics holds the prometheus collectors of the trip pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "shulebus"

var (
	RfidEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rfid",
		Name:      "events_total",
		Help:      "RFID scans processed, by event type and outcome.",
	}, []string{"event_type", "outcome"})

	FirstPickups = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rfid",
		Name:      "first_pickups_total",
		Help:      "Students picked up for the first time on a trip.",
	})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "notifications_total",
		Help:      "Pickup notifications handed to a channel, by channel and outcome.",
	}, []string{"channel", "outcome"})

	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "deliveries_total",
		Help:      "Messages delivered to the SMS or email provider, by channel and outcome.",
	}, []string{"channel", "outcome"})

	LocationUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tracking",
		Name:      "location_updates_total",
		Help:      "GPS samples stored.",
	})

	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tracking",
		Name:      "broadcasts_total",
		Help:      "Room broadcasts, by room kind and outcome.",
	}, []string{"room", "outcome"})

	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "tracking",
		Name:      "connections",
		Help:      "Open tracking websocket connections.",
	})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latencies.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "code"})
)

// outcome labels
const (
	OK      = "ok"
	Failed  = "failed"
	Skipped = "skipped"
	Queued  = "queued"
)
