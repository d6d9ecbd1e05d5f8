// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatter_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatter_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	// Realtime metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatter_connections_active",
			Help: "Live websocket connections on this process",
		},
	)

	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatter_events_received_total",
			Help: "Inbound socket events by name",
		},
		[]string{"event"},
	)

	EventErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatter_event_errors_total",
			Help: "Inbound socket events that failed, by name and error code",
		},
		[]string{"event", "code"},
	)

	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatter_events_emitted_total",
			Help: "Envelopes published to the bus by event name",
		},
		[]string{"event"},
	)

	EmitFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatter_emit_failures_total",
			Help: "Envelopes that could not be published after a durable write",
		},
	)

	DroppedFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatter_dropped_frames_total",
			Help: "Outbound frames dropped because a connection queue was full",
		},
	)

	GamesStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatter_games_started_total",
			Help: "Game rooms allocated",
		},
		[]string{"game_type"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatter_rate_limit_hits_total",
			Help: "Requests or events rejected by a rate limiter",
		},
		[]string{"scope"},
	)
)
