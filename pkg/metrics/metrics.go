// Package metrics exposes Prometheus instrumentation for the realtime client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_frames_received_total",
			Help: "Total number of inbound frames by type",
		},
		[]string{"type"},
	)

	FramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_frames_dropped_total",
			Help: "Total number of inbound frames dropped by reason",
		},
		[]string{"reason"},
	)

	FramesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_frames_sent_total",
			Help: "Total number of outbound frames by type",
		},
		[]string{"type"},
	)

	SendRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_send_rejected_total",
			Help: "Total number of sends refused because the connection was not open",
		},
	)

	Reconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_reconnects_total",
			Help: "Total number of reconnect attempts",
		},
	)

	HandlerPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_handler_panics_total",
			Help: "Total number of panics recovered from consumer handlers",
		},
	)

	ConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connection_state",
			Help: "Current connection state (0=closed 1=connecting 2=open 3=reconnecting)",
		},
	)

	SubscribedChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_subscribed_channels",
			Help: "Number of channels with at least one live subscription",
		},
	)

	HeartbeatTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_heartbeat_timeouts_total",
			Help: "Total number of connections torn down after a missed pong",
		},
	)
)

// Drop reasons used with FramesDropped.
const (
	DropMalformed = "malformed"
	DropUnknown   = "unknown_type"
	DropUnhandled = "unhandled"
)
