// Package metrics defines and registers all custom Prometheus metrics for the
// identity gateway. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry through
// promauto when the package is first imported.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pathfinder"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthOperationsTotal counts credential lifecycle calls.
// Labels:
//   - operation: "register", "login", "refresh", "change_password", "forgot_password", "reset_password"
//   - result: "ok", "rejected" (4xx), or "error" (5xx)
var AuthOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_operations_total",
		Help:      "Total number of auth operations, by operation and result.",
	},
	[]string{"operation", "result"},
)

// ResetDeliveriesTotal counts out-of-band password reset deliveries.
// Labels:
//   - sender: "smtp", "amqp", or "log"
//   - result: "ok" or "error"
var ResetDeliveriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reset_deliveries_total",
		Help:      "Total number of password reset deliveries attempted.",
	},
	[]string{"sender", "result"},
)

// ResetQueueDepth tracks the number of reset jobs waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var ResetQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "reset_queue_depth",
		Help:      "Current number of reset jobs pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// IdentityCacheTotal counts identity cache lookups.
// Label:
//   - result: "hit" or "miss"
var IdentityCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "identity_cache_total",
		Help:      "Total number of identity cache lookups, labelled by result (hit/miss).",
	},
	[]string{"result"},
)

// ── Realtime metrics ──────────────────────────────────────────────────────────

// HandshakesTotal counts realtime handshakes.
// Label:
//   - result: "ok", "no_token", "invalid_token", or "invalid_user"
var HandshakesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_handshakes_total",
		Help:      "Total number of realtime handshakes, by result.",
	},
	[]string{"result"},
)

// ActiveConnections is the number of authenticated realtime connections.
var ActiveConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "realtime_active_connections",
		Help:      "Current number of authenticated realtime connections.",
	},
)

// EventsHandledTotal counts inbound realtime events.
// Labels:
//   - event: inbound event name, or "unknown"
//   - result: "ok" or "error"
var EventsHandledTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_events_handled_total",
		Help:      "Total number of inbound realtime events, by event and result.",
	},
	[]string{"event", "result"},
)

// EventHandlingDuration measures how long a single inbound event takes to handle.
// Label:
//   - event: inbound event name
var EventHandlingDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "realtime_event_duration_seconds",
		Help:      "Duration of inbound realtime event handling.",
		Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
	},
	[]string{"event"},
)

// BroadcastsTotal counts room broadcasts.
// Label:
//   - kind: room kind ("user", "role", "chat")
var BroadcastsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_broadcasts_total",
		Help:      "Total number of room broadcasts, by room kind.",
	},
	[]string{"kind"},
)

// DroppedFramesTotal counts outbound frames discarded because a
// connection's send buffer was full or closed.
var DroppedFramesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_dropped_frames_total",
		Help:      "Total number of outbound frames dropped for slow or closed connections.",
	},
)
