package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// WebSocket metrics
	WebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	RoomSubscriptionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "room_subscriptions_active",
			Help: "Number of live subscriptions per room",
		},
		[]string{"room"},
	)

	MessagesPushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_pushed_total",
			Help: "Messages pushed to subscribed connections",
		},
		[]string{"room"},
	)

	// Store metrics
	MessagesStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_stored_total",
			Help: "Messages durably appended to the store",
		},
		[]string{"room"},
	)

	MessageIDConflictRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "message_id_conflict_retries_total",
			Help: "Per-room id collisions resolved by retrying the insert",
		},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"operation", "table"},
	)

	// Broker metrics
	BrokerPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_publishes_total",
			Help: "Envelopes published to the fanout exchange",
		},
		[]string{"outcome"},
	)

	BrokerEnvelopesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broker_envelopes_received_total",
			Help: "Envelopes received from the instance queue",
		},
	)

	BrokerEnvelopesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_envelopes_dropped_total",
			Help: "Envelopes dropped by reason (encode, decode, returned)",
		},
		[]string{"reason"},
	)

	// Delivery queue metrics
	DispatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_queue_depth",
			Help: "Messages waiting in the delivery queue",
		},
	)

	DispatchedMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatched_messages_total",
			Help: "Messages drained from the delivery queue and broadcast",
		},
	)
)
