// Package metrics provides Prometheus metrics collection for the LinkUp router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebSocketConnections tracks the current number of active WebSocket connections
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "linkup_websocket_connections",
		Help: "Current number of active WebSocket connections",
	})

	// OnlineUsers tracks users with at least one live connection
	OnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "linkup_online_users",
		Help: "Current number of users with at least one live connection",
	})

	// EventsReceived counts inbound events by canonical type
	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkup_events_received_total",
		Help: "Total number of events received from clients",
	}, []string{"type"})

	// FramesSent counts frames written to connections
	FramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkup_frames_sent_total",
		Help: "Total number of frames delivered to connections",
	})

	// DeliveryFailures counts sends that removed a broken connection
	DeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkup_delivery_failures_total",
		Help: "Total number of failed deliveries that dropped a connection",
	})

	// HandlerErrors counts handler failures by event type and category
	HandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkup_handler_errors_total",
		Help: "Total number of event handler errors",
	}, []string{"type", "category"})

	// ErrorClosures counts connections closed after too many consecutive errors
	ErrorClosures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkup_error_closures_total",
		Help: "Connections closed after exceeding the consecutive error threshold",
	})

	// PanicsRecovered counts recovered goroutine panics by component
	PanicsRecovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkup_panics_recovered_total",
		Help: "Total number of recovered goroutine panics",
	}, []string{"component"})

	// AIJobs counts assistant jobs by outcome: success, error, denied, skipped or rejected (queue full)
	AIJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkup_ai_jobs_total",
		Help: "Total number of assistant jobs by outcome",
	}, []string{"outcome"})

	// AIQueueDepth tracks jobs waiting for a runner worker
	AIQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "linkup_ai_queue_depth",
		Help: "Assistant jobs waiting for a worker",
	})

	// CooldownSuppressed counts triggers dropped by the per-room cooldown
	CooldownSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkup_ai_cooldown_suppressed_total",
		Help: "Total number of AI triggers suppressed by the room cooldown",
	})

	// SupportTransitions counts support thread transitions by target state
	SupportTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkup_support_transitions_total",
		Help: "Total number of support thread transitions",
	}, []string{"status"})

	// CatchUpJobs counts jobs enqueued by the admin-offline sweep
	CatchUpJobs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkup_support_catchup_jobs_total",
		Help: "Total number of catch-up jobs enqueued when the last admin went offline",
	})

	// LLMRequests tracks the total number of LLM requests by provider
	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkup_llm_requests_total",
		Help: "Total number of LLM requests by provider",
	}, []string{"provider"})

	// LLMLatency tracks the latency of LLM requests by provider
	LLMLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "linkup_llm_latency_seconds",
		Help:    "Latency of LLM requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	// LLMErrors tracks the total number of LLM errors by provider
	LLMErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkup_llm_errors_total",
		Help: "Total number of LLM errors by provider",
	}, []string{"provider"})

	// LLMFallbacks counts how often the chain moved past a failed provider
	LLMFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkup_llm_fallbacks_total",
		Help: "Total number of provider fallbacks",
	})

	// MongoDBOperationDuration tracks store operation latency
	MongoDBOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "linkup_mongodb_operation_duration_seconds",
		Help:    "Duration of MongoDB operations in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// HTTPRequestDuration tracks HTTP latency by route
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "linkup_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)
