// Package metrics holds the Prometheus instruments of the node. They are
// registered on the default registry and exposed by the API /metrics
// endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TransactionsCreated counts accepted submissions by transaction type
// (NEC or FT).
var TransactionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fundflow_transactions_created_total",
	Help: "counter of transactions accepted by the submission API",
}, []string{"type"})

// TransactionsTerminal counts transactions reaching a terminal status.
var TransactionsTerminal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fundflow_transactions_terminal_total",
	Help: "counter of transactions that reached a terminal status",
}, []string{"status"})

// GatewayRequests counts outbound gateway exchanges by operation and
// outcome (success, failure, inconclusive, transport).
var GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fundflow_gateway_requests_total",
	Help: "counter of outbound gateway requests",
}, []string{"operation", "outcome"})

// GatewayCallbacks counts inbound gateway callbacks by processing result
// (received at intake, then processed, ignored or error).
var GatewayCallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fundflow_gateway_callbacks_total",
	Help: "counter of inbound gateway callbacks by processing result",
}, []string{"result"})

// WebhookDeliveries counts client webhook attempts by outcome (delivered,
// retry, failed).
var WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fundflow_webhook_deliveries_total",
	Help: "counter of client webhook delivery attempts",
}, []string{"outcome"})

// TSQAttempts counts status queries by queried leg and table decision.
var TSQAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fundflow_tsq_attempts_total",
	Help: "counter of transaction status queries by leg and decision",
}, []string{"leg", "decision"})

// ReversalAttempts counts reversal submissions by outcome (submitted,
// succeeded, exhausted).
var ReversalAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fundflow_reversal_attempts_total",
	Help: "counter of reversal submission attempts",
}, []string{"outcome"})

// QueueDepth tracks the pending item count of each work queue.
var QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "fundflow_queue_depth",
	Help: "pending items per work queue",
}, []string{"queue"})

// Timeouts counts transactions expired by the timeout worker by the
// status they were in when the deadline passed.
var Timeouts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fundflow_timeouts_total",
	Help: "counter of transactions handled by the timeout worker",
}, []string{"status"})
