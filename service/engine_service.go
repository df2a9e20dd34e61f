package service

import (
	"context"
	"time"

	"github.com/vireopay/fundflow/engine"
	"github.com/vireopay/fundflow/gateway"
	"github.com/vireopay/fundflow/log"
	"github.com/vireopay/fundflow/metrics"
	"github.com/vireopay/fundflow/registry"
	"github.com/vireopay/fundflow/storage"
	"github.com/vireopay/fundflow/webhook"
)

// StatsMonitorInterval is the interval at which orchestrator statistics are
// logged. This can be overridden before starting the service.
var StatsMonitorInterval = 60 * time.Second

// EngineService represents a service that handles background transaction
// processing: gateway callbacks, credit and reversal legs, status queries,
// timeouts and client webhook dispatch.
type EngineService struct {
	Engine  *engine.Engine
	storage *storage.Storage
}

// NewEngine creates a new engine service instance. It wires the gateway
// client, the webhook notifier and the participant registry into the
// transaction engine.
func NewEngine(cfg engine.Config, stg *storage.Storage, gw *gateway.Client,
	hooks *webhook.Notifier, reg *registry.Registry,
) *EngineService {
	e, err := engine.New(cfg, stg, gw, hooks, reg)
	if err != nil {
		log.Fatalf("failed to create engine: %v", err)
	}
	return &EngineService{
		Engine:  e,
		storage: stg,
	}
}

// Start begins the transaction processing service. It returns an error if
// the service is already running.
func (es *EngineService) Start(ctx context.Context) error {
	// Start the engine workers
	if err := es.Engine.Start(ctx); err != nil {
		return err
	}

	// Start the stats monitor
	es.startStatsMonitor(ctx, StatsMonitorInterval)

	return nil
}

// Stop halts the transaction processing service.
func (es *EngineService) Stop() {
	if err := es.Engine.Stop(); err != nil {
		log.Warnw("engine service stopped", "error", err)
	}
}

// startStatsMonitor starts a goroutine that periodically logs the global
// orchestrator counters and the depth of each work queue.
func (es *EngineService) startStatsMonitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		log.Infow("orchestrator stats monitor started", "interval", interval.String())

		for {
			select {
			case <-ctx.Done():
				log.Infow("orchestrator stats monitor stopped")
				return
			case <-ticker.C:
				es.logOrchestratorStats()
			}
		}
	}()
}

// logOrchestratorStats logs the global counters kept by the storage layer
// and the current depth of the work queues, and refreshes the queue depth
// gauges exposed on /metrics.
func (es *EngineService) logOrchestratorStats() {
	stats, err := es.storage.Stats()
	if err != nil {
		log.Warnw("failed to get orchestrator stats", "error", err)
		return
	}

	pendingCallbacks := es.storage.PendingGatewayCallbacks()
	pendingWebhooks := es.storage.PendingClientCallbacks()
	pendingTSQ := es.storage.PendingTSQTasks()

	metrics.QueueDepth.WithLabelValues("gatewayCallbacks").Set(float64(pendingCallbacks))
	metrics.QueueDepth.WithLabelValues("clientWebhooks").Set(float64(pendingWebhooks))
	metrics.QueueDepth.WithLabelValues("statusQueries").Set(float64(pendingTSQ))

	log.Monitor("orchestrator statistics", map[string]any{
		"txCreated":        stats.TransactionsCreated,
		"txCompleted":      stats.TransactionsCompleted,
		"txFailed":         stats.TransactionsFailed,
		"txTimedOut":       stats.TransactionsTimedOut,
		"reversalsStarted": stats.ReversalsStarted,
		"reversalsOk":      stats.ReversalsSucceeded,
		"callbacksOk":      stats.CallbacksProcessed,
		"callbacksIgnored": stats.CallbacksIgnored,
		"webhooksOk":       stats.WebhooksDelivered,
		"webhooksFailed":   stats.WebhooksFailed,
		"tsqAttempts":      stats.TSQAttempts,
		"pendingCallbacks": pendingCallbacks,
		"pendingWebhooks":  pendingWebhooks,
		"pendingTSQ":       pendingTSQ,
	})
}
