// Package engine orchestrates the funds transfer lifecycle: it accepts
// submissions, drives the debit, credit and reversal legs through the
// gateway, reconciles in-doubt legs with status queries and owes every
// finished transfer a signed webhook to its institution. All coordination
// happens through the storage layer; the workers share no memory.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vireopay/fundflow/gateway"
	"github.com/vireopay/fundflow/log"
	"github.com/vireopay/fundflow/registry"
	"github.com/vireopay/fundflow/storage"
	"github.com/vireopay/fundflow/types"
	"github.com/vireopay/fundflow/webhook"
)

// Config holds the engine tunables: processing deadlines, the status query
// budget, the reversal budget and the cadence of every background worker.
type Config struct {
	// BankCode is the six digit institution code of this node on the
	// gateway network. Every minted session id starts with it.
	BankCode string

	// NECTimeout is the processing deadline of a name enquiry.
	NECTimeout time.Duration
	// FTTimeout is the processing deadline of a funds transfer.
	FTTimeout time.Duration

	// TSQDelay is how far in the future a status query is scheduled when a
	// leg outcome is in doubt, and the requeue delay between attempts.
	TSQDelay time.Duration
	// TSQMaxAttempts is the status query budget per scheduled task. When
	// the budget runs out with no conclusive answer a terminal decision is
	// forced.
	TSQMaxAttempts int
	// MaxReversalAttempts is the reversal submission budget before the
	// transaction is flagged for manual intervention.
	MaxReversalAttempts int

	// Worker cadences.
	CallbackInterval time.Duration
	CreditInterval   time.Duration
	ReversalInterval time.Duration
	DispatchInterval time.Duration
	TSQPollInterval  time.Duration
	TSQWarmup        time.Duration
	TimeoutInterval  time.Duration

	// Per-tick claim limits.
	CallbackBatch int
	CreditBatch   int
	ReversalBatch int
	TSQBatch      int
	DispatchBatch int
	TimeoutBatch  int

	// Webhook is the delivery retry policy for client callbacks.
	Webhook webhook.RetryPolicy
}

// DefaultConfig returns the engine defaults. BankCode has no default, the
// caller must set it.
func DefaultConfig() Config {
	return Config{
		NECTimeout:          time.Minute,
		FTTimeout:           60 * time.Minute,
		TSQDelay:            5 * time.Minute,
		TSQMaxAttempts:      3,
		MaxReversalAttempts: 3,
		CallbackInterval:    2 * time.Second,
		CreditInterval:      3 * time.Second,
		ReversalInterval:    5 * time.Second,
		DispatchInterval:    5 * time.Second,
		TSQPollInterval:     10 * time.Second,
		TSQWarmup:           time.Minute,
		TimeoutInterval:     time.Minute,
		CallbackBatch:       10,
		CreditBatch:         5,
		ReversalBatch:       5,
		TSQBatch:            5,
		DispatchBatch:       10,
		TimeoutBatch:        50,
		Webhook:             webhook.DefaultRetryPolicy(),
	}
}

// Errors surfaced synchronously by the submission operations. Everything
// else is resolved asynchronously through state changes and audit records.
var (
	// ErrInvalidSubmission is returned when a submission is missing
	// required fields or carries an unusable amount.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrGatewayUnavailable is returned when the gateway could not be
	// reached or did not produce a parseable response.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
)

// Engine runs the orchestration workers and exposes the submission
// operations. Create it with New, then Start it; Stop cancels the workers
// and waits for them to drain their in-flight items.
type Engine struct {
	cfg   Config
	stg   *storage.Storage
	gw    *gateway.Client
	hooks *webhook.Notifier
	reg   *registry.Registry

	ctx    context.Context
	cancel context.CancelFunc
	g      *errgroup.Group
}

// New creates an engine. The storage, gateway client, webhook notifier and
// registry are shared with the API layer; the engine does not own their
// lifecycle.
func New(cfg Config, stg *storage.Storage, gw *gateway.Client, hooks *webhook.Notifier, reg *registry.Registry) (*Engine, error) {
	if stg == nil {
		return nil, fmt.Errorf("storage cannot be nil")
	}
	if gw == nil {
		return nil, fmt.Errorf("gateway client cannot be nil")
	}
	if hooks == nil {
		return nil, fmt.Errorf("webhook notifier cannot be nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if len(cfg.BankCode) != 6 {
		return nil, fmt.Errorf("bank code must be 6 digits, got %q", cfg.BankCode)
	}
	return &Engine{
		cfg:   cfg,
		stg:   stg,
		gw:    gw,
		hooks: hooks,
		reg:   reg,
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Start launches the background workers. They run until the context is
// cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("context cannot be nil")
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.g, _ = errgroup.WithContext(e.ctx)

	e.g.Go(func() error {
		return e.runLoop("callback processor", e.cfg.CallbackInterval, 0, e.processPendingCallbacks)
	})
	e.g.Go(func() error {
		return e.runLoop("credit worker", e.cfg.CreditInterval, 0, e.processCreditQueue)
	})
	e.g.Go(func() error {
		return e.runLoop("reversal worker", e.cfg.ReversalInterval, 0, e.processReversalQueue)
	})
	e.g.Go(func() error {
		return e.runLoop("status query worker", e.cfg.TSQPollInterval, e.cfg.TSQWarmup, e.processDueStatusQueries)
	})
	e.g.Go(func() error {
		return e.runLoop("timeout worker", e.cfg.TimeoutInterval, 0, e.sweepExpiredTransactions)
	})
	e.g.Go(func() error {
		return e.runLoop("client callback dispatcher", e.cfg.DispatchInterval, 0, e.dispatchClientCallbacks)
	})

	log.Infow("engine started", "bankCode", e.cfg.BankCode)
	return nil
}

// Stop cancels the workers and waits for the in-flight items to finish.
func (e *Engine) Stop() error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	if err := e.g.Wait(); err != nil {
		return err
	}
	log.Infow("engine stopped")
	return nil
}

// runLoop drives one worker: an optional warmup delay, then the tick
// function on a fixed cadence until the engine context is cancelled. Tick
// functions drain their queue up to the batch limit and return; they never
// unwind errors to the loop.
func (e *Engine) runLoop(name string, interval, warmup time.Duration, tick func()) error {
	if warmup > 0 {
		select {
		case <-e.ctx.Done():
			return nil
		case <-time.After(warmup):
		}
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Infow(name+" started", "interval", interval.String())
	for {
		select {
		case <-e.ctx.Done():
			log.Infow(name + " stopped")
			return nil
		case <-ticker.C:
			tick()
		}
	}
}

// workerCtx returns the context background work runs on. Submission
// handlers hand their fire-and-forget legs to this context so an API
// request cancellation does not abort a gateway exchange midway.
func (e *Engine) workerCtx() context.Context {
	if e.ctx != nil {
		return e.ctx
	}
	return context.Background()
}

// recordEvent persists a gateway event row, logging instead of failing:
// the event trail is diagnostic, losing a row must not stop the flow.
func (e *Engine) recordEvent(ev *types.GatewayEvent) {
	if err := e.stg.UpsertEvent(ev); err != nil {
		log.Warnw("failed to record gateway event",
			"tx", ev.TxID, "seq", ev.Seq, "error", err)
	}
}

// requestEvent builds the event row written when a gateway request goes
// out. The asynchronous response later completes the same row.
func requestEvent(txID string, seq int, typ types.GatewayEventType, req gateway.Request) *types.GatewayEvent {
	payload, err := json.Marshal(req)
	if err != nil {
		payload = nil
	}
	return &types.GatewayEvent{
		TxID:           txID,
		Seq:            seq,
		Type:           typ,
		SessionID:      req.SessionID,
		TrackingNumber: req.TrackingNumber,
		FunctionCode:   req.FunctionCode,
		RequestPayload: payload,
	}
}

// responseEvent builds the event row completing a request slot with the
// synchronous gateway reply.
func responseEvent(txID string, seq int, typ types.GatewayEventType, resp *gateway.Response) *types.GatewayEvent {
	return &types.GatewayEvent{
		TxID:            txID,
		Seq:             seq,
		Type:            typ,
		SessionID:       resp.SessionID,
		TrackingNumber:  resp.TrackingNumber,
		FunctionCode:    resp.FunctionCode,
		ResponsePayload: resp.Raw,
		ActionCode:      resp.ActionCode,
		DurationMs:      resp.Duration.Milliseconds(),
	}
}

// gatewayReason renders a gateway response for audit records and stored
// leg results.
func gatewayReason(resp *gateway.Response) string {
	if resp == nil {
		return "no response"
	}
	if resp.ResponseMessage == "" {
		return fmt.Sprintf("action code %s", resp.ActionCode)
	}
	return fmt.Sprintf("%s (action code %s)", resp.ResponseMessage, resp.ActionCode)
}
