package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vireopay/fundflow/gateway"
	"github.com/vireopay/fundflow/log"
	"github.com/vireopay/fundflow/metrics"
	"github.com/vireopay/fundflow/storage"
	"github.com/vireopay/fundflow/types"
)

// processPendingCallbacks drains the gateway callback queue up to the
// batch limit. Each callback is correlated to its transaction leg and
// applied; unmatchable or out-of-order callbacks are kept with an IGNORED
// mark for traceability.
func (e *Engine) processPendingCallbacks() {
	ctx := e.workerCtx()
	for i := 0; i < e.cfg.CallbackBatch; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}
		cb, err := e.stg.NextPendingGatewayCallback()
		if err != nil {
			if !errors.Is(err, storage.ErrNoMoreElements) {
				log.Warnw("failed to claim gateway callback", "error", err)
			}
			return
		}
		outcome, detail := e.applyGatewayCallback(cb)
		if err := e.stg.SetGatewayCallbackResult(cb.ID, outcome, detail); err != nil {
			log.Errorw(err, fmt.Sprintf("failed to record result of gateway callback %s", cb.ID))
		}
		metrics.GatewayCallbacks.WithLabelValues(strings.ToLower(string(outcome))).Inc()
		if outcome != types.CallbackProcessed {
			log.Infow("gateway callback not applied",
				"callback", cb.ID, "session", cb.SessionID, "outcome", string(outcome), "detail", detail)
		}
	}
}

// applyGatewayCallback correlates one callback to a transaction leg and
// dispatches it. The returned status and detail are stored on the callback
// row.
func (e *Engine) applyGatewayCallback(cb *types.GatewayCallback) (types.CallbackStatus, string) {
	if cb.SessionID == "" {
		return types.CallbackIgnored, "callback carries no session id"
	}
	tx, err := e.stg.TransactionBySession(cb.SessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return types.CallbackIgnored, "no transaction for session"
	}
	if err != nil {
		return types.CallbackError, err.Error()
	}
	leg, ok := tx.MatchSession(cb.SessionID)
	if !ok {
		return types.CallbackIgnored, "session does not match a current leg"
	}
	if tx.Type == types.TxTypeNEC {
		return types.CallbackIgnored, "name enquiries resolve synchronously"
	}
	if tx.IsTerminal() {
		return types.CallbackIgnored, fmt.Sprintf("transaction already terminal (%s)", tx.Status)
	}
	if cb.FunctionCode != "" && cb.FunctionCode != gateway.LegFunction(leg) {
		return types.CallbackIgnored,
			fmt.Sprintf("function code %s does not belong to the %s leg", cb.FunctionCode, leg)
	}

	resp, err := gateway.ParseResponse(cb.ResponsePayload)
	if err != nil {
		// the intake endpoint extracted the essentials before persisting
		resp = &gateway.Response{ActionCode: cb.ActionCode, SessionID: cb.SessionID}
	}

	switch leg {
	case types.TSQTypeFTC:
		return e.applyCreditCallback(tx, cb, resp)
	case types.TSQTypeReversal:
		return e.applyReversalCallback(tx, cb, resp)
	default:
		return e.applyDebitCallback(tx, cb, resp)
	}
}

// applyDebitCallback settles the debit leg from its asynchronous result.
func (e *Engine) applyDebitCallback(tx *types.Transaction, cb *types.GatewayCallback, resp *gateway.Response) (types.CallbackStatus, string) {
	switch tx.Status {
	case types.StatusFTDPending, types.StatusFTDTsq:
	default:
		return types.CallbackIgnored, fmt.Sprintf("debit callback while %s", tx.Status)
	}
	e.recordEvent(callbackEvent(tx.ID, types.SeqFTDCallback, types.EventFTDCallback, cb, resp))
	if _, err := e.stg.UpdateTransaction(tx.ID,
		storage.TxUpdateFTDResult(resp.ActionCode, resp.ResponseMessage)); err != nil {
		return types.CallbackError, err.Error()
	}

	switch {
	case gateway.Success(resp.ActionCode):
		if _, err := e.stg.UpdateTransactionStatus(tx.ID, types.StatusFTDSuccess,
			"debit leg approved", types.SeverityInfo); err != nil {
			return types.CallbackError, err.Error()
		}
		if _, err := e.stg.UpdateTransactionStatus(tx.ID, types.StatusFTCPending,
			"credit leg queued", types.SeverityInfo); err != nil {
			return types.CallbackError, err.Error()
		}
	case gateway.Inconclusive(resp.ActionCode):
		if tx.Status != types.StatusFTDTsq {
			if _, err := e.stg.UpdateTransactionStatus(tx.ID, types.StatusFTDTsq,
				fmt.Sprintf("debit outcome in doubt (action code %q)", resp.ActionCode),
				types.SeverityWarning); err != nil {
				return types.CallbackError, err.Error()
			}
		}
		e.scheduleTSQ(tx, types.TSQTypeFTD, resp.ActionCode, time.Now().Add(e.cfg.TSQDelay))
	default:
		if _, err := e.finish(tx.ID, types.StatusFTDFailed, types.StatusFailed,
			fmt.Sprintf("debit rejected: %s", gatewayReason(resp)), types.SeverityInfo); err != nil {
			return types.CallbackError, err.Error()
		}
	}
	return types.CallbackProcessed, ""
}

// applyCreditCallback settles the credit leg. A conclusive failure here is
// the dangerous case: the debit already happened, so the transaction moves
// into the reversal flow.
func (e *Engine) applyCreditCallback(tx *types.Transaction, cb *types.GatewayCallback, resp *gateway.Response) (types.CallbackStatus, string) {
	switch tx.Status {
	case types.StatusFTCPending, types.StatusFTCTsq:
	default:
		return types.CallbackIgnored, fmt.Sprintf("credit callback while %s", tx.Status)
	}
	e.recordEvent(callbackEvent(tx.ID, types.SeqFTCCallback, types.EventFTCCallback, cb, resp))
	if _, err := e.stg.UpdateTransaction(tx.ID,
		storage.TxUpdateFTCResult(resp.ActionCode, resp.ResponseMessage)); err != nil {
		return types.CallbackError, err.Error()
	}

	switch {
	case gateway.Success(resp.ActionCode):
		if _, err := e.finish(tx.ID, types.StatusFTCSuccess, types.StatusCompleted,
			"credit leg approved", types.SeverityInfo); err != nil {
			return types.CallbackError, err.Error()
		}
	case gateway.Inconclusive(resp.ActionCode):
		if tx.Status != types.StatusFTCTsq {
			if _, err := e.stg.UpdateTransactionStatus(tx.ID, types.StatusFTCTsq,
				fmt.Sprintf("credit outcome in doubt (action code %q)", resp.ActionCode),
				types.SeverityWarning); err != nil {
				return types.CallbackError, err.Error()
			}
		}
		e.scheduleTSQ(tx, types.TSQTypeFTC, resp.ActionCode, time.Now().Add(e.cfg.TSQDelay))
	default:
		if err := e.startReversal(tx.ID,
			fmt.Sprintf("credit rejected: %s", gatewayReason(resp))); err != nil {
			return types.CallbackError, err.Error()
		}
	}
	return types.CallbackProcessed, ""
}

// applyReversalCallback settles one reversal attempt. Rejections are
// retried by re-queueing until the attempt budget runs out, then the
// transaction is escalated to an operator.
func (e *Engine) applyReversalCallback(tx *types.Transaction, cb *types.GatewayCallback, resp *gateway.Response) (types.CallbackStatus, string) {
	if tx.Status != types.StatusReversalPending {
		return types.CallbackIgnored, fmt.Sprintf("reversal callback while %s", tx.Status)
	}
	e.recordEvent(callbackEvent(tx.ID, types.SeqReversalCallback, types.EventReversalCallback, cb, resp))
	if _, err := e.stg.UpdateTransaction(tx.ID,
		storage.TxUpdateReversalResult(resp.ActionCode, resp.ResponseMessage)); err != nil {
		return types.CallbackError, err.Error()
	}

	switch {
	case gateway.Success(resp.ActionCode):
		metrics.ReversalAttempts.WithLabelValues("succeeded").Inc()
		if _, err := e.finish(tx.ID, types.StatusReversalSuccess, types.StatusFailed,
			"credit leg failed, debit reversed", types.SeverityWarning); err != nil {
			return types.CallbackError, err.Error()
		}
	case gateway.Inconclusive(resp.ActionCode):
		e.scheduleTSQ(tx, types.TSQTypeReversal, resp.ActionCode, time.Now().Add(e.cfg.TSQDelay))
	default:
		reason := fmt.Sprintf("reversal rejected: %s", gatewayReason(resp))
		if tx.ReversalAttempts >= e.cfg.MaxReversalAttempts {
			if err := e.escalateReversalFailure(tx.ID, reason); err != nil {
				return types.CallbackError, err.Error()
			}
		} else {
			// self-transition re-enqueues the reversal job
			if _, err := e.stg.UpdateTransactionStatus(tx.ID, types.StatusReversalPending,
				reason+", retrying", types.SeverityWarning); err != nil {
				return types.CallbackError, err.Error()
			}
		}
	}
	return types.CallbackProcessed, ""
}

// callbackEvent builds the event row for an asynchronous gateway result.
func callbackEvent(txID string, seq int, typ types.GatewayEventType, cb *types.GatewayCallback, resp *gateway.Response) *types.GatewayEvent {
	return &types.GatewayEvent{
		TxID:            txID,
		Seq:             seq,
		Type:            typ,
		SessionID:       cb.SessionID,
		TrackingNumber:  resp.TrackingNumber,
		FunctionCode:    cb.FunctionCode,
		ResponsePayload: cb.ResponsePayload,
		ActionCode:      resp.ActionCode,
	}
}
