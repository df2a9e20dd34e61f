package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/vireopay/fundflow/gateway"
	"github.com/vireopay/fundflow/log"
	"github.com/vireopay/fundflow/metrics"
	"github.com/vireopay/fundflow/storage"
	"github.com/vireopay/fundflow/types"
)

// processReversalQueue claims queued reversal jobs up to the batch limit
// and submits a compensating transfer for each.
func (e *Engine) processReversalQueue() {
	ctx := e.workerCtx()
	for i := 0; i < e.cfg.ReversalBatch; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}
		tx, err := e.stg.NextReversalJob()
		if err != nil {
			if !errors.Is(err, storage.ErrNoMoreElements) {
				log.Warnw("failed to claim reversal job", "error", err)
			}
			return
		}
		e.submitReversal(tx)
	}
}

// submitReversal sends one compensating transfer attempt: a debit in the
// opposite direction on a fresh session pair. Rejections burn an attempt;
// when the budget is gone the transaction is escalated to an operator
// because the client's money may be gone with no credit to show.
func (e *Engine) submitReversal(tx *types.Transaction) {
	if tx.Status != types.StatusReversalPending || !tx.ReversalRequired {
		if err := e.stg.MarkReversalJobDone(tx.ID); err != nil {
			log.Warnw("failed to drop stale reversal job", "tx", tx.ID, "error", err)
		}
		return
	}
	if tx.ReversalAttempts >= e.cfg.MaxReversalAttempts {
		if err := e.escalateReversalFailure(tx.ID, "reversal attempts exhausted"); err != nil {
			log.Errorw(err, fmt.Sprintf("failed to escalate reversal for %s", tx.ID))
		}
		e.markReversalJobDone(tx.ID)
		return
	}

	sessionID, trackingNumber, err := e.stg.NextSessionPair(e.cfg.BankCode)
	if err != nil {
		log.Errorw(err, fmt.Sprintf("failed to mint reversal session for %s", tx.ID))
		e.releaseReversalJob(tx.ID)
		return
	}
	tx, err = e.stg.UpdateTransaction(tx.ID,
		storage.TxUpdateReversalSession(sessionID, trackingNumber),
		storage.TxUpdateReversalAttempt(""),
	)
	if err != nil {
		log.Errorw(err, fmt.Sprintf("failed to assign reversal session for %s", tx.ID))
		e.releaseReversalJob(tx.ID)
		return
	}
	log.Infow("submitting reversal",
		"tx", tx.ID, "attempt", tx.ReversalAttempts, "session", sessionID)
	metrics.ReversalAttempts.WithLabelValues("submitted").Inc()

	req := e.gw.ReversalRequest(tx)
	e.recordEvent(requestEvent(tx.ID, types.SeqReversalRequest, types.EventReversalRequest, req))

	resp, err := e.gw.Reversal(e.workerCtx(), req)
	// The claimed job is consumed whatever the outcome; the retry path
	// re-enqueues through the REVERSAL_PENDING self-transition.
	e.markReversalJobDone(tx.ID)
	if err != nil {
		metrics.GatewayRequests.WithLabelValues("reversal", "transport_error").Inc()
		log.Warnw("reversal transport failure, scheduling status query",
			"tx", tx.ID, "error", err)
		e.scheduleTSQ(tx, types.TSQTypeReversal, "", time.Now().Add(e.cfg.TSQDelay))
		return
	}
	e.recordEvent(responseEvent(tx.ID, types.SeqReversalRequest, types.EventReversalRequest, resp))
	metrics.GatewayRequests.WithLabelValues("reversal", gatewayOutcome(resp.ActionCode)).Inc()

	switch {
	case gateway.Success(resp.ActionCode):
		// Acknowledged; the callback settles it. Reversal rows are outside
		// the deadline sweep, so a status query guards against silence.
		e.scheduleTSQ(tx, types.TSQTypeReversal, "", time.Now().Add(e.cfg.TSQDelay))
	case gateway.Inconclusive(resp.ActionCode):
		e.scheduleTSQ(tx, types.TSQTypeReversal, resp.ActionCode, time.Now().Add(e.cfg.TSQDelay))
	default:
		if _, err := e.stg.UpdateTransaction(tx.ID,
			storage.TxUpdateReversalResult(resp.ActionCode, resp.ResponseMessage)); err != nil {
			log.Errorw(err, "failed to record reversal rejection")
		}
		reason := fmt.Sprintf("reversal rejected: %s", gatewayReason(resp))
		if tx.ReversalAttempts >= e.cfg.MaxReversalAttempts {
			if err := e.escalateReversalFailure(tx.ID, reason); err != nil {
				log.Errorw(err, fmt.Sprintf("failed to escalate reversal for %s", tx.ID))
			}
		} else {
			if _, err := e.stg.UpdateTransactionStatus(tx.ID, types.StatusReversalPending,
				reason+", retrying", types.SeverityWarning); err != nil {
				log.Errorw(err, fmt.Sprintf("failed to requeue reversal for %s", tx.ID))
			}
		}
	}
}

func (e *Engine) markReversalJobDone(txID string) {
	if err := e.stg.MarkReversalJobDone(txID); err != nil {
		log.Warnw("failed to finish reversal job", "tx", txID, "error", err)
	}
}

func (e *Engine) releaseReversalJob(txID string) {
	if err := e.stg.ReleaseReversalJob(txID); err != nil {
		log.Warnw("failed to release reversal job", "tx", txID, "error", err)
	}
}
