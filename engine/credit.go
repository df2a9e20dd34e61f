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

// processCreditQueue claims queued credit jobs up to the batch limit and
// submits the FTC leg for each.
func (e *Engine) processCreditQueue() {
	ctx := e.workerCtx()
	for i := 0; i < e.cfg.CreditBatch; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}
		tx, err := e.stg.NextCreditJob()
		if err != nil {
			if !errors.Is(err, storage.ErrNoMoreElements) {
				log.Warnw("failed to claim credit job", "error", err)
			}
			return
		}
		e.submitCreditLeg(tx)
	}
}

// submitCreditLeg mints a fresh session pair for the credit leg and sends
// the FTC request. The gateway's synchronous answer only settles the
// conclusive-failure case; approvals wait for the callback under the
// transaction deadline, inconclusive answers and transport failures get a
// status query as guard.
func (e *Engine) submitCreditLeg(tx *types.Transaction) {
	if tx.Status != types.StatusFTCPending {
		// raced with the deadline sweep, the queue entry is stale
		if err := e.stg.MarkCreditJobDone(tx.ID); err != nil {
			log.Warnw("failed to drop stale credit job", "tx", tx.ID, "error", err)
		}
		return
	}

	sessionID, trackingNumber, err := e.stg.NextSessionPair(e.cfg.BankCode)
	if err != nil {
		log.Errorw(err, fmt.Sprintf("failed to mint credit session for %s", tx.ID))
		e.releaseCreditJob(tx.ID)
		return
	}
	tx, err = e.stg.UpdateTransaction(tx.ID, storage.TxUpdateFTCSession(sessionID, trackingNumber))
	if err != nil {
		log.Errorw(err, fmt.Sprintf("failed to assign credit session for %s", tx.ID))
		e.releaseCreditJob(tx.ID)
		return
	}

	req := e.gw.FTCRequest(tx)
	e.recordEvent(requestEvent(tx.ID, types.SeqFTCRequest, types.EventFTCRequest, req))

	resp, err := e.gw.FundTransferCredit(e.workerCtx(), req)
	if err != nil {
		metrics.GatewayRequests.WithLabelValues("ftc", "transport_error").Inc()
		log.Warnw("credit submission transport failure, scheduling status query",
			"tx", tx.ID, "error", err)
		e.scheduleTSQ(tx, types.TSQTypeFTC, "", time.Now().Add(e.cfg.TSQDelay))
		e.markCreditJobDone(tx.ID)
		return
	}
	e.recordEvent(responseEvent(tx.ID, types.SeqFTCRequest, types.EventFTCRequest, resp))
	metrics.GatewayRequests.WithLabelValues("ftc", gatewayOutcome(resp.ActionCode)).Inc()

	switch {
	case gateway.Success(resp.ActionCode):
		// acknowledged; the authoritative outcome arrives on the callback
		log.Debugw("credit leg submitted", "tx", tx.ID, "session", sessionID)
	case gateway.Inconclusive(resp.ActionCode):
		e.scheduleTSQ(tx, types.TSQTypeFTC, resp.ActionCode, time.Now().Add(e.cfg.TSQDelay))
	default:
		if _, err := e.stg.UpdateTransaction(tx.ID,
			storage.TxUpdateFTCResult(resp.ActionCode, resp.ResponseMessage)); err != nil {
			log.Errorw(err, "failed to record credit rejection")
		}
		if err := e.startReversal(tx.ID,
			fmt.Sprintf("credit rejected: %s", gatewayReason(resp))); err != nil {
			log.Errorw(err, fmt.Sprintf("failed to start reversal for %s", tx.ID))
		}
	}
	e.markCreditJobDone(tx.ID)
}

func (e *Engine) markCreditJobDone(txID string) {
	if err := e.stg.MarkCreditJobDone(txID); err != nil {
		log.Warnw("failed to finish credit job", "tx", txID, "error", err)
	}
}

func (e *Engine) releaseCreditJob(txID string) {
	if err := e.stg.ReleaseCreditJob(txID); err != nil {
		log.Warnw("failed to release credit job", "tx", txID, "error", err)
	}
}
