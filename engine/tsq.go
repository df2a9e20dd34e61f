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

// tsqDecision is the outcome of applying the status query decision table.
type tsqDecision int

const (
	decideRetryLater tsqDecision = iota
	decideSuccess
	decideFail
	decideManual
)

func (d tsqDecision) String() string {
	switch d {
	case decideSuccess:
		return "SUCCESS"
	case decideFail:
		return "FAIL"
	case decideManual:
		return "MANUAL"
	default:
		return "RETRY_LATER"
	}
}

// decideTSQ maps a status query reply onto the decision table. The action
// code grades the query itself; the status code, when the query was
// accepted, is the gateway's verdict on the queried leg. Anything the
// table does not recognize counts as retry-later, the safe direction.
func decideTSQ(resp *gateway.Response, err error) tsqDecision {
	if err != nil || resp == nil {
		return decideRetryLater
	}
	switch resp.ActionCode {
	case gateway.ActionSuccess:
		switch resp.StatusCode {
		case "000":
			return decideSuccess
		case "990":
			return decideRetryLater
		case "381":
			return decideFail
		default:
			return decideRetryLater
		}
	case "381":
		return decideManual
	case "999":
		return decideFail
	case "990":
		return decideRetryLater
	default:
		return decideRetryLater
	}
}

// processDueStatusQueries claims due status query tasks up to the batch
// limit and runs each against the gateway.
func (e *Engine) processDueStatusQueries() {
	ctx := e.workerCtx()
	now := time.Now()
	for i := 0; i < e.cfg.TSQBatch; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}
		task, err := e.stg.NextDueTSQ(now)
		if err != nil {
			if !errors.Is(err, storage.ErrNoMoreElements) {
				log.Warnw("failed to claim status query task", "error", err)
			}
			return
		}
		e.runStatusQuery(task)
	}
}

// runStatusQuery performs one reconciliation attempt for an in-doubt leg.
func (e *Engine) runStatusQuery(task *types.TSQTask) {
	tx, err := e.stg.Transaction(task.TxID)
	if err != nil {
		log.Warnw("status query task for missing transaction, dropping",
			"tx", task.TxID, "error", err)
		e.completeTSQTask(task)
		return
	}
	if tx.IsTerminal() {
		// settled by a late callback or the deadline sweep
		e.completeTSQTask(task)
		return
	}

	seq := types.SeqTSQBase + task.Attempts
	evType := types.TSQEventType(task.Type)
	req := e.gw.TSQRequest(tx, task.Type)
	e.recordEvent(requestEvent(tx.ID, seq, evType, req))

	resp, err := e.gw.StatusQuery(e.workerCtx(), req)
	if err != nil {
		metrics.GatewayRequests.WithLabelValues("tsq", "transport_error").Inc()
	} else {
		e.recordEvent(responseEvent(tx.ID, seq, evType, resp))
		metrics.GatewayRequests.WithLabelValues("tsq", gatewayOutcome(resp.ActionCode)).Inc()
	}

	decision := decideTSQ(resp, err)
	metrics.TSQAttempts.WithLabelValues(string(task.Type), decision.String()).Inc()
	log.Infow("status query answered",
		"tx", tx.ID, "leg", string(task.Type), "attempt", task.Attempts+1,
		"decision", decision.String())

	switch decision {
	case decideRetryLater:
		task.Attempts++
		if task.Attempts >= task.MaxAttempts {
			e.completeTSQTask(task)
			e.forceTSQOutcome(task, tx)
			return
		}
		if err := e.stg.RescheduleTSQ(task, time.Now().Add(e.cfg.TSQDelay)); err != nil {
			log.Errorw(err, fmt.Sprintf("failed to reschedule status query for %s", tx.ID))
		}
	case decideSuccess:
		e.completeTSQTask(task)
		e.settleTSQSuccess(task, tx)
	case decideFail:
		e.completeTSQTask(task)
		e.settleTSQFailure(task, tx, resp, false)
	case decideManual:
		e.completeTSQTask(task)
		e.settleTSQFailure(task, tx, resp, true)
	}
}

// settleTSQSuccess commits the queried leg as succeeded. A transition
// failure here means a callback raced us and already advanced the state.
func (e *Engine) settleTSQSuccess(task *types.TSQTask, tx *types.Transaction) {
	const confirmed = "confirmed by status query"
	var err error
	switch task.Type {
	case types.TSQTypeFTC:
		if _, err = e.stg.UpdateTransaction(tx.ID,
			storage.TxUpdateFTCResult(gateway.ActionSuccess, confirmed)); err != nil {
			break
		}
		_, err = e.finish(tx.ID, types.StatusFTCSuccess, types.StatusCompleted,
			"credit "+confirmed, types.SeverityInfo)
	case types.TSQTypeReversal:
		if _, err = e.stg.UpdateTransaction(tx.ID,
			storage.TxUpdateReversalResult(gateway.ActionSuccess, confirmed)); err != nil {
			break
		}
		metrics.ReversalAttempts.WithLabelValues("succeeded").Inc()
		_, err = e.finish(tx.ID, types.StatusReversalSuccess, types.StatusFailed,
			"credit leg failed, debit reversed", types.SeverityWarning)
	default:
		if _, err = e.stg.UpdateTransaction(tx.ID,
			storage.TxUpdateFTDResult(gateway.ActionSuccess, confirmed)); err != nil {
			break
		}
		if _, err = e.stg.UpdateTransactionStatus(tx.ID, types.StatusFTDSuccess,
			"debit "+confirmed, types.SeverityInfo); err != nil {
			break
		}
		_, err = e.stg.UpdateTransactionStatus(tx.ID, types.StatusFTCPending,
			"credit leg queued", types.SeverityInfo)
	}
	if err != nil {
		log.Warnw("could not commit status query success, state moved on",
			"tx", tx.ID, "leg", string(task.Type), "error", err)
	}
}

// settleTSQFailure commits the queried leg as failed. Manual decisions
// additionally flag the record for an operator. A failed credit leg goes
// to reversal; a failed reversal is a critical stop.
func (e *Engine) settleTSQFailure(task *types.TSQTask, tx *types.Transaction, resp *gateway.Response, manual bool) {
	reason := fmt.Sprintf("status query reports failure: %s", gatewayReason(resp))
	severity := types.SeverityInfo
	if manual {
		reason = fmt.Sprintf("status query needs operator review: %s", gatewayReason(resp))
		severity = types.SeverityCritical
		if _, err := e.stg.UpdateTransaction(tx.ID, storage.TxUpdateManualIntervention(reason)); err != nil {
			log.Errorw(err, fmt.Sprintf("failed to flag manual intervention for %s", tx.ID))
		}
		if err := e.stg.AppendAudit(&types.AuditRecord{
			TxID:     tx.ID,
			Reason:   reason,
			Severity: types.SeverityCritical,
		}); err != nil {
			log.Warnw("failed to append manual intervention audit", "tx", tx.ID, "error", err)
		}
	}

	var err error
	switch task.Type {
	case types.TSQTypeFTC:
		if _, err = e.stg.UpdateTransaction(tx.ID,
			storage.TxUpdateFTCResult(respCode(resp), reason)); err != nil {
			break
		}
		err = e.startReversal(tx.ID, reason)
	case types.TSQTypeReversal:
		if _, err = e.stg.UpdateTransaction(tx.ID,
			storage.TxUpdateReversalResult(respCode(resp), reason)); err != nil {
			break
		}
		err = e.escalateReversalFailure(tx.ID, reason)
	default:
		if _, err = e.stg.UpdateTransaction(tx.ID,
			storage.TxUpdateFTDResult(respCode(resp), reason)); err != nil {
			break
		}
		_, err = e.finish(tx.ID, types.StatusFTDFailed, types.StatusFailed, reason, severity)
	}
	if err != nil {
		log.Warnw("could not commit status query failure, state moved on",
			"tx", tx.ID, "leg", string(task.Type), "error", err)
	}
}

// forceTSQOutcome settles a leg whose status query budget ran out with no
// conclusive answer. The debit and reversal legs fail outright; the credit
// leg is reversed, the safer direction when funds may have moved.
func (e *Engine) forceTSQOutcome(task *types.TSQTask, tx *types.Transaction) {
	reason := fmt.Sprintf("status query attempts exhausted after %d tries with no conclusive outcome",
		task.Attempts)
	log.Warnw("forcing terminal decision", "tx", tx.ID, "leg", string(task.Type))

	var err error
	switch task.Type {
	case types.TSQTypeFTC:
		err = e.startReversal(tx.ID, reason)
	case types.TSQTypeReversal:
		err = e.escalateReversalFailure(tx.ID, reason)
	default:
		_, err = e.finish(tx.ID, types.StatusFTDFailed, types.StatusFailed,
			reason, types.SeverityWarning)
	}
	if err != nil {
		log.Warnw("could not force terminal decision, state moved on",
			"tx", tx.ID, "leg", string(task.Type), "error", err)
	}
}

func (e *Engine) completeTSQTask(task *types.TSQTask) {
	if err := e.stg.CompleteTSQ(task); err != nil {
		log.Warnw("failed to complete status query task", "tx", task.TxID, "error", err)
	}
}

// respCode extracts the recordable action code of a status query reply.
func respCode(resp *gateway.Response) string {
	if resp == nil {
		return ""
	}
	if resp.ActionCode == gateway.ActionSuccess && resp.StatusCode != "" {
		return resp.StatusCode
	}
	return resp.ActionCode
}
