package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/vireopay/fundflow/log"
	"github.com/vireopay/fundflow/metrics"
	"github.com/vireopay/fundflow/storage"
	"github.com/vireopay/fundflow/types"
)

// finish drives a transaction through its last leg status into the final
// state, records the terminal metric and owes the institution its webhook.
// The leg status may be empty when the caller already performed that
// transition.
func (e *Engine) finish(txID string, leg, final types.TxStatus, reason string, severity types.AuditSeverity) (*types.Transaction, error) {
	if leg != "" {
		if _, err := e.stg.UpdateTransactionStatus(txID, leg, reason, severity); err != nil {
			return nil, err
		}
	}
	tx, err := e.stg.UpdateTransactionStatus(txID, final, reason, severity)
	if err != nil {
		return nil, err
	}
	metrics.TransactionsTerminal.WithLabelValues(string(final)).Inc()
	e.enqueueTerminalCallback(tx)
	return tx, nil
}

// startReversal fails the credit leg and hands the transaction to the
// reversal worker. Entering REVERSAL_PENDING enqueues the reversal job.
func (e *Engine) startReversal(txID, reason string) error {
	if _, err := e.stg.UpdateTransaction(txID, storage.TxUpdateReversalRequired(reason)); err != nil {
		return err
	}
	if _, err := e.stg.UpdateTransactionStatus(txID, types.StatusFTCFailed, reason, types.SeverityWarning); err != nil {
		return err
	}
	_, err := e.stg.UpdateTransactionStatus(txID, types.StatusReversalPending,
		"debit reversal queued", types.SeverityWarning)
	return err
}

// escalateReversalFailure settles a transaction whose reversal cannot
// succeed: the source account may be debited with no matching credit, so
// the record is flagged for an operator and the institution is notified.
func (e *Engine) escalateReversalFailure(txID, reason string) error {
	if _, err := e.stg.UpdateTransaction(txID, storage.TxUpdateManualIntervention(reason)); err != nil {
		return err
	}
	if _, err := e.stg.UpdateTransactionStatus(txID, types.StatusReversalFailed, reason, types.SeverityCritical); err != nil {
		return err
	}
	tx, err := e.stg.UpdateTransactionStatus(txID, types.StatusFailed,
		"funds possibly debited without credit, manual intervention required", types.SeverityCritical)
	if err != nil {
		return err
	}
	metrics.TransactionsTerminal.WithLabelValues(string(types.StatusFailed)).Inc()
	metrics.ReversalAttempts.WithLabelValues("exhausted").Inc()
	e.enqueueTerminalCallback(tx)
	return nil
}

// scheduleTSQ queues a status query for the given leg. At most one task
// per transaction is kept; scheduling on top of a pending task is a no-op.
func (e *Engine) scheduleTSQ(tx *types.Transaction, leg types.TSQType, originalCode string, at time.Time) {
	sessionID, trackingNumber := tx.LegSession(leg)
	if sessionID == "" {
		log.Warnw("cannot schedule status query, leg has no session",
			"tx", tx.ID, "leg", string(leg))
		return
	}
	task := &types.TSQTask{
		TxID:               tx.ID,
		Type:               leg,
		SessionID:          sessionID,
		TrackingNumber:     trackingNumber,
		OriginalActionCode: originalCode,
		MaxAttempts:        e.cfg.TSQMaxAttempts,
		ScheduledFor:       at,
	}
	switch err := e.stg.ScheduleTSQ(task); {
	case err == nil:
		log.Debugw("status query scheduled",
			"tx", tx.ID, "leg", string(leg), "at", at.Format(time.RFC3339))
	case errors.Is(err, storage.ErrKeyAlreadyExists):
		// one pending query per transaction is enough
	default:
		log.Errorw(err, fmt.Sprintf("failed to schedule status query for %s", tx.ID))
	}
}
