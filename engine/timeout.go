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

// sweepExpiredTransactions scans the deadline index and applies the
// timeout policy to every transaction whose processing deadline passed.
// Reversal-flow rows are outside the policy: the reversal worker owns
// their progress and its own attempt budget bounds them.
func (e *Engine) sweepExpiredTransactions() {
	now := time.Now()
	entries, err := e.stg.DueTimeouts(now, e.cfg.TimeoutBatch)
	if err != nil {
		log.Warnw("failed to scan deadline index", "error", err)
		return
	}
	ctx := e.workerCtx()
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return
		default:
		}
		e.expireTransaction(entry)
	}
}

// expireTransaction applies the timeout policy to one overdue row:
//
//   - before any debit reached the gateway, the transaction simply times
//     out;
//   - a silent debit or credit leg moves into reconciliation with an
//     immediate status query;
//   - a leg already in reconciliation that is still unsettled is failed,
//     with the credit leg going to reversal rather than being abandoned.
func (e *Engine) expireTransaction(entry storage.TimeoutEntry) {
	tx, err := e.stg.Transaction(entry.TxID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && tx.IsTerminal()) {
		// stale index entry, drop it
		if err := e.stg.RemoveTimeout(entry.At, entry.TxID); err != nil {
			log.Warnw("failed to drop stale deadline entry", "tx", entry.TxID, "error", err)
		}
		return
	}
	if err != nil {
		log.Warnw("failed to load overdue transaction", "tx", entry.TxID, "error", err)
		return
	}
	if tx.Status.IsReversal() {
		if err := e.stg.RemoveTimeout(entry.At, entry.TxID); err != nil {
			log.Warnw("failed to drop deadline entry of reversal row", "tx", tx.ID, "error", err)
		}
		return
	}

	switch tx.Status {
	case types.StatusInitiated, types.StatusNECPending,
		types.StatusFTDPending, types.StatusFTDTsq,
		types.StatusFTCPending, types.StatusFTCTsq:
	default:
		// FTD_SUCCESS and FTC_SUCCESS are momentary, the same status
		// update that entered them queues the next leg; leave the entry
		// for the next sweep.
		return
	}

	log.Infow("processing deadline passed", "tx", tx.ID, "status", string(tx.Status))
	metrics.Timeouts.WithLabelValues(string(tx.Status)).Inc()

	switch tx.Status {
	case types.StatusInitiated, types.StatusNECPending:
		if _, err := e.finish(tx.ID, "", types.StatusTimeout,
			"processing deadline passed", types.SeverityWarning); err != nil {
			log.Errorw(err, fmt.Sprintf("failed to time out transaction %s", tx.ID))
		}

	case types.StatusFTDPending:
		if _, err := e.stg.UpdateTransactionStatus(tx.ID, types.StatusFTDTsq,
			"deadline passed awaiting debit result, reconciling", types.SeverityWarning); err != nil {
			log.Errorw(err, fmt.Sprintf("failed to move %s into reconciliation", tx.ID))
			return
		}
		e.scheduleTSQ(tx, types.TSQTypeFTD, tx.FTDActionCode, time.Now())

	case types.StatusFTDTsq:
		if _, err := e.finish(tx.ID, types.StatusFTDFailed, types.StatusFailed,
			"reconciliation stalled past the deadline, failing debit leg", types.SeverityWarning); err != nil {
			log.Errorw(err, fmt.Sprintf("failed to settle stalled debit of %s", tx.ID))
		}

	case types.StatusFTCPending:
		if _, err := e.stg.UpdateTransactionStatus(tx.ID, types.StatusFTCTsq,
			"deadline passed awaiting credit result, reconciling", types.SeverityWarning); err != nil {
			log.Errorw(err, fmt.Sprintf("failed to move %s into reconciliation", tx.ID))
			return
		}
		e.scheduleTSQ(tx, types.TSQTypeFTC, tx.FTCActionCode, time.Now())

	case types.StatusFTCTsq:
		// The debit happened; abandoning here would strand the client's
		// money, so the credit leg is reversed instead.
		if err := e.startReversal(tx.ID,
			"reconciliation stalled past the deadline, reversing debit"); err != nil {
			log.Errorw(err, fmt.Sprintf("failed to start reversal for %s", tx.ID))
		}
	}
}
