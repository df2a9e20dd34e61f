package storage

import (
	"time"

	"github.com/vireopay/fundflow/types"
)

// Common update functions for use with UpdateTransaction

// TxUpdateNameEnquiryResult returns a function that records the outcome of
// a name enquiry leg.
func TxUpdateNameEnquiryResult(ref, actionCode, message string) func(*types.Transaction) error {
	return func(tx *types.Transaction) error {
		tx.NameEnquiryRef = ref
		tx.NECActionCode = actionCode
		tx.NECResponseMessage = message
		return nil
	}
}

// TxUpdateSession returns a function that assigns the debit leg session and
// tracking identifiers.
func TxUpdateSession(sessionID, trackingNumber string) func(*types.Transaction) error {
	return func(tx *types.Transaction) error {
		tx.SessionID = sessionID
		tx.TrackingNumber = trackingNumber
		return nil
	}
}

// TxUpdateFTCSession returns a function that assigns the credit leg session
// and tracking identifiers.
func TxUpdateFTCSession(sessionID, trackingNumber string) func(*types.Transaction) error {
	return func(tx *types.Transaction) error {
		tx.FTCSessionID = sessionID
		tx.FTCTrackingNumber = trackingNumber
		return nil
	}
}

// TxUpdateReversalSession returns a function that assigns the reversal leg
// session and tracking identifiers.
func TxUpdateReversalSession(sessionID, trackingNumber string) func(*types.Transaction) error {
	return func(tx *types.Transaction) error {
		tx.ReversalSessionID = sessionID
		tx.ReversalTrackingNumber = trackingNumber
		return nil
	}
}

// TxUpdateFTDResult returns a function that records the gateway outcome of
// the debit leg.
func TxUpdateFTDResult(actionCode, message string) func(*types.Transaction) error {
	return func(tx *types.Transaction) error {
		tx.FTDActionCode = actionCode
		tx.FTDResponseMessage = message
		return nil
	}
}

// TxUpdateFTCResult returns a function that records the gateway outcome of
// the credit leg.
func TxUpdateFTCResult(actionCode, message string) func(*types.Transaction) error {
	return func(tx *types.Transaction) error {
		tx.FTCActionCode = actionCode
		tx.FTCResponseMessage = message
		return nil
	}
}

// TxUpdateReversalResult returns a function that records the gateway
// outcome of the reversal leg.
func TxUpdateReversalResult(actionCode, message string) func(*types.Transaction) error {
	return func(tx *types.Transaction) error {
		tx.ReversalActionCode = actionCode
		tx.ReversalResponseMessage = message
		return nil
	}
}

// TxUpdateReversalRequired returns a function that marks the debit leg as
// needing compensation, without consuming a submission attempt.
func TxUpdateReversalRequired(reason string) func(*types.Transaction) error {
	return func(tx *types.Transaction) error {
		tx.ReversalRequired = true
		if reason != "" {
			tx.ReversalReason = reason
		}
		return nil
	}
}

// TxUpdateReversalAttempt returns a function that records one more reversal
// submission attempt and why it is needed.
func TxUpdateReversalAttempt(reason string) func(*types.Transaction) error {
	return func(tx *types.Transaction) error {
		tx.ReversalRequired = true
		tx.ReversalAttempts++
		if reason != "" {
			tx.ReversalReason = reason
		}
		return nil
	}
}

// TxUpdateManualIntervention returns a function that flags the transaction
// for manual review.
func TxUpdateManualIntervention(reason string) func(*types.Transaction) error {
	return func(tx *types.Transaction) error {
		tx.ManualIntervention = true
		tx.ManualReason = reason
		return nil
	}
}

// TxUpdateClientCallbackSent returns a function that marks the terminal
// webhook as enqueued.
func TxUpdateClientCallbackSent() func(*types.Transaction) error {
	return func(tx *types.Transaction) error {
		tx.ClientCallbackSent = true
		return nil
	}
}

// TxUpdateTimeoutAt returns a function that moves the processing deadline.
func TxUpdateTimeoutAt(at time.Time) func(*types.Transaction) error {
	return func(tx *types.Transaction) error {
		tx.TimeoutAt = at
		return nil
	}
}
