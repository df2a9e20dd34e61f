package types

import (
	"fmt"
	"sync"

	"github.com/looplab/fsm"
)

// TxStatus is the lifecycle state of a transaction.
type TxStatus string

const (
	StatusInitiated TxStatus = "INITIATED"

	StatusNECPending TxStatus = "NEC_PENDING"
	StatusNECSuccess TxStatus = "NEC_SUCCESS"
	StatusNECFailed  TxStatus = "NEC_FAILED"

	StatusFTDPending TxStatus = "FTD_PENDING"
	StatusFTDSuccess TxStatus = "FTD_SUCCESS"
	StatusFTDFailed  TxStatus = "FTD_FAILED"
	StatusFTDTsq     TxStatus = "FTD_TSQ"

	StatusFTCPending TxStatus = "FTC_PENDING"
	StatusFTCSuccess TxStatus = "FTC_SUCCESS"
	StatusFTCFailed  TxStatus = "FTC_FAILED"
	StatusFTCTsq     TxStatus = "FTC_TSQ"

	StatusReversalPending TxStatus = "REVERSAL_PENDING"
	StatusReversalSuccess TxStatus = "REVERSAL_SUCCESS"
	StatusReversalFailed  TxStatus = "REVERSAL_FAILED"

	StatusCompleted TxStatus = "COMPLETED"
	StatusFailed    TxStatus = "FAILED"
	StatusTimeout   TxStatus = "TIMEOUT"
)

// ErrInvalidTransition is returned when a status change is requested that
// the lifecycle machine does not allow.
var ErrInvalidTransition = fmt.Errorf("invalid status transition")

// statusTransitions is the transition table of the lifecycle machine.
// Events are named after their destination state, with Src listing every
// state the destination is reachable from.
var statusTransitions = fsm.Events{
	{Name: string(StatusNECPending), Src: []string{
		string(StatusInitiated),
	}, Dst: string(StatusNECPending)},
	{Name: string(StatusNECSuccess), Src: []string{
		string(StatusNECPending),
	}, Dst: string(StatusNECSuccess)},
	{Name: string(StatusNECFailed), Src: []string{
		string(StatusNECPending),
	}, Dst: string(StatusNECFailed)},

	{Name: string(StatusFTDPending), Src: []string{
		string(StatusInitiated),
		string(StatusNECSuccess),
	}, Dst: string(StatusFTDPending)},
	{Name: string(StatusFTDSuccess), Src: []string{
		string(StatusFTDPending),
		string(StatusFTDTsq),
	}, Dst: string(StatusFTDSuccess)},
	{Name: string(StatusFTDFailed), Src: []string{
		string(StatusFTDPending),
		string(StatusFTDTsq),
	}, Dst: string(StatusFTDFailed)},
	{Name: string(StatusFTDTsq), Src: []string{
		string(StatusFTDPending),
		string(StatusFTDTsq),
	}, Dst: string(StatusFTDTsq)},

	{Name: string(StatusFTCPending), Src: []string{
		string(StatusFTDSuccess),
	}, Dst: string(StatusFTCPending)},
	{Name: string(StatusFTCSuccess), Src: []string{
		string(StatusFTCPending),
		string(StatusFTCTsq),
	}, Dst: string(StatusFTCSuccess)},
	{Name: string(StatusFTCFailed), Src: []string{
		string(StatusFTCPending),
		string(StatusFTCTsq),
	}, Dst: string(StatusFTCFailed)},
	{Name: string(StatusFTCTsq), Src: []string{
		string(StatusFTCPending),
		string(StatusFTCTsq),
	}, Dst: string(StatusFTCTsq)},

	{Name: string(StatusReversalPending), Src: []string{
		string(StatusFTCFailed),
		string(StatusReversalPending),
	}, Dst: string(StatusReversalPending)},
	{Name: string(StatusReversalSuccess), Src: []string{
		string(StatusReversalPending),
	}, Dst: string(StatusReversalSuccess)},
	{Name: string(StatusReversalFailed), Src: []string{
		string(StatusReversalPending),
	}, Dst: string(StatusReversalFailed)},

	{Name: string(StatusCompleted), Src: []string{
		string(StatusNECSuccess),
		string(StatusFTCSuccess),
	}, Dst: string(StatusCompleted)},
	{Name: string(StatusFailed), Src: []string{
		string(StatusNECFailed),
		string(StatusFTDFailed),
		string(StatusFTCFailed),
		string(StatusReversalSuccess),
		string(StatusReversalFailed),
	}, Dst: string(StatusFailed)},
	{Name: string(StatusTimeout), Src: []string{
		string(StatusInitiated),
		string(StatusNECPending),
		string(StatusFTDPending),
		string(StatusFTDTsq),
		string(StatusFTCPending),
		string(StatusFTCTsq),
	}, Dst: string(StatusTimeout)},
}

var (
	statusMachineMu sync.Mutex
	statusMachine   = fsm.NewFSM(string(StatusInitiated), statusTransitions, fsm.Callbacks{})
)

// CanTransition reports whether the lifecycle machine allows moving from
// one status to another.
func CanTransition(from, to TxStatus) bool {
	statusMachineMu.Lock()
	defer statusMachineMu.Unlock()
	statusMachine.SetState(string(from))
	return statusMachine.Can(string(to))
}

// ValidateTransition returns ErrInvalidTransition when the lifecycle
// machine does not allow moving from one status to another.
func ValidateTransition(from, to TxStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// IsTerminal reports whether the status is final. Terminal transactions
// never change status again.
func (s TxStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimeout:
		return true
	}
	return false
}

// IsReversal reports whether the status belongs to the reversal flow.
// Reversal states are excluded from the timeout scan, the reversal worker
// owns their progress.
func (s TxStatus) IsReversal() bool {
	switch s {
	case StatusReversalPending, StatusReversalSuccess, StatusReversalFailed:
		return true
	}
	return false
}

func (s TxStatus) String() string {
	return string(s)
}
