package types

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestStatusTransitions(t *testing.T) {
	c := qt.New(t)

	legal := [][2]TxStatus{
		{StatusInitiated, StatusNECPending},
		{StatusInitiated, StatusFTDPending},
		{StatusNECPending, StatusNECSuccess},
		{StatusNECSuccess, StatusCompleted},
		{StatusNECSuccess, StatusFTDPending},
		{StatusNECFailed, StatusFailed},
		{StatusFTDPending, StatusFTDSuccess},
		{StatusFTDPending, StatusFTDTsq},
		{StatusFTDTsq, StatusFTDTsq},
		{StatusFTDTsq, StatusFTDSuccess},
		{StatusFTDSuccess, StatusFTCPending},
		{StatusFTCPending, StatusFTCFailed},
		{StatusFTCFailed, StatusReversalPending},
		{StatusReversalPending, StatusReversalPending},
		{StatusReversalPending, StatusReversalSuccess},
		{StatusReversalSuccess, StatusFailed},
		{StatusReversalFailed, StatusFailed},
		{StatusFTCSuccess, StatusCompleted},
		{StatusFTCPending, StatusTimeout},
	}
	for _, tc := range legal {
		c.Assert(CanTransition(tc[0], tc[1]), qt.IsTrue,
			qt.Commentf("%s -> %s should be allowed", tc[0], tc[1]))
		c.Assert(ValidateTransition(tc[0], tc[1]), qt.IsNil)
	}

	illegal := [][2]TxStatus{
		{StatusInitiated, StatusFTCPending},
		{StatusInitiated, StatusCompleted},
		{StatusNECPending, StatusFTDPending},
		{StatusFTDPending, StatusFTCPending},
		{StatusFTDSuccess, StatusCompleted},
		{StatusFTCSuccess, StatusFailed},
		{StatusReversalPending, StatusCompleted},
		{StatusReversalPending, StatusTimeout},
		{StatusFailed, StatusFTDPending},
		{StatusCompleted, StatusFailed},
		{StatusTimeout, StatusInitiated},
	}
	for _, tc := range illegal {
		c.Assert(CanTransition(tc[0], tc[1]), qt.IsFalse,
			qt.Commentf("%s -> %s should be rejected", tc[0], tc[1]))
		c.Assert(ValidateTransition(tc[0], tc[1]), qt.ErrorIs, ErrInvalidTransition)
	}
}

func TestTerminalStates(t *testing.T) {
	c := qt.New(t)

	for _, s := range []TxStatus{StatusCompleted, StatusFailed, StatusTimeout} {
		c.Assert(s.IsTerminal(), qt.IsTrue)
		// no way out of a terminal state
		for _, to := range []TxStatus{
			StatusInitiated, StatusFTDPending, StatusFTCPending,
			StatusReversalPending, StatusCompleted, StatusFailed,
		} {
			c.Assert(CanTransition(s, to), qt.IsFalse,
				qt.Commentf("%s -> %s", s, to))
		}
	}
	for _, s := range []TxStatus{StatusInitiated, StatusFTDPending, StatusReversalPending} {
		c.Assert(s.IsTerminal(), qt.IsFalse)
	}
}

func TestReversalStates(t *testing.T) {
	c := qt.New(t)

	c.Assert(StatusReversalPending.IsReversal(), qt.IsTrue)
	c.Assert(StatusReversalSuccess.IsReversal(), qt.IsTrue)
	c.Assert(StatusReversalFailed.IsReversal(), qt.IsTrue)
	c.Assert(StatusFTDPending.IsReversal(), qt.IsFalse)
	c.Assert(StatusFailed.IsReversal(), qt.IsFalse)
}

func TestMatchSession(t *testing.T) {
	c := qt.New(t)

	tx := &Transaction{
		SessionID:         "sess-ftd",
		FTCSessionID:      "sess-ftc",
		ReversalSessionID: "sess-rev",
	}

	leg, ok := tx.MatchSession("sess-ftd")
	c.Assert(ok, qt.IsTrue)
	c.Assert(leg, qt.Equals, TSQTypeFTD)

	leg, ok = tx.MatchSession("sess-ftc")
	c.Assert(ok, qt.IsTrue)
	c.Assert(leg, qt.Equals, TSQTypeFTC)

	leg, ok = tx.MatchSession("sess-rev")
	c.Assert(ok, qt.IsTrue)
	c.Assert(leg, qt.Equals, TSQTypeReversal)

	_, ok = tx.MatchSession("unknown")
	c.Assert(ok, qt.IsFalse)
	_, ok = tx.MatchSession("")
	c.Assert(ok, qt.IsFalse)
}
