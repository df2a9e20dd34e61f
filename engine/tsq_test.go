package engine

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/vireopay/fundflow/gateway"
	"github.com/vireopay/fundflow/internal/testutil"
	"github.com/vireopay/fundflow/types"
)

func TestDecideTSQ(t *testing.T) {
	c := qt.New(t)

	cases := []struct {
		actionCode string
		statusCode string
		want       tsqDecision
	}{
		{"000", "000", decideSuccess},
		{"000", "990", decideRetryLater},
		{"000", "381", decideFail},
		{"000", "123", decideRetryLater},
		{"000", "", decideRetryLater},
		{"381", "", decideManual},
		{"381", "000", decideManual},
		{"999", "", decideFail},
		{"999", "000", decideFail},
		{"990", "", decideRetryLater},
		{"909", "", decideRetryLater},
		{"", "", decideRetryLater},
	}
	for _, tc := range cases {
		got := decideTSQ(&gateway.Response{ActionCode: tc.actionCode, StatusCode: tc.statusCode}, nil)
		c.Assert(got, qt.Equals, tc.want,
			qt.Commentf("actionCode=%q statusCode=%q", tc.actionCode, tc.statusCode))
	}

	// transport failures and missing responses always retry
	c.Assert(decideTSQ(nil, errors.New("connection refused")), qt.Equals, decideRetryLater)
	c.Assert(decideTSQ(nil, nil), qt.Equals, decideRetryLater)
}

func TestDecisionStrings(t *testing.T) {
	c := qt.New(t)
	c.Assert(decideSuccess.String(), qt.Equals, "SUCCESS")
	c.Assert(decideFail.String(), qt.Equals, "FAIL")
	c.Assert(decideManual.String(), qt.Equals, "MANUAL")
	c.Assert(decideRetryLater.String(), qt.Equals, "RETRY_LATER")
}

func TestStatusQueryFailsDebitLeg(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)

	tx := env.submitTransfer(t, "TSQF-001")
	env.push(t, tx.SessionID, gateway.FunctionFTD, "912", "Bank unavailable")
	env.processPendingCallbacks()
	c.Assert(env.tx(t, tx.ID).Status, qt.Equals, types.StatusFTDTsq)

	// the query is accepted and reports the leg as failed
	env.stub.ScriptTSQ("000", "381")
	env.processDueStatusQueries()

	tx = env.tx(t, tx.ID)
	c.Assert(tx.Status, qt.Equals, types.StatusFailed)
	c.Assert(tx.StatusBefore, qt.Equals, types.StatusFTDFailed)
	c.Assert(tx.FTDActionCode, qt.Equals, "381")
	c.Assert(tx.ManualIntervention, qt.IsFalse)

	cb, err := env.stg.ClientCallbackByTx(tx.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(string(cb.Payload), qt.Contains, `"status":"FAILED"`)
}

func TestStatusQueryManualDecision(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)

	tx := env.submitTransfer(t, "TSQM-001")
	env.push(t, tx.SessionID, gateway.FunctionFTD, "000", "Approved")
	env.processPendingCallbacks()
	env.processCreditQueue()
	tx = env.tx(t, tx.ID)
	env.push(t, tx.FTCSessionID, gateway.FunctionFTC, "909", "System busy")
	env.processPendingCallbacks()

	// the session itself is rejected as invalid: an operator must look
	env.stub.ScriptCode(testutil.OpTSQ, "381")
	env.processDueStatusQueries()

	tx = env.tx(t, tx.ID)
	c.Assert(tx.ManualIntervention, qt.IsTrue)
	c.Assert(tx.ManualReason, qt.Contains, "operator review")
	// the credit leg still fails toward reversal rather than hanging
	c.Assert(tx.Status, qt.Equals, types.StatusReversalPending)

	trail, err := env.stg.AuditTrail(tx.ID)
	c.Assert(err, qt.IsNil)
	found := false
	for _, rec := range trail {
		if rec.Severity == types.SeverityCritical {
			found = true
		}
	}
	c.Assert(found, qt.IsTrue)
}

func TestStatusQueryDropsSettledTask(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)

	tx := env.submitTransfer(t, "TSQD-001")
	env.push(t, tx.SessionID, gateway.FunctionFTD, "990", "Timeout")
	env.processPendingCallbacks()
	c.Assert(env.stg.HasPendingTSQ(tx.ID), qt.IsTrue)

	// a late conclusive callback settles the transaction first
	env.push(t, tx.SessionID, gateway.FunctionFTD, "057", "Transaction not permitted")
	env.processPendingCallbacks()
	c.Assert(env.tx(t, tx.ID).Status, qt.Equals, types.StatusFailed)

	// the worker drops the stale task without asking the gateway
	before := env.stub.CallCount(testutil.OpTSQ)
	env.processDueStatusQueries()
	c.Assert(env.stub.CallCount(testutil.OpTSQ), qt.Equals, before)
	c.Assert(env.stg.HasPendingTSQ(tx.ID), qt.IsFalse)
}

func TestStatusQueryReversalConfirmed(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)

	tx := env.submitTransfer(t, "TSQR-001")
	env.push(t, tx.SessionID, gateway.FunctionFTD, "000", "Approved")
	env.processPendingCallbacks()
	env.processCreditQueue()
	tx = env.tx(t, tx.ID)
	env.push(t, tx.FTCSessionID, gateway.FunctionFTC, "051", "No sufficient funds")
	env.processPendingCallbacks()

	// reversal acknowledged, then the gateway goes silent; the guard
	// query confirms the reversal landed
	env.processReversalQueue()
	tx = env.tx(t, tx.ID)
	c.Assert(tx.Status, qt.Equals, types.StatusReversalPending)
	c.Assert(env.stg.HasPendingTSQ(tx.ID), qt.IsTrue)

	env.stub.ScriptTSQ("000", "000")
	env.processDueStatusQueries()

	tx = env.tx(t, tx.ID)
	c.Assert(tx.Status, qt.Equals, types.StatusFailed)
	c.Assert(tx.StatusBefore, qt.Equals, types.StatusReversalSuccess)
	c.Assert(tx.ReversalActionCode, qt.Equals, "000")
}
