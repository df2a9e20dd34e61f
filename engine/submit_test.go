package engine

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/vireopay/fundflow/gateway"
	"github.com/vireopay/fundflow/internal/testutil"
	"github.com/vireopay/fundflow/registry"
	"github.com/vireopay/fundflow/storage"
	"github.com/vireopay/fundflow/types"
)

func TestSubmitNECResolvesName(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)

	env.stub.Script(testutil.OpNEC, testutil.ScriptedResponse{
		Status: http.StatusOK,
		Body: map[string]any{
			"actionCode":      "000",
			"accountName":     "EMEKA ADEBAYO",
			"nameEnquiryRef":  "NER-20260824-001",
			"responseMessage": "Approved",
		},
	})

	res, err := env.SubmitNEC(context.Background(), enquiry("NEC-001"))
	c.Assert(err, qt.IsNil)
	c.Assert(res.Status, qt.Equals, types.StatusCompleted)
	c.Assert(res.ResponseCode, qt.Equals, "000")
	c.Assert(res.AccountName, qt.Equals, "EMEKA ADEBAYO")
	c.Assert(strings.HasPrefix(res.SessionID, testBankCode), qt.IsTrue)

	tx := env.tx(t, res.TransactionID)
	c.Assert(tx.Status, qt.Equals, types.StatusCompleted)
	c.Assert(tx.Type, qt.Equals, types.TxTypeNEC)
	c.Assert(tx.NameEnquiryRef, qt.Equals, "NER-20260824-001")
	c.Assert(tx.DestAccountName, qt.Equals, "EMEKA ADEBAYO")
	c.Assert(tx.CompletedAt, qt.IsNotNil)

	// one event row: the request slot completed by the synchronous reply
	events, err := env.stg.Events(tx.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(events, qt.HasLen, 1)
	c.Assert(events[0].Seq, qt.Equals, types.SeqNECRequest)
	c.Assert(events[0].Type, qt.Equals, types.EventNECRequest)
	c.Assert(events[0].RequestPayload, qt.Not(qt.HasLen), 0)
	c.Assert(events[0].ResponsePayload, qt.Not(qt.HasLen), 0)
	c.Assert(events[0].ActionCode, qt.Equals, "000")

	// name enquiries resolve synchronously, no webhook is owed
	_, err = env.stg.ClientCallbackByTx(tx.ID)
	c.Assert(err, qt.ErrorIs, storage.ErrNotFound)
}

func TestSubmitNECRejected(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)

	env.stub.Script(testutil.OpNEC, testutil.ScriptedResponse{
		Status: http.StatusOK,
		Body:   map[string]any{"actionCode": "107", "responseMessage": "Invalid account"},
	})

	res, err := env.SubmitNEC(context.Background(), enquiry("NEC-002"))
	c.Assert(err, qt.IsNil)
	c.Assert(res.Status, qt.Equals, types.StatusFailed)
	c.Assert(res.ResponseCode, qt.Equals, "107")

	tx := env.tx(t, res.TransactionID)
	c.Assert(tx.Status, qt.Equals, types.StatusFailed)
	c.Assert(tx.NECActionCode, qt.Equals, "107")
	c.Assert(tx.NECResponseMessage, qt.Equals, "Invalid account")
}

func TestSubmitNECGatewayUnreachable(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)

	// nothing listens on this port
	env.gw = gateway.New(gateway.Config{
		BaseURL: "http://127.0.0.1:1",
		Timeout: 200 * time.Millisecond,
	})

	_, err := env.SubmitNEC(context.Background(), enquiry("NEC-003"))
	c.Assert(err, qt.ErrorIs, ErrGatewayUnavailable)

	// the record stays pending for the deadline sweep
	tx, err := env.stg.TransactionByReference(testInstitution, "NEC-003")
	c.Assert(err, qt.IsNil)
	c.Assert(tx.Status, qt.Equals, types.StatusNECPending)
}

func TestSubmitValidation(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)
	ctx := context.Background()

	noRef := transfer("")
	_, err := env.SubmitFT(ctx, noRef)
	c.Assert(err, qt.ErrorIs, ErrInvalidSubmission)

	noInst := transfer("VAL-001")
	noInst.InstitutionID = ""
	_, err = env.SubmitFT(ctx, noInst)
	c.Assert(err, qt.ErrorIs, ErrInvalidSubmission)

	noDest := transfer("VAL-002")
	noDest.DestAccountNumber = ""
	_, err = env.SubmitFT(ctx, noDest)
	c.Assert(err, qt.ErrorIs, ErrInvalidSubmission)

	noSrcAccount := transfer("VAL-003")
	noSrcAccount.SrcAccountNumber = ""
	_, err = env.SubmitFT(ctx, noSrcAccount)
	c.Assert(err, qt.ErrorIs, ErrInvalidSubmission)

	zeroAmount := transfer("VAL-004")
	zeroAmount.Amount = 0
	_, err = env.SubmitFT(ctx, zeroAmount)
	c.Assert(err, qt.ErrorIs, ErrInvalidSubmission)

	// enquiries skip the transfer-only checks
	noSrcEnquiry := enquiry("VAL-005")
	noSrcEnquiry.SrcAccountNumber = ""
	_, err = env.SubmitNEC(ctx, noSrcEnquiry)
	c.Assert(err, qt.IsNil)

	unknownBank := transfer("VAL-006")
	unknownBank.DestBankCode = "000001"
	_, err = env.SubmitFT(ctx, unknownBank)
	c.Assert(err, qt.ErrorIs, registry.ErrUnknownParticipant)
}

func TestSubmitFTDuplicateReference(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)

	env.submitTransfer(t, "DUP-001")
	_, err := env.SubmitFT(context.Background(), transfer("DUP-001"))
	c.Assert(err, qt.ErrorIs, storage.ErrDuplicateReference)
}

func TestSubmitFTSendsDebit(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)

	tx := env.submitTransfer(t, "FT-001")
	c.Assert(tx.Status, qt.Equals, types.StatusFTDPending)
	c.Assert(strings.HasPrefix(tx.SessionID, testBankCode), qt.IsTrue)
	c.Assert(tx.TrackingNumber, qt.HasLen, 12)
	c.Assert(tx.TimeoutAt.After(time.Now()), qt.IsTrue)

	req := env.stub.LastRequest(testutil.OpFTD)
	c.Assert(req, qt.IsNotNil)
	c.Assert(req["functionCode"], qt.Equals, gateway.FunctionFTD)
	c.Assert(req["sessionId"], qt.Equals, tx.SessionID)
	c.Assert(req["originBank"], qt.Equals, srcBank)
	c.Assert(req["destBank"], qt.Equals, destBank)
	c.Assert(req["accountToDebit"], qt.Equals, "0112345678")
	c.Assert(req["accountToCredit"], qt.Equals, "0298765432")
	c.Assert(req["amount"], qt.Equals, "000000250000")
	c.Assert(req["callbackUrl"], qt.Equals, "http://node.test/v1/gateway/callback")

	events, err := env.stg.Events(tx.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(events, qt.HasLen, 1)
	c.Assert(events[0].Seq, qt.Equals, types.SeqFTDRequest)
	// the synchronous acknowledgement completed the request slot
	c.Assert(events[0].ActionCode, qt.Equals, "000")
}

func TestSubmitFTImmediateRejection(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)

	env.stub.ScriptCode(testutil.OpFTD, "057")

	res, err := env.SubmitFT(context.Background(), transfer("FT-REJ-001"))
	c.Assert(err, qt.IsNil)
	c.Assert(res.Status, qt.Equals, types.StatusFTDPending)

	waitFor(t, func() bool {
		tx := env.tx(t, res.TransactionID)
		return tx.Status == types.StatusFailed
	})
	tx := env.tx(t, res.TransactionID)
	c.Assert(tx.StatusBefore, qt.Equals, types.StatusFTDFailed)
	c.Assert(tx.FTDActionCode, qt.Equals, "057")

	// the institution is owed a failure webhook
	cb, err := env.stg.ClientCallbackByTx(tx.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(cb.Reference, qt.Equals, "FT-REJ-001")
}

func TestSubmitTSQTerminalEchoesStoredOutcome(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)

	tx := env.completeTransfer(t, "TSQ-001")

	before := env.stub.CallCount(testutil.OpTSQ)
	res, err := env.SubmitTSQ(context.Background(), testInstitution, "TSQ-001")
	c.Assert(err, qt.IsNil)
	c.Assert(res.Live, qt.IsFalse)
	c.Assert(res.Status, qt.Equals, types.StatusCompleted)
	c.Assert(res.ResponseCode, qt.Equals, "000")
	c.Assert(res.TransactionID, qt.Equals, tx.ID)
	// terminal answers never touch the gateway
	c.Assert(env.stub.CallCount(testutil.OpTSQ), qt.Equals, before)
}

func TestSubmitTSQLiveQuery(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)

	tx := env.submitTransfer(t, "TSQ-002")
	env.stub.ScriptTSQ("000", "990")

	res, err := env.SubmitTSQ(context.Background(), testInstitution, "TSQ-002")
	c.Assert(err, qt.IsNil)
	c.Assert(res.Live, qt.IsTrue)
	c.Assert(res.Leg, qt.Equals, types.TSQTypeFTD)
	c.Assert(res.ResponseCode, qt.Equals, "000")
	c.Assert(res.StatusCode, qt.Equals, "990")

	// on-demand queries are read-only: no state change, no scheduled task
	c.Assert(env.tx(t, tx.ID).Status, qt.Equals, types.StatusFTDPending)
	c.Assert(env.stg.HasPendingTSQ(tx.ID), qt.IsFalse)
}

func TestSubmitTSQUnknownReference(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)

	_, err := env.SubmitTSQ(context.Background(), testInstitution, "NO-SUCH-REF")
	c.Assert(err, qt.ErrorIs, storage.ErrNotFound)
}
