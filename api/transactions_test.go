package api

import (
	"net/http"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/vireopay/fundflow/engine"
	"github.com/vireopay/fundflow/internal/testutil"
	"github.com/vireopay/fundflow/types"
)

func TestEnquiryEndpoint(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(t)

	ta.stub.Script(testutil.OpNEC, testutil.ScriptedResponse{
		Status: http.StatusOK,
		Body: map[string]any{
			"actionCode":      "000",
			"responseMessage": "Approved or completed successfully",
			"accountName":     "EMEKA ADEBAYO",
			"nameEnquiryRef":  "NER-881",
		},
	})

	var res engine.SubmitResult
	status := ta.do(t, http.MethodPost, EnquiryEndpoint, testAPIKey, enquiryRequest("REF-NEC-1"), &res)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(res.Status, qt.Equals, types.StatusCompleted)
	c.Assert(res.ResponseCode, qt.Equals, "000")
	c.Assert(res.AccountName, qt.Equals, "EMEKA ADEBAYO")
	c.Assert(res.SessionID, qt.Not(qt.Equals), "")

	// the resolved enquiry is queryable like any transaction
	var detail TransactionDetail
	path := EndpointWithParam(TransactionEndpoint, ReferenceURLParam, "REF-NEC-1")
	status = ta.do(t, http.MethodGet, path, testAPIKey, nil, &detail)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(detail.Transaction.Status, qt.Equals, types.StatusCompleted)
	c.Assert(detail.Transaction.DestAccountName, qt.Equals, "EMEKA ADEBAYO")
	c.Assert(detail.Events, qt.HasLen, 1)
	// enquiry sent, name resolved, completed
	c.Assert(detail.AuditTrail, qt.HasLen, 3)
}

func TestEnquiryRejected(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(t)

	ta.stub.ScriptCode(testutil.OpNEC, "107")

	var res engine.SubmitResult
	status := ta.do(t, http.MethodPost, EnquiryEndpoint, testAPIKey, enquiryRequest("REF-NEC-2"), &res)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(res.Status, qt.Equals, types.StatusFailed)
	c.Assert(res.ResponseCode, qt.Equals, "107")
}

func TestEnquiryGatewayDown(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(t)

	ta.stub.Close()

	var reply errorReply
	status := ta.do(t, http.MethodPost, EnquiryEndpoint, testAPIKey, enquiryRequest("REF-NEC-3"), &reply)
	c.Assert(status, qt.Equals, http.StatusBadGateway)
	c.Assert(reply.Code, qt.Equals, ErrGatewayTransport.Code)

	// the record stays pending for the deadline sweep
	tx, err := ta.storage.TransactionByReference(testInstID, "REF-NEC-3")
	c.Assert(err, qt.IsNil)
	c.Assert(tx.Status, qt.Equals, types.StatusNECPending)
}

func TestSubmissionValidation(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(t)

	var reply errorReply

	req := enquiryRequest("")
	status := ta.do(t, http.MethodPost, EnquiryEndpoint, testAPIKey, req, &reply)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(reply.Code, qt.Equals, ErrInvalidSubmission.Code)

	req = enquiryRequest("REF-VAL-1")
	req.DestBankCode = "000001"
	status = ta.do(t, http.MethodPost, EnquiryEndpoint, testAPIKey, req, &reply)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(reply.Code, qt.Equals, ErrUnknownParticipant.Code)

	tr := transferRequest("REF-VAL-2")
	tr.Amount = 0
	status = ta.do(t, http.MethodPost, TransferEndpoint, testAPIKey, tr, &reply)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(reply.Code, qt.Equals, ErrInvalidSubmission.Code)
}

func TestMalformedBody(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(t)

	req, err := http.NewRequest(http.MethodPost, ta.srv.URL+TransferEndpoint,
		strings.NewReader(`{"referenceNumber": `))
	c.Assert(err, qt.IsNil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	resp, err := http.DefaultClient.Do(req)
	c.Assert(err, qt.IsNil)
	defer func() { _ = resp.Body.Close() }()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusBadRequest)
}

func TestDuplicateReference(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(t)

	var res engine.SubmitResult
	status := ta.do(t, http.MethodPost, EnquiryEndpoint, testAPIKey, enquiryRequest("REF-DUP-1"), &res)
	c.Assert(status, qt.Equals, http.StatusOK)

	var reply errorReply
	status = ta.do(t, http.MethodPost, EnquiryEndpoint, testAPIKey, enquiryRequest("REF-DUP-1"), &reply)
	c.Assert(status, qt.Equals, http.StatusConflict)
	c.Assert(reply.Code, qt.Equals, ErrDuplicateReference.Code)
}

func TestTransferEndpoint(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(t)

	var res engine.SubmitResult
	status := ta.do(t, http.MethodPost, TransferEndpoint, testAPIKey, transferRequest("REF-FT-1"), &res)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(res.Status, qt.Equals, types.StatusFTDPending)
	c.Assert(res.ResponseCode, qt.Equals, "000")
	c.Assert(res.TransactionID, qt.Not(qt.Equals), "")

	// the debit leg is fired asynchronously after the acknowledgement
	waitFor(t, func() bool { return ta.stub.CallCount(testutil.OpFTD) == 1 })

	wire := ta.stub.LastRequest(testutil.OpFTD)
	c.Assert(wire["amount"], qt.Equals, "000000250000")
	c.Assert(wire["originBank"], qt.Equals, srcBank)
	c.Assert(wire["destBank"], qt.Equals, destBank)

	var detail TransactionDetail
	path := EndpointWithParam(TransactionEndpoint, ReferenceURLParam, "REF-FT-1")
	status = ta.do(t, http.MethodGet, path, testAPIKey, nil, &detail)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(detail.Transaction.Status, qt.Equals, types.StatusFTDPending)
	c.Assert(detail.Transaction.Amount, qt.Equals, types.Amount(250000))
	c.Assert(detail.Events, qt.HasLen, 1)
	c.Assert(detail.Events[0].Seq, qt.Equals, types.SeqFTDRequest)
	c.Assert(detail.AuditTrail, qt.HasLen, 1)
}

func TestTransactionEventsEndpoint(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(t)

	var res engine.SubmitResult
	status := ta.do(t, http.MethodPost, TransferEndpoint, testAPIKey, transferRequest("REF-FT-2"), &res)
	c.Assert(status, qt.Equals, http.StatusOK)
	waitFor(t, func() bool { return ta.stub.CallCount(testutil.OpFTD) == 1 })

	var events []*types.GatewayEvent
	path := EndpointWithParam(TransactionEventsEndpoint, ReferenceURLParam, "REF-FT-2")
	status = ta.do(t, http.MethodGet, path, testAPIKey, nil, &events)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(events, qt.HasLen, 1)
	c.Assert(events[0].Type, qt.Equals, types.EventFTDRequest)
}

func TestTransactionNotFound(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(t)

	var reply errorReply
	path := EndpointWithParam(TransactionEndpoint, ReferenceURLParam, "REF-MISSING")
	status := ta.do(t, http.MethodGet, path, testAPIKey, nil, &reply)
	c.Assert(status, qt.Equals, http.StatusNotFound)
	c.Assert(reply.Code, qt.Equals, ErrTransactionNotFound.Code)
}

func TestTransactionTSQEndpoint(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(t)

	var res engine.SubmitResult
	status := ta.do(t, http.MethodPost, TransferEndpoint, testAPIKey, transferRequest("REF-TSQ-1"), &res)
	c.Assert(status, qt.Equals, http.StatusOK)
	waitFor(t, func() bool { return ta.stub.CallCount(testutil.OpFTD) == 1 })

	ta.stub.ScriptTSQ("000", "990")

	var tsq engine.TSQResult
	path := EndpointWithParam(TransactionTSQEndpoint, ReferenceURLParam, "REF-TSQ-1")
	status = ta.do(t, http.MethodPost, path, testAPIKey, nil, &tsq)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(tsq.Live, qt.IsTrue)
	c.Assert(tsq.Leg, qt.Equals, types.TSQTypeFTD)
	c.Assert(tsq.ResponseCode, qt.Equals, "000")
	c.Assert(tsq.StatusCode, qt.Equals, "990")
	c.Assert(tsq.Status, qt.Equals, types.StatusFTDPending)
}

func TestTSQTerminalSkipsGateway(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(t)

	var res engine.SubmitResult
	status := ta.do(t, http.MethodPost, EnquiryEndpoint, testAPIKey, enquiryRequest("REF-TSQ-2"), &res)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(res.Status, qt.Equals, types.StatusCompleted)

	var tsq engine.TSQResult
	path := EndpointWithParam(TransactionTSQEndpoint, ReferenceURLParam, "REF-TSQ-2")
	status = ta.do(t, http.MethodPost, path, testAPIKey, nil, &tsq)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(tsq.Live, qt.IsFalse)
	c.Assert(tsq.Status, qt.Equals, types.StatusCompleted)
	c.Assert(ta.stub.CallCount(testutil.OpTSQ), qt.Equals, 0)
}
