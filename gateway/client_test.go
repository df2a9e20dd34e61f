package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vireopay/fundflow/types"
)

func testTransfer() *types.Transaction {
	return &types.Transaction{
		ID:                     "tx-1",
		Reference:              "REF-2041",
		Type:                   types.TxTypeFT,
		SrcBankCode:            "000014",
		SrcAccountNumber:       "0112345678",
		SrcAccountName:         "ADAEZE OKONKWO",
		DestBankCode:           "000013",
		DestAccountNumber:      "0298765432",
		DestAccountName:        "EMEKA ADEBAYO",
		Narration:              "invoice 2041",
		Amount:                 types.Amount(100050),
		SessionID:              "000014260824120000000000000001",
		TrackingNumber:         "000000000001",
		FTCSessionID:           "000014260824120000000000000002",
		FTCTrackingNumber:      "000000000002",
		ReversalSessionID:      "000014260824120000000000000003",
		ReversalTrackingNumber: "000000000003",
	}
}

func TestDirectionRules(t *testing.T) {
	c := qt.New(t)
	client := New(Config{BaseURL: "http://gateway", CallbackURL: "http://node/v1/gateway/callback"})
	tx := testTransfer()

	ftd := client.FTDRequest(tx)
	c.Assert(ftd.OriginBank, qt.Equals, "000014")
	c.Assert(ftd.DestBank, qt.Equals, "000013")
	c.Assert(ftd.AccountToDebit, qt.Equals, "0112345678")
	c.Assert(ftd.AccountToCredit, qt.Equals, "0298765432")
	c.Assert(ftd.SessionID, qt.Equals, tx.SessionID)
	c.Assert(ftd.FunctionCode, qt.Equals, FunctionFTD)
	c.Assert(ftd.Amount, qt.Equals, "000000100050")
	c.Assert(ftd.CallbackURL, qt.Equals, "http://node/v1/gateway/callback")

	// Credit leg swaps banks only; accounts keep the debit orientation.
	ftc := client.FTCRequest(tx)
	c.Assert(ftc.OriginBank, qt.Equals, "000013")
	c.Assert(ftc.DestBank, qt.Equals, "000014")
	c.Assert(ftc.AccountToDebit, qt.Equals, "0112345678")
	c.Assert(ftc.AccountToCredit, qt.Equals, "0298765432")
	c.Assert(ftc.SessionID, qt.Equals, tx.FTCSessionID)
	c.Assert(ftc.TrackingNumber, qt.Equals, tx.FTCTrackingNumber)
	c.Assert(ftc.FunctionCode, qt.Equals, FunctionFTC)

	// Reversal mirrors everything and keeps the FTD function code.
	rev := client.ReversalRequest(tx)
	c.Assert(rev.OriginBank, qt.Equals, "000013")
	c.Assert(rev.DestBank, qt.Equals, "000014")
	c.Assert(rev.AccountToDebit, qt.Equals, "0298765432")
	c.Assert(rev.AccountToCredit, qt.Equals, "0112345678")
	c.Assert(rev.NameToDebit, qt.Equals, "EMEKA ADEBAYO")
	c.Assert(rev.NameToCredit, qt.Equals, "ADAEZE OKONKWO")
	c.Assert(rev.SessionID, qt.Equals, tx.ReversalSessionID)
	c.Assert(rev.FunctionCode, qt.Equals, FunctionFTD)
	c.Assert(rev.Narration, qt.Equals, "REVERSAL: invoice 2041")
}

func TestTSQRequestTargetsLeg(t *testing.T) {
	c := qt.New(t)
	client := New(Config{BaseURL: "http://gateway"})
	tx := testTransfer()

	for _, tc := range []struct {
		leg     types.TSQType
		session string
	}{
		{types.TSQTypeFTD, tx.SessionID},
		{types.TSQTypeFTC, tx.FTCSessionID},
		{types.TSQTypeReversal, tx.ReversalSessionID},
	} {
		req := client.TSQRequest(tx, tc.leg)
		c.Assert(req.SessionID, qt.Equals, tc.session, qt.Commentf("leg %s", tc.leg))
		c.Assert(req.FunctionCode, qt.Equals, FunctionTSQDefault)
		c.Assert(req.Amount, qt.Equals, "000000100050")
	}
}

func TestNECRequestZeroAmount(t *testing.T) {
	c := qt.New(t)
	client := New(Config{BaseURL: "http://gateway"})
	req := client.NECRequest(testTransfer())
	c.Assert(req.Amount, qt.Equals, "000000000000")
	c.Assert(req.FunctionCode, qt.Equals, FunctionNEC)
	c.Assert(req.DestBank, qt.Equals, "000013")
	c.Assert(req.AccountToCredit, qt.Equals, "0298765432")
}

func TestParseResponseSpellings(t *testing.T) {
	c := qt.New(t)

	camel, err := ParseResponse([]byte(`{"actionCode":"000","responseMessage":"Approved","sessionId":"s1","accountName":"EMEKA ADEBAYO"}`))
	c.Assert(err, qt.IsNil)
	c.Assert(camel.ActionCode, qt.Equals, "000")
	c.Assert(camel.ResponseMessage, qt.Equals, "Approved")
	c.Assert(camel.SessionID, qt.Equals, "s1")
	c.Assert(camel.AccountName, qt.Equals, "EMEKA ADEBAYO")

	snake, err := ParseResponse([]byte(`{"action_code":"990","response_message":"Timeout","session_id":"s2","status_code":"990","function_code":"241"}`))
	c.Assert(err, qt.IsNil)
	c.Assert(snake.ActionCode, qt.Equals, "990")
	c.Assert(snake.StatusCode, qt.Equals, "990")
	c.Assert(snake.SessionID, qt.Equals, "s2")
	c.Assert(snake.FunctionCode, qt.Equals, "241")

	// camelCase wins when both spellings are present
	both, err := ParseResponse([]byte(`{"actionCode":"000","action_code":"999"}`))
	c.Assert(err, qt.IsNil)
	c.Assert(both.ActionCode, qt.Equals, "000")

	_, err = ParseResponse([]byte(`not json`))
	c.Assert(err, qt.IsNotNil)
}

func TestInconclusiveClassification(t *testing.T) {
	c := qt.New(t)
	for _, code := range []string{"909", "912", "990", ""} {
		c.Assert(Inconclusive(code), qt.IsTrue, qt.Commentf("code %q", code))
		c.Assert(ConclusiveFailure(code), qt.IsFalse)
	}
	c.Assert(Inconclusive("000"), qt.IsFalse)
	c.Assert(Success("000"), qt.IsTrue)
	for _, code := range []string{"057", "051", "381", "999", "096"} {
		c.Assert(ConclusiveFailure(code), qt.IsTrue, qt.Commentf("code %q", code))
		c.Assert(Inconclusive(code), qt.IsFalse)
	}
}

func TestPostParsesNon2xxBody(t *testing.T) {
	c := qt.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		c.Assert(json.NewDecoder(r.Body).Decode(&req), qt.IsNil)
		c.Assert(req.FunctionCode, qt.Equals, FunctionFTD)
		w.WriteHeader(http.StatusBadRequest)
		_, err := w.Write([]byte(`{"actionCode":"057","responseMessage":"Insufficient funds"}`))
		c.Assert(err, qt.IsNil)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	tx := testTransfer()
	resp, err := client.FundTransferDebit(context.Background(), client.FTDRequest(tx))
	c.Assert(err, qt.IsNil)
	c.Assert(resp.ActionCode, qt.Equals, "057")
	c.Assert(resp.HTTPStatus, qt.Equals, http.StatusBadRequest)
	c.Assert(resp.Duration > 0, qt.IsTrue)
	c.Assert(string(resp.Raw), qt.Contains, "Insufficient funds")
}

func TestPostTransportError(t *testing.T) {
	c := qt.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	client := New(Config{BaseURL: srv.URL})
	tx := testTransfer()
	resp, err := client.NameEnquiry(context.Background(), client.NECRequest(tx))
	c.Assert(err, qt.IsNotNil)
	c.Assert(resp, qt.IsNil)
}

func TestPostUnparseableBody(t *testing.T) {
	c := qt.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	tx := testTransfer()
	_, err := client.StatusQuery(context.Background(), client.TSQRequest(tx, types.TSQTypeFTD))
	c.Assert(err, qt.IsNotNil)
}
