package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"

	"github.com/vireopay/fundflow/db"
	"github.com/vireopay/fundflow/db/metadb"
	"github.com/vireopay/fundflow/gateway"
	"github.com/vireopay/fundflow/internal/testutil"
	"github.com/vireopay/fundflow/registry"
	"github.com/vireopay/fundflow/storage"
	"github.com/vireopay/fundflow/types"
	"github.com/vireopay/fundflow/webhook"
)

const (
	testBankCode    = "000099"
	testInstitution = "inst-1"
	srcBank         = "000014"
	destBank        = "000013"
)

// testEnv bundles an engine with its gateway stub, webhook sink and the
// shared storage so tests can drive the worker tick functions directly.
type testEnv struct {
	*Engine
	stg  *storage.Storage
	stub *testutil.GatewayStub
	sink *testutil.WebhookSink
}

func newTestEngine(t *testing.T) *testEnv {
	return newTestEngineTuned(t, nil)
}

func newTestEngineTuned(t *testing.T, tune func(*Config)) *testEnv {
	t.Helper()
	database, err := metadb.New(db.TypePebble, filepath.Join(t.TempDir(), "db"))
	qt.Assert(t, err, qt.IsNil)
	stg := storage.New(database)
	t.Cleanup(stg.Close)

	stub := testutil.NewGatewayStub(t)
	sink := testutil.NewWebhookSink(t)

	reg := registry.New(stg)
	qt.Assert(t, reg.SetInstitution(&types.Institution{
		ID:            testInstitution,
		Name:          "Vireo Microfinance",
		APIKey:        "test-api-key",
		WebhookURL:    sink.URL(),
		WebhookSecret: "whsec-test",
		Active:        true,
	}), qt.IsNil)
	qt.Assert(t, reg.SetParticipant(&types.Participant{
		BankCode: srcBank, BankName: "First City Bank", Active: true,
	}), qt.IsNil)
	qt.Assert(t, reg.SetParticipant(&types.Participant{
		BankCode: destBank, BankName: "Unity Trust Bank", Active: true,
	}), qt.IsNil)

	cfg := DefaultConfig()
	cfg.BankCode = testBankCode
	// reconciliation and webhook retries are immediately due in tests
	cfg.TSQDelay = 0
	cfg.Webhook.BaseDelay = time.Millisecond
	if tune != nil {
		tune(&cfg)
	}

	client := gateway.New(gateway.Config{
		BaseURL:     stub.URL(),
		CallbackURL: "http://node.test/v1/gateway/callback",
	})
	eng, err := New(cfg, stg, client, webhook.NewNotifier(5*time.Second), reg)
	qt.Assert(t, err, qt.IsNil)

	return &testEnv{Engine: eng, stg: stg, stub: stub, sink: sink}
}

// transfer builds a valid funds transfer submission.
func transfer(reference string) *types.Transaction {
	return &types.Transaction{
		Reference:         reference,
		InstitutionID:     testInstitution,
		SrcBankCode:       srcBank,
		SrcAccountNumber:  "0112345678",
		SrcAccountName:    "ADAEZE OKONKWO",
		DestBankCode:      destBank,
		DestAccountNumber: "0298765432",
		DestAccountName:   "EMEKA ADEBAYO",
		Narration:         "invoice 2041",
		Amount:            types.Amount(250000),
	}
}

// enquiry builds a valid name enquiry submission.
func enquiry(reference string) *types.Transaction {
	tx := transfer(reference)
	tx.Amount = 0
	tx.DestAccountName = ""
	return tx
}

// submitTransfer accepts a transfer and waits for the debit request to
// reach the gateway stub.
func (env *testEnv) submitTransfer(t *testing.T, reference string) *types.Transaction {
	t.Helper()
	before := env.stub.CallCount(testutil.OpFTD)
	res, err := env.SubmitFT(context.Background(), transfer(reference))
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, res.Status, qt.Equals, types.StatusFTDPending)
	waitFor(t, func() bool { return env.stub.CallCount(testutil.OpFTD) > before })
	return env.tx(t, res.TransactionID)
}

// completeTransfer drives a fresh transfer through both legs to COMPLETED.
func (env *testEnv) completeTransfer(t *testing.T, reference string) *types.Transaction {
	t.Helper()
	tx := env.submitTransfer(t, reference)
	env.push(t, tx.SessionID, gateway.FunctionFTD, "000", "Approved")
	env.processPendingCallbacks()
	env.processCreditQueue()
	tx = env.tx(t, tx.ID)
	env.push(t, tx.FTCSessionID, gateway.FunctionFTC, "000", "Approved")
	env.processPendingCallbacks()
	tx = env.tx(t, tx.ID)
	qt.Assert(t, tx.Status, qt.Equals, types.StatusCompleted)
	return tx
}

// push injects an asynchronous gateway callback the way the intake
// endpoint would persist it.
func (env *testEnv) push(t *testing.T, sessionID, functionCode, actionCode, message string) {
	t.Helper()
	payload := fmt.Sprintf(`{"sessionId":%q,"functionCode":%q,"actionCode":%q,"responseMessage":%q}`,
		sessionID, functionCode, actionCode, message)
	qt.Assert(t, env.stg.PushGatewayCallback(&types.GatewayCallback{
		ID:              uuid.New().String(),
		SessionID:       sessionID,
		FunctionCode:    functionCode,
		ActionCode:      actionCode,
		ResponsePayload: json.RawMessage(payload),
	}), qt.IsNil)
}

func (env *testEnv) tx(t *testing.T, id string) *types.Transaction {
	t.Helper()
	tx, err := env.stg.Transaction(id)
	qt.Assert(t, err, qt.IsNil)
	return tx
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

func TestNewValidatesDependencies(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)

	cfg := DefaultConfig()
	cfg.BankCode = testBankCode

	_, err := New(cfg, nil, env.gw, env.hooks, env.reg)
	c.Assert(err, qt.ErrorMatches, "storage cannot be nil")
	_, err = New(cfg, env.stg, nil, env.hooks, env.reg)
	c.Assert(err, qt.ErrorMatches, "gateway client cannot be nil")
	_, err = New(cfg, env.stg, env.gw, nil, env.reg)
	c.Assert(err, qt.ErrorMatches, "webhook notifier cannot be nil")
	_, err = New(cfg, env.stg, env.gw, env.hooks, nil)
	c.Assert(err, qt.ErrorMatches, "registry cannot be nil")

	cfg.BankCode = "12345"
	_, err = New(cfg, env.stg, env.gw, env.hooks, env.reg)
	c.Assert(err, qt.ErrorMatches, `bank code must be 6 digits, got "12345"`)
}

func TestStartStop(t *testing.T) {
	c := qt.New(t)
	env := newTestEngine(t)

	c.Assert(env.Start(context.Background()), qt.IsNil)
	// workers come up, then shut down cleanly
	time.Sleep(50 * time.Millisecond)
	c.Assert(env.Stop(), qt.IsNil)

	// Stop again is a no-op
	c.Assert(env.Stop(), qt.IsNil)
}
