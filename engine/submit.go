package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vireopay/fundflow/gateway"
	"github.com/vireopay/fundflow/log"
	"github.com/vireopay/fundflow/metrics"
	"github.com/vireopay/fundflow/storage"
	"github.com/vireopay/fundflow/types"
)

// SubmitResult is the synchronous answer to a name enquiry or funds
// transfer submission.
type SubmitResult struct {
	TransactionID   string         `json:"transactionId"`
	Reference       string         `json:"referenceNumber"`
	SessionID       string         `json:"sessionId"`
	Status          types.TxStatus `json:"status"`
	ResponseCode    string         `json:"responseCode"`
	ResponseMessage string         `json:"responseMessage,omitempty"`
	// AccountName is the resolved payee name of a successful enquiry.
	AccountName string `json:"destAccountName,omitempty"`
}

// SubmitNEC performs a synchronous name enquiry: the transaction record is
// created, the gateway asked, and the outcome settled before returning. A
// transport failure leaves the record pending for the deadline sweep and
// surfaces ErrGatewayUnavailable.
func (e *Engine) SubmitNEC(ctx context.Context, tx *types.Transaction) (*SubmitResult, error) {
	if err := e.validateSubmission(tx, false); err != nil {
		return nil, err
	}
	if err := e.createTransaction(tx, types.TxTypeNEC, e.cfg.NECTimeout); err != nil {
		return nil, err
	}

	req := e.gw.NECRequest(tx)
	e.recordEvent(requestEvent(tx.ID, types.SeqNECRequest, types.EventNECRequest, req))
	if _, err := e.stg.UpdateTransactionStatus(tx.ID, types.StatusNECPending,
		"name enquiry sent", types.SeverityInfo); err != nil {
		return nil, err
	}

	resp, err := e.gw.NameEnquiry(ctx, req)
	if err != nil {
		metrics.GatewayRequests.WithLabelValues("nec", "transport_error").Inc()
		log.Warnw("name enquiry transport failure", "tx", tx.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	e.recordEvent(responseEvent(tx.ID, types.SeqNECRequest, types.EventNECRequest, resp))
	metrics.GatewayRequests.WithLabelValues("nec", gatewayOutcome(resp.ActionCode)).Inc()

	// The gateway is inconsistent about where the enquiry reference
	// travels; fall back to the session id, which correlates equally well.
	enquiryRef := orDefault(resp.NameEnquiryRef, orDefault(resp.SessionID, tx.SessionID))
	if _, err := e.stg.UpdateTransaction(tx.ID,
		storage.TxUpdateNameEnquiryResult(enquiryRef, resp.ActionCode, resp.ResponseMessage),
		func(t *types.Transaction) error {
			if resp.AccountName != "" {
				t.DestAccountName = resp.AccountName
			}
			return nil
		},
	); err != nil {
		return nil, err
	}

	var status types.TxStatus
	if gateway.Success(resp.ActionCode) {
		if _, err := e.finish(tx.ID, types.StatusNECSuccess, types.StatusCompleted,
			"payee name resolved", types.SeverityInfo); err != nil {
			return nil, err
		}
		status = types.StatusCompleted
	} else {
		reason := fmt.Sprintf("name enquiry rejected: %s", gatewayReason(resp))
		if _, err := e.finish(tx.ID, types.StatusNECFailed, types.StatusFailed,
			reason, types.SeverityInfo); err != nil {
			return nil, err
		}
		status = types.StatusFailed
	}

	return &SubmitResult{
		TransactionID:   tx.ID,
		Reference:       tx.Reference,
		SessionID:       tx.SessionID,
		Status:          status,
		ResponseCode:    resp.ActionCode,
		ResponseMessage: resp.ResponseMessage,
		AccountName:     resp.AccountName,
	}, nil
}

// SubmitFT accepts a funds transfer and fires the debit leg without
// waiting for it. The caller gets an acknowledgement; the outcome arrives
// later on the institution webhook.
func (e *Engine) SubmitFT(_ context.Context, tx *types.Transaction) (*SubmitResult, error) {
	if err := e.validateSubmission(tx, true); err != nil {
		return nil, err
	}
	if err := e.createTransaction(tx, types.TxTypeFT, e.cfg.FTTimeout); err != nil {
		return nil, err
	}
	if _, err := e.stg.UpdateTransactionStatus(tx.ID, types.StatusFTDPending,
		"debit leg queued", types.SeverityInfo); err != nil {
		return nil, err
	}

	// The debit leg runs on the engine context: cancelling the submission
	// request must not abort a transfer the caller was already promised.
	go e.submitDebitLeg(tx.ID)

	return &SubmitResult{
		TransactionID:   tx.ID,
		Reference:       tx.Reference,
		SessionID:       tx.SessionID,
		Status:          types.StatusFTDPending,
		ResponseCode:    gateway.ActionSuccess,
		ResponseMessage: "transfer accepted for processing",
	}, nil
}

// submitDebitLeg sends the FTD request for a freshly accepted transfer.
// Only an immediate conclusive rejection settles the transaction here;
// everything else waits for the gateway callback, guarded by the deadline
// sweep.
func (e *Engine) submitDebitLeg(txID string) {
	tx, err := e.stg.Transaction(txID)
	if err != nil {
		log.Errorw(err, fmt.Sprintf("failed to load transaction %s for debit submission", txID))
		return
	}
	if tx.Status != types.StatusFTDPending {
		return
	}

	req := e.gw.FTDRequest(tx)
	e.recordEvent(requestEvent(tx.ID, types.SeqFTDRequest, types.EventFTDRequest, req))

	resp, err := e.gw.FundTransferDebit(e.workerCtx(), req)
	if err != nil {
		metrics.GatewayRequests.WithLabelValues("ftd", "transport_error").Inc()
		log.Warnw("debit submission transport failure, awaiting reconciliation",
			"tx", tx.ID, "error", err)
		return
	}
	e.recordEvent(responseEvent(tx.ID, types.SeqFTDRequest, types.EventFTDRequest, resp))
	metrics.GatewayRequests.WithLabelValues("ftd", gatewayOutcome(resp.ActionCode)).Inc()

	if gateway.ConclusiveFailure(resp.ActionCode) {
		reason := fmt.Sprintf("debit rejected: %s", gatewayReason(resp))
		if _, err := e.stg.UpdateTransaction(tx.ID,
			storage.TxUpdateFTDResult(resp.ActionCode, resp.ResponseMessage)); err != nil {
			log.Errorw(err, "failed to record debit rejection")
			return
		}
		if _, err := e.finish(tx.ID, types.StatusFTDFailed, types.StatusFailed,
			reason, types.SeverityInfo); err != nil {
			log.Errorw(err, "failed to settle rejected debit")
		}
	}
	// Success or inconclusive acknowledgements both mean: wait for the
	// asynchronous callback.
}

// TSQResult is the answer to an on-demand status query. When the
// transaction is already terminal the stored outcome is echoed without
// contacting the gateway; otherwise the gateway's live answer is attached.
type TSQResult struct {
	TransactionID   string         `json:"transactionId"`
	Reference       string         `json:"referenceNumber"`
	SessionID       string         `json:"sessionId"`
	Status          types.TxStatus `json:"status"`
	Leg             types.TSQType  `json:"leg,omitempty"`
	ResponseCode    string         `json:"responseCode"`
	StatusCode      string         `json:"statusCode,omitempty"`
	ResponseMessage string         `json:"responseMessage,omitempty"`
	// Live reports whether the gateway was queried for this answer.
	Live bool `json:"live"`
}

// SubmitTSQ answers a status enquiry about a previously submitted
// transaction. It never mutates state: reconciliation stays with the
// background workers.
func (e *Engine) SubmitTSQ(ctx context.Context, institutionID, reference string) (*TSQResult, error) {
	tx, err := e.stg.TransactionByReference(institutionID, reference)
	if err != nil {
		return nil, err
	}
	res := &TSQResult{
		TransactionID: tx.ID,
		Reference:     tx.Reference,
		SessionID:     tx.SessionID,
		Status:        tx.Status,
	}
	if tx.IsTerminal() {
		code, message, _ := terminalOutcome(tx)
		res.ResponseCode = code
		res.ResponseMessage = message
		return res, nil
	}

	leg := queryLeg(tx.Status)
	req := e.gw.TSQRequest(tx, leg)
	resp, err := e.gw.StatusQuery(ctx, req)
	if err != nil {
		metrics.GatewayRequests.WithLabelValues("tsq", "transport_error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	metrics.GatewayRequests.WithLabelValues("tsq", gatewayOutcome(resp.ActionCode)).Inc()

	res.Live = true
	res.Leg = leg
	res.ResponseCode = resp.ActionCode
	res.StatusCode = resp.StatusCode
	res.ResponseMessage = resp.ResponseMessage
	return res, nil
}

// queryLeg picks the leg whose outcome an on-demand status query should
// target given the current lifecycle state.
func queryLeg(status types.TxStatus) types.TSQType {
	switch status {
	case types.StatusFTCPending, types.StatusFTCSuccess, types.StatusFTCFailed, types.StatusFTCTsq:
		return types.TSQTypeFTC
	case types.StatusReversalPending, types.StatusReversalSuccess, types.StatusReversalFailed:
		return types.TSQTypeReversal
	default:
		return types.TSQTypeFTD
	}
}

// createTransaction mints the debit leg session pair, stamps the lifecycle
// fields and persists the new record.
func (e *Engine) createTransaction(tx *types.Transaction, typ types.TransactionType, deadline time.Duration) error {
	sessionID, trackingNumber, err := e.stg.NextSessionPair(e.cfg.BankCode)
	if err != nil {
		return fmt.Errorf("failed to mint session pair: %w", err)
	}
	now := time.Now()
	tx.ID = uuid.New().String()
	tx.Type = typ
	tx.Status = types.StatusInitiated
	tx.SessionID = sessionID
	tx.TrackingNumber = trackingNumber
	tx.CreatedAt = now
	tx.TimeoutAt = now.Add(deadline)
	if err := e.stg.CreateTransaction(tx); err != nil {
		return err
	}
	metrics.TransactionsCreated.WithLabelValues(string(typ)).Inc()
	log.Infow("transaction accepted",
		"tx", tx.ID, "type", string(typ), "reference", tx.Reference, "session", sessionID)
	return nil
}

// validateSubmission checks the required fields and that both banks are
// active gateway participants. Transfers additionally need a source
// account and a positive amount.
func (e *Engine) validateSubmission(tx *types.Transaction, transfer bool) error {
	if tx == nil {
		return fmt.Errorf("%w: empty payload", ErrInvalidSubmission)
	}
	switch {
	case tx.Reference == "":
		return fmt.Errorf("%w: reference number is required", ErrInvalidSubmission)
	case tx.InstitutionID == "":
		return fmt.Errorf("%w: institution is required", ErrInvalidSubmission)
	case tx.SrcBankCode == "" || tx.DestBankCode == "":
		return fmt.Errorf("%w: source and destination bank codes are required", ErrInvalidSubmission)
	case tx.DestAccountNumber == "":
		return fmt.Errorf("%w: destination account number is required", ErrInvalidSubmission)
	}
	if transfer {
		if tx.SrcAccountNumber == "" {
			return fmt.Errorf("%w: source account number is required", ErrInvalidSubmission)
		}
		if tx.Amount <= 0 {
			return fmt.Errorf("%w: amount must be positive", ErrInvalidSubmission)
		}
	}
	return e.reg.ValidateParticipants(tx.SrcBankCode, tx.DestBankCode)
}

// gatewayOutcome maps an action code onto the metric outcome label.
func gatewayOutcome(code string) string {
	switch {
	case gateway.Success(code):
		return "success"
	case gateway.Inconclusive(code):
		return "inconclusive"
	default:
		return "failure"
	}
}
