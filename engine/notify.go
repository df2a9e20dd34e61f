package engine

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/vireopay/fundflow/gateway"
	"github.com/vireopay/fundflow/log"
	"github.com/vireopay/fundflow/storage"
	"github.com/vireopay/fundflow/types"
)

// enqueueTerminalCallback owes the institution a webhook about a finished
// transfer. Name enquiries resolve synchronously and never produce one.
// The enqueue is idempotent per transaction, so every terminal path can
// call this without double-notifying.
func (e *Engine) enqueueTerminalCallback(tx *types.Transaction) {
	if tx == nil || tx.Type == types.TxTypeNEC || !tx.IsTerminal() {
		return
	}
	url := tx.CallbackURL
	if url == "" {
		inst, err := e.reg.Institution(tx.InstitutionID)
		if err != nil {
			log.Warnw("institution unavailable for terminal webhook",
				"tx", tx.ID, "institution", tx.InstitutionID, "error", err)
			return
		}
		url = inst.WebhookURL
	}
	if url == "" {
		log.Debugw("institution has no webhook URL, skipping notification", "tx", tx.ID)
		return
	}

	payload, err := json.Marshal(terminalPayload(tx))
	if err != nil {
		log.Errorw(err, "failed to encode client callback payload")
		return
	}
	cb := &types.ClientCallback{
		ID:            uuid.New().String(),
		TxID:          tx.ID,
		InstitutionID: tx.InstitutionID,
		Reference:     tx.Reference,
		URL:           url,
		Payload:       payload,
		MaxAttempts:   e.cfg.Webhook.MaxAttempts,
	}
	switch err := e.stg.EnqueueClientCallback(cb); {
	case err == nil:
		log.Debugw("client callback enqueued", "tx", tx.ID, "reference", tx.Reference)
	case errors.Is(err, storage.ErrKeyAlreadyExists):
		// already owed from an earlier terminal step
	default:
		log.Errorw(err, "failed to enqueue client callback")
	}
}

// terminalPayload builds the webhook body for a terminal transaction.
func terminalPayload(tx *types.Transaction) *types.ClientCallbackPayload {
	code, message, status := terminalOutcome(tx)
	return &types.ClientCallbackPayload{
		SrcBankCode:                tx.SrcBankCode,
		SrcAccountNumber:           tx.SrcAccountNumber,
		ReferenceNumber:            tx.Reference,
		RequestTimestamp:           tx.CreatedAt.Format(types.CallbackTimeLayout),
		SessionID:                  tx.SessionID,
		DestBankCode:               tx.DestBankCode,
		DestAccountNumber:          tx.DestAccountNumber,
		Narration:                  tx.Narration,
		ResponseCode:               code,
		ResponseMessage:            message,
		Status:                     status,
		RequiresManualIntervention: tx.ManualIntervention,
	}
}

// terminalOutcome derives the response code, human message and client
// status reported for a terminal transaction. The code is the action code
// of the leg that decided the outcome.
func terminalOutcome(tx *types.Transaction) (code, message, status string) {
	switch tx.Status {
	case types.StatusCompleted:
		if tx.Type == types.TxTypeNEC {
			return orDefault(tx.NECActionCode, gateway.ActionSuccess),
				orDefault(tx.NECResponseMessage, "account name resolved"),
				types.ClientStatusSuccessful
		}
		return orDefault(tx.FTCActionCode, gateway.ActionSuccess),
			orDefault(tx.FTCResponseMessage, "transaction completed successfully"),
			types.ClientStatusSuccessful

	case types.StatusTimeout:
		return gateway.ActionTimeout, "transaction timed out before completion", types.ClientStatusTimeout

	case types.StatusFailed:
		switch {
		case tx.ManualIntervention:
			return orDefault(tx.ReversalActionCode, orDefault(tx.FTCActionCode, gateway.ActionSystemMalfunc)),
				"transfer failed and automatic reversal was unsuccessful, manual intervention required",
				types.ClientStatusFailed
		case tx.ReversalRequired:
			return orDefault(tx.FTCActionCode, gateway.ActionSystemMalfunc),
				orDefault(tx.FTCResponseMessage, "credit leg failed") + "; debit has been reversed",
				types.ClientStatusFailed
		case tx.Type == types.TxTypeNEC:
			return orDefault(tx.NECActionCode, gateway.ActionSystemMalfunc),
				orDefault(tx.NECResponseMessage, "name enquiry failed"),
				types.ClientStatusFailed
		default:
			return orDefault(tx.FTDActionCode, gateway.ActionSystemMalfunc),
				orDefault(tx.FTDResponseMessage, "debit leg failed"),
				types.ClientStatusFailed
		}
	}
	return "", "", ""
}

// orDefault returns s, or fallback when s is empty.
func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
