package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vireopay/fundflow/engine"
	"github.com/vireopay/fundflow/registry"
	"github.com/vireopay/fundflow/storage"
	"github.com/vireopay/fundflow/types"
)

// submitEnquiry resolves a payee name through the gateway
// POST /v1/enquiry
func (a *API) submitEnquiry(w http.ResponseWriter, r *http.Request, inst *types.Institution) {
	req := &EnquiryRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	res, err := a.engine.SubmitNEC(r.Context(), req.toTransaction(inst.ID))
	if err != nil {
		submissionError(err).Write(w)
		return
	}
	httpWriteJSON(w, res)
}

// submitTransfer accepts a funds transfer for asynchronous processing
// POST /v1/transfer
func (a *API) submitTransfer(w http.ResponseWriter, r *http.Request, inst *types.Institution) {
	req := &TransferRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	res, err := a.engine.SubmitFT(r.Context(), req.toTransaction(inst.ID))
	if err != nil {
		submissionError(err).Write(w)
		return
	}
	httpWriteJSON(w, res)
}

// transaction returns a transaction with its gateway events and audit trail
// GET /v1/transactions/{reference}
func (a *API) transaction(w http.ResponseWriter, r *http.Request, inst *types.Institution) {
	tx, err := a.storage.TransactionByReference(inst.ID, chi.URLParam(r, ReferenceURLParam))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			ErrTransactionNotFound.Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	events, err := a.storage.Events(tx.ID)
	if err != nil {
		ErrGenericInternalServerError.Withf("could not load events: %v", err).Write(w)
		return
	}
	trail, err := a.storage.AuditTrail(tx.ID)
	if err != nil {
		ErrGenericInternalServerError.Withf("could not load audit trail: %v", err).Write(w)
		return
	}
	httpWriteJSON(w, &TransactionDetail{
		Transaction: tx,
		Events:      events,
		AuditTrail:  trail,
	})
}

// transactionEvents returns the gateway events of a transaction
// GET /v1/transactions/{reference}/events
func (a *API) transactionEvents(w http.ResponseWriter, r *http.Request, inst *types.Institution) {
	tx, err := a.storage.TransactionByReference(inst.ID, chi.URLParam(r, ReferenceURLParam))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			ErrTransactionNotFound.Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	events, err := a.storage.Events(tx.ID)
	if err != nil {
		ErrGenericInternalServerError.Withf("could not load events: %v", err).Write(w)
		return
	}
	httpWriteJSON(w, events)
}

// transactionTSQ runs an on-demand status query for a transaction
// POST /v1/transactions/{reference}/tsq
func (a *API) transactionTSQ(w http.ResponseWriter, r *http.Request, inst *types.Institution) {
	res, err := a.engine.SubmitTSQ(r.Context(), inst.ID, chi.URLParam(r, ReferenceURLParam))
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			ErrTransactionNotFound.Write(w)
		case errors.Is(err, engine.ErrGatewayUnavailable):
			ErrGatewayTransport.WithErr(err).Write(w)
		default:
			ErrGenericInternalServerError.WithErr(err).Write(w)
		}
		return
	}
	httpWriteJSON(w, res)
}

// submissionError maps an engine submission failure onto the API error
// catalogue.
func submissionError(err error) Error {
	switch {
	case errors.Is(err, storage.ErrDuplicateReference):
		return ErrDuplicateReference
	case errors.Is(err, registry.ErrUnknownParticipant):
		return ErrUnknownParticipant.WithErr(err)
	case errors.Is(err, engine.ErrInvalidSubmission):
		return ErrInvalidSubmission.WithErr(err)
	case errors.Is(err, engine.ErrGatewayUnavailable):
		return ErrGatewayTransport.WithErr(err)
	default:
		return ErrGenericInternalServerError.WithErr(err)
	}
}
