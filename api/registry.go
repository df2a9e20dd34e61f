package api

import (
	"encoding/json"
	"net/http"

	"github.com/vireopay/fundflow/log"
	"github.com/vireopay/fundflow/types"
)

// createInstitution registers or updates a member institution
// POST /v1/institutions
func (a *API) createInstitution(w http.ResponseWriter, r *http.Request) {
	inst := &types.Institution{}
	if err := json.NewDecoder(r.Body).Decode(inst); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	switch {
	case inst.ID == "":
		ErrMissingField.With("id").Write(w)
		return
	case inst.Name == "":
		ErrMissingField.With("name").Write(w)
		return
	case inst.APIKey == "":
		ErrMissingField.With("apiKey").Write(w)
		return
	}
	if err := a.registry.SetInstitution(inst); err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	log.Infow("institution registered",
		"institution", inst.ID, "name", inst.Name, "active", inst.Active)
	httpWriteJSON(w, redactInstitution(inst))
}

// listInstitutions lists every registered institution
// GET /v1/institutions
func (a *API) listInstitutions(w http.ResponseWriter, _ *http.Request) {
	insts, err := a.registry.ListInstitutions()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	out := make([]*types.Institution, 0, len(insts))
	for _, inst := range insts {
		out = append(out, redactInstitution(inst))
	}
	httpWriteJSON(w, out)
}

// createParticipant registers or updates a participant bank
// POST /v1/participants
func (a *API) createParticipant(w http.ResponseWriter, r *http.Request) {
	p := &types.Participant{}
	if err := json.NewDecoder(r.Body).Decode(p); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	switch {
	case p.BankCode == "":
		ErrMissingField.With("bankCode").Write(w)
		return
	case p.BankName == "":
		ErrMissingField.With("bankName").Write(w)
		return
	}
	if err := a.registry.SetParticipant(p); err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	log.Infow("participant registered",
		"bankCode", p.BankCode, "bankName", p.BankName, "active", p.Active)
	httpWriteJSON(w, p)
}

// listParticipants lists every participant bank
// GET /v1/participants
func (a *API) listParticipants(w http.ResponseWriter, _ *http.Request) {
	parts, err := a.registry.ListParticipants()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, parts)
}

// redactInstitution strips the credentials from an institution record
// before it leaves the node.
func redactInstitution(inst *types.Institution) *types.Institution {
	clean := *inst
	clean.APIKey = ""
	clean.WebhookSecret = ""
	return &clean
}
