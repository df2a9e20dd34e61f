package api

import (
	"github.com/vireopay/fundflow/types"
)

// EnquiryRequest is the body of a name enquiry submission.
type EnquiryRequest struct {
	ReferenceNumber   string `json:"referenceNumber"`
	SrcBankCode       string `json:"srcBankCode"`
	SrcAccountNumber  string `json:"srcAccountNumber,omitempty"`
	DestBankCode      string `json:"destBankCode"`
	DestAccountNumber string `json:"destAccountNumber"`
}

// toTransaction maps the request onto a fresh transaction record owned by
// the authenticated institution.
func (er *EnquiryRequest) toTransaction(institutionID string) *types.Transaction {
	return &types.Transaction{
		Reference:         er.ReferenceNumber,
		InstitutionID:     institutionID,
		SrcBankCode:       er.SrcBankCode,
		SrcAccountNumber:  er.SrcAccountNumber,
		DestBankCode:      er.DestBankCode,
		DestAccountNumber: er.DestAccountNumber,
	}
}

// TransferRequest is the body of a funds transfer submission.
type TransferRequest struct {
	ReferenceNumber   string       `json:"referenceNumber"`
	SrcBankCode       string       `json:"srcBankCode"`
	SrcAccountNumber  string       `json:"srcAccountNumber"`
	SrcAccountName    string       `json:"srcAccountName,omitempty"`
	DestBankCode      string       `json:"destBankCode"`
	DestAccountNumber string       `json:"destAccountNumber"`
	DestAccountName   string       `json:"destAccountName,omitempty"`
	Amount            types.Amount `json:"amount"`
	Narration         string       `json:"narration,omitempty"`
	// CallbackURL overrides the institution webhook URL for this
	// transaction's terminal notification.
	CallbackURL string `json:"callbackUrl,omitempty"`
}

// toTransaction maps the request onto a fresh transaction record owned by
// the authenticated institution.
func (tr *TransferRequest) toTransaction(institutionID string) *types.Transaction {
	return &types.Transaction{
		Reference:         tr.ReferenceNumber,
		InstitutionID:     institutionID,
		SrcBankCode:       tr.SrcBankCode,
		SrcAccountNumber:  tr.SrcAccountNumber,
		SrcAccountName:    tr.SrcAccountName,
		DestBankCode:      tr.DestBankCode,
		DestAccountNumber: tr.DestAccountNumber,
		DestAccountName:   tr.DestAccountName,
		Amount:            tr.Amount,
		Narration:         tr.Narration,
		CallbackURL:       tr.CallbackURL,
	}
}

// TransactionDetail is the full record returned by the transaction query
// endpoint: the stored transaction plus its gateway events and audit
// trail.
type TransactionDetail struct {
	Transaction *types.Transaction    `json:"transaction"`
	Events      []*types.GatewayEvent `json:"events"`
	AuditTrail  []*types.AuditRecord  `json:"auditTrail"`
}

// GatewayAck is the fixed acknowledgement body returned to the gateway
// for every callback delivery.
type GatewayAck struct {
	ResponseCode string `json:"responseCode"`
}
