package types

import (
	"time"
)

// TransactionType distinguishes name enquiries from funds transfers.
type TransactionType string

const (
	// TxTypeNEC is a standalone name enquiry.
	TxTypeNEC TransactionType = "NEC"
	// TxTypeFT is a funds transfer (debit leg, credit leg and optional
	// reversal).
	TxTypeFT TransactionType = "FT"
)

// Transaction is the root record of a funds transfer orchestration. It is
// created by the submission API and advanced through its lifecycle by the
// gateway callbacks and the background workers. Each gateway leg (debit,
// credit, reversal) carries its own session id and tracking number; a pair
// is never reused across legs.
type Transaction struct {
	ID            string          `json:"id"`
	Reference     string          `json:"reference"`
	InstitutionID string          `json:"institutionId"`
	Type          TransactionType `json:"type"`

	SrcBankCode       string `json:"srcBankCode"`
	SrcAccountNumber  string `json:"srcAccountNumber"`
	SrcAccountName    string `json:"srcAccountName,omitempty"`
	DestBankCode      string `json:"destBankCode"`
	DestAccountNumber string `json:"destAccountNumber"`
	DestAccountName   string `json:"destAccountName,omitempty"`
	Narration         string `json:"narration,omitempty"`
	Amount            Amount `json:"amount"`

	// CallbackURL overrides the institution webhook URL for the terminal
	// notification of this transaction.
	CallbackURL string `json:"callbackUrl,omitempty"`

	SessionID              string `json:"sessionId"`
	TrackingNumber         string `json:"trackingNumber"`
	FTCSessionID           string `json:"ftcSessionId,omitempty"`
	FTCTrackingNumber      string `json:"ftcTrackingNumber,omitempty"`
	ReversalSessionID      string `json:"reversalSessionId,omitempty"`
	ReversalTrackingNumber string `json:"reversalTrackingNumber,omitempty"`

	Status       TxStatus `json:"status"`
	StatusBefore TxStatus `json:"statusBefore,omitempty"`

	// NameEnquiryRef is the payee name resolution reference returned by a
	// successful name enquiry.
	NameEnquiryRef string `json:"nameEnquiryRef,omitempty"`

	NECActionCode           string `json:"necActionCode,omitempty"`
	NECResponseMessage      string `json:"necResponseMessage,omitempty"`
	FTDActionCode           string `json:"ftdActionCode,omitempty"`
	FTDResponseMessage      string `json:"ftdResponseMessage,omitempty"`
	FTCActionCode           string `json:"ftcActionCode,omitempty"`
	FTCResponseMessage      string `json:"ftcResponseMessage,omitempty"`
	ReversalActionCode      string `json:"reversalActionCode,omitempty"`
	ReversalResponseMessage string `json:"reversalResponseMessage,omitempty"`

	ReversalRequired bool   `json:"reversalRequired,omitempty"`
	ReversalAttempts int    `json:"reversalAttempts,omitempty"`
	ReversalReason   string `json:"reversalReason,omitempty"`

	// ManualIntervention is raised when automatic recovery is exhausted
	// and an operator has to settle the transaction by hand.
	ManualIntervention bool   `json:"manualIntervention,omitempty"`
	ManualReason       string `json:"manualReason,omitempty"`

	// ClientCallbackSent records that the terminal webhook reached the
	// institution.
	ClientCallbackSent bool `json:"clientCallbackSent,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	TimeoutAt   time.Time  `json:"timeoutAt,omitempty"`
}

// IsTerminal reports whether the transaction reached a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// LegSession returns the session id and tracking number of the given leg.
func (t *Transaction) LegSession(leg TSQType) (sessionID, trackingNumber string) {
	switch leg {
	case TSQTypeFTC:
		return t.FTCSessionID, t.FTCTrackingNumber
	case TSQTypeReversal:
		return t.ReversalSessionID, t.ReversalTrackingNumber
	default:
		return t.SessionID, t.TrackingNumber
	}
}

// MatchSession reports which leg the given session id belongs to, checking
// the debit leg first, then credit, then reversal.
func (t *Transaction) MatchSession(sessionID string) (TSQType, bool) {
	switch sessionID {
	case "":
		return "", false
	case t.SessionID:
		return TSQTypeFTD, true
	case t.FTCSessionID:
		return TSQTypeFTC, true
	case t.ReversalSessionID:
		return TSQTypeReversal, true
	}
	return "", false
}
