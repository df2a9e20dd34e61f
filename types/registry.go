package types

import "time"

// Institution is a client of the service: it submits enquiries and
// transfers through the API and receives signed webhooks about their
// outcome.
type Institution struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// APIKey authenticates the institution on the submission endpoints.
	APIKey string `json:"apiKey,omitempty"`
	// WebhookURL receives the terminal transaction notifications, signed
	// with WebhookSecret.
	WebhookURL    string    `json:"webhookUrl"`
	WebhookSecret string    `json:"webhookSecret,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Participant is a bank reachable through the gateway. Submissions naming
// a bank code outside the participant registry are rejected.
type Participant struct {
	BankCode  string    `json:"bankCode"`
	BankName  string    `json:"bankName"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}
