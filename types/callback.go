package types

import (
	"encoding/json"
	"time"
)

// CallbackStatus is the processing state of a received gateway callback.
type CallbackStatus string

const (
	CallbackPending   CallbackStatus = "PENDING"
	CallbackProcessed CallbackStatus = "PROCESSED"
	CallbackIgnored   CallbackStatus = "IGNORED"
	CallbackError     CallbackStatus = "ERROR"
)

// GatewayCallback is an asynchronous notification received from the
// gateway. It is persisted verbatim before the intake endpoint
// acknowledges, and processed later by the callback worker.
type GatewayCallback struct {
	ID              string          `json:"id"`
	SessionID       string          `json:"sessionId"`
	FunctionCode    string          `json:"functionCode"`
	ActionCode      string          `json:"actionCode"`
	ResponsePayload json.RawMessage `json:"responsePayload"`
	SourceIP        string          `json:"sourceIp,omitempty"`
	Status          CallbackStatus  `json:"status"`
	Error           string          `json:"error,omitempty"`
	ReceivedAt      time.Time       `json:"receivedAt"`
	ProcessedAt     *time.Time      `json:"processedAt,omitempty"`
}

// DeliveryStatus is the delivery state of a client webhook.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "PENDING"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryFailed    DeliveryStatus = "FAILED"
)

// ClientCallback is a webhook notification owed to an institution about a
// terminal transaction. Rows are claimed by the dispatcher and retried
// with exponential backoff until delivered or the attempt budget runs out.
type ClientCallback struct {
	ID            string          `json:"id"`
	TxID          string          `json:"txId"`
	InstitutionID string          `json:"institutionId"`
	Reference     string          `json:"reference"`
	URL           string          `json:"url"`
	Payload       json.RawMessage `json:"payload"`
	Status        DeliveryStatus  `json:"status"`
	Attempts      int             `json:"attempts"`
	MaxAttempts   int             `json:"maxAttempts"`
	NextAttemptAt time.Time       `json:"nextAttemptAt"`
	LastError     string          `json:"lastError,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	DeliveredAt   *time.Time      `json:"deliveredAt,omitempty"`
}

// Final status values reported to institutions in webhook payloads.
const (
	ClientStatusSuccessful = "SUCCESSFUL"
	ClientStatusFailed     = "FAILED"
	ClientStatusTimeout    = "TIMEOUT"
)

// ClientCallbackPayload is the JSON body POSTed to institution webhooks.
type ClientCallbackPayload struct {
	SrcBankCode                string `json:"srcBankCode"`
	SrcAccountNumber           string `json:"srcAccountNumber"`
	ReferenceNumber            string `json:"referenceNumber"`
	RequestTimestamp           string `json:"requestTimestamp"`
	SessionID                  string `json:"sessionId"`
	DestBankCode               string `json:"destBankCode"`
	DestAccountNumber          string `json:"destAccountNumber"`
	Narration                  string `json:"narration,omitempty"`
	ResponseCode               string `json:"responseCode"`
	ResponseMessage            string `json:"responseMessage"`
	Status                     string `json:"status"`
	RequiresManualIntervention bool   `json:"requiresManualIntervention,omitempty"`
}
