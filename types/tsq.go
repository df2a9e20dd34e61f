package types

import "time"

// TSQType identifies which gateway leg a status query targets.
type TSQType string

const (
	TSQTypeFTD      TSQType = "FTD"
	TSQTypeFTC      TSQType = "FTC"
	TSQTypeReversal TSQType = "REVERSAL"
)

// TSQTask schedules a transaction status query for a leg whose outcome is
// in doubt. Tasks are queued by due time and claimed by the TSQ worker;
// inconclusive outcomes reschedule the task until the attempt budget runs
// out.
type TSQTask struct {
	TxID           string  `json:"txId"`
	Type           TSQType `json:"type"`
	SessionID      string  `json:"sessionId"`
	TrackingNumber string  `json:"trackingNumber"`
	// OriginalActionCode is the action code of the leg response that put
	// the outcome in doubt, kept for the audit trail.
	OriginalActionCode string    `json:"originalActionCode,omitempty"`
	Attempts           int       `json:"attempts"`
	MaxAttempts        int       `json:"maxAttempts"`
	ScheduledFor       time.Time `json:"scheduledFor"`
	CreatedAt          time.Time `json:"createdAt"`
}
