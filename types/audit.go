package types

import "time"

// AuditSeverity grades audit records. Critical records flag flows that
// need operator attention.
type AuditSeverity string

const (
	SeverityInfo     AuditSeverity = "INFO"
	SeverityWarning  AuditSeverity = "WARNING"
	SeverityCritical AuditSeverity = "CRITICAL"
)

// AuditRecord is an append-only trace of a status transition or a notable
// event in the life of a transaction.
type AuditRecord struct {
	TxID       string        `json:"txId"`
	Seq        uint64        `json:"seq"`
	FromStatus TxStatus      `json:"fromStatus,omitempty"`
	ToStatus   TxStatus      `json:"toStatus,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	Severity   AuditSeverity `json:"severity"`
	At         time.Time     `json:"at"`
}
