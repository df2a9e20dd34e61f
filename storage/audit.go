package storage

import (
	"fmt"
	"time"

	"github.com/vireopay/fundflow/db"
	"github.com/vireopay/fundflow/db/prefixeddb"
	"github.com/vireopay/fundflow/types"
)

// AppendAudit adds an entry to a transaction's audit trail outside of a
// status transition, for events worth keeping that do not move the state
// machine (reversal exhaustion, manual intervention and the like).
func (s *Storage) AppendAudit(rec *types.AuditRecord) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := s.appendAuditInTx(wTx, rec); err != nil {
		return err
	}
	return wTx.Commit()
}

// AuditTrail returns the audit entries of a transaction in append order.
func (s *Storage) AuditTrail(txID string) ([]*types.AuditRecord, error) {
	var trail []*types.AuditRecord
	var decodeErr error
	if err := prefixeddb.NewPrefixedReader(s.db, auditPrefix).Iterate(seqKeyPrefix(txID), func(_, v []byte) bool {
		rec := &types.AuditRecord{}
		if err := DecodeArtifact(v, rec); err != nil {
			decodeErr = fmt.Errorf("decode audit record: %w", err)
			return false
		}
		trail = append(trail, rec)
		return true
	}); err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return trail, nil
}

// appendAuditInTx writes the next audit entry for a transaction within the
// caller's write transaction. Assumes the caller holds the globalLock.
func (s *Storage) appendAuditInTx(wTx db.WriteTx, rec *types.AuditRecord) error {
	if rec == nil || rec.TxID == "" {
		return fmt.Errorf("audit record missing transaction ID")
	}
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	if rec.Severity == "" {
		rec.Severity = types.SeverityInfo
	}

	var count uint64
	if err := prefixeddb.NewPrefixedReader(s.db, auditPrefix).Iterate(seqKeyPrefix(rec.TxID), func(_, _ []byte) bool {
		count++
		return true
	}); err != nil {
		return err
	}
	rec.Seq = count + 1

	data, err := EncodeArtifact(rec)
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}
	return prefixeddb.NewPrefixedWriteTx(wTx, auditPrefix).Set(seqKey(rec.TxID, rec.Seq), data)
}
