package storage

import (
	"fmt"
	"time"

	"github.com/vireopay/fundflow/db/prefixeddb"
	"github.com/vireopay/fundflow/types"
)

// UpsertEvent records a gateway exchange. Events are keyed by (transaction,
// sequence slot); writing to an occupied slot merges into the existing row,
// so the response that arrives later completes the row the request created.
func (s *Storage) UpsertEvent(ev *types.GatewayEvent) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	if ev == nil || ev.TxID == "" || ev.Seq <= 0 {
		return fmt.Errorf("gateway event missing transaction ID or sequence")
	}

	now := time.Now()
	key := seqKey(ev.TxID, uint64(ev.Seq))

	existing := &types.GatewayEvent{}
	if err := s.getArtifact(eventPrefix, key, existing); err == nil {
		if ev.Type != "" {
			existing.Type = ev.Type
		}
		if ev.SessionID != "" {
			existing.SessionID = ev.SessionID
		}
		if ev.TrackingNumber != "" {
			existing.TrackingNumber = ev.TrackingNumber
		}
		if ev.FunctionCode != "" {
			existing.FunctionCode = ev.FunctionCode
		}
		if ev.RequestPayload != nil {
			existing.RequestPayload = ev.RequestPayload
		}
		if ev.ResponsePayload != nil {
			existing.ResponsePayload = ev.ResponsePayload
		}
		if ev.ActionCode != "" {
			existing.ActionCode = ev.ActionCode
		}
		if ev.DurationMs > 0 {
			existing.DurationMs = ev.DurationMs
		}
		existing.UpdatedAt = now
		return s.setArtifact(eventPrefix, key, existing)
	}

	ev.CreatedAt = now
	ev.UpdatedAt = now
	return s.setArtifact(eventPrefix, key, ev)
}

// Events returns the recorded gateway exchanges of a transaction in
// sequence order.
func (s *Storage) Events(txID string) ([]*types.GatewayEvent, error) {
	var events []*types.GatewayEvent
	var decodeErr error
	if err := prefixeddb.NewPrefixedReader(s.db, eventPrefix).Iterate(seqKeyPrefix(txID), func(_, v []byte) bool {
		ev := &types.GatewayEvent{}
		if err := DecodeArtifact(v, ev); err != nil {
			decodeErr = fmt.Errorf("decode gateway event: %w", err)
			return false
		}
		events = append(events, ev)
		return true
	}); err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return events, nil
}
