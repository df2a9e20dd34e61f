package storage

import (
	"fmt"
	"time"

	"github.com/vireopay/fundflow/db/prefixeddb"
	"github.com/vireopay/fundflow/types"
)

// EnqueueClientCallback schedules a webhook notification for an
// institution. Enqueueing is idempotent per transaction: a second call for
// the same transaction returns ErrKeyAlreadyExists and leaves the existing
// row untouched.
func (s *Storage) EnqueueClientCallback(cb *types.ClientCallback) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	if cb == nil || cb.ID == "" || cb.TxID == "" {
		return fmt.Errorf("client callback missing ID or transaction ID")
	}
	if _, err := prefixeddb.NewPrefixedReader(s.db, clientCbIndexPrefix).Get([]byte(cb.TxID)); err == nil {
		return ErrKeyAlreadyExists
	}

	if cb.Status == "" {
		cb.Status = types.DeliveryPending
	}
	if cb.CreatedAt.IsZero() {
		cb.CreatedAt = time.Now()
	}
	if cb.NextAttemptAt.IsZero() {
		cb.NextAttemptAt = cb.CreatedAt
	}

	data, err := EncodeArtifact(cb)
	if err != nil {
		return err
	}
	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := prefixeddb.NewPrefixedWriteTx(wTx, clientCbPrefix).Set([]byte(cb.ID), data); err != nil {
		return err
	}
	if err := prefixeddb.NewPrefixedWriteTx(wTx, clientCbIndexPrefix).Set([]byte(cb.TxID), []byte(cb.ID)); err != nil {
		return err
	}
	return wTx.Commit()
}

// NextDueClientCallback claims the next webhook due for delivery. A row is
// claimable while it is pending or failed, its next attempt time has
// passed and it has attempts left. Returns ErrNoMoreElements when nothing
// is due.
func (s *Storage) NextDueClientCallback(now time.Time) (*types.ClientCallback, error) {
	keys, err := s.listArtifacts(clientCbPrefix)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if s.isReserved(clientCbReservPrefix, k) {
			continue
		}
		cb := &types.ClientCallback{}
		if err := s.getArtifact(clientCbPrefix, k, cb); err != nil {
			continue
		}
		if cb.Status == types.DeliveryDelivered {
			continue
		}
		if cb.MaxAttempts > 0 && cb.Attempts >= cb.MaxAttempts {
			continue
		}
		if cb.NextAttemptAt.After(now) {
			continue
		}
		if err := s.setReservation(clientCbReservPrefix, k); err != nil {
			continue
		}
		return cb, nil
	}
	return nil, ErrNoMoreElements
}

// MarkClientCallbackDelivered finalizes a webhook row after a 2xx response
// and releases the claim.
func (s *Storage) MarkClientCallbackDelivered(id string, attempts int) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	cb := &types.ClientCallback{}
	if err := s.getArtifact(clientCbPrefix, []byte(id), cb); err != nil {
		return err
	}
	now := time.Now()
	cb.Status = types.DeliveryDelivered
	cb.Attempts = attempts
	cb.DeliveredAt = &now
	cb.LastError = ""

	if err := s.saveClientCallback(cb); err != nil {
		return err
	}
	s.bumpStats(func(st *Stats) { st.WebhooksDelivered++ })
	return nil
}

// RescheduleClientCallback records a failed delivery attempt and moves the
// next attempt into the future. The row stays claimable until the attempt
// budget runs out.
func (s *Storage) RescheduleClientCallback(id string, attempts int, nextAttempt time.Time, lastError string) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	cb := &types.ClientCallback{}
	if err := s.getArtifact(clientCbPrefix, []byte(id), cb); err != nil {
		return err
	}
	cb.Status = types.DeliveryFailed
	cb.Attempts = attempts
	cb.NextAttemptAt = nextAttempt
	cb.LastError = lastError

	if err := s.saveClientCallback(cb); err != nil {
		return err
	}
	s.bumpStats(func(st *Stats) { st.WebhooksFailed++ })
	return nil
}

// ClientCallbackByTx returns the webhook row owed for a transaction, if
// any.
func (s *Storage) ClientCallbackByTx(txID string) (*types.ClientCallback, error) {
	id, err := prefixeddb.NewPrefixedReader(s.db, clientCbIndexPrefix).Get([]byte(txID))
	if err != nil {
		return nil, ErrNotFound
	}
	cb := &types.ClientCallback{}
	if err := s.getArtifact(clientCbPrefix, id, cb); err != nil {
		return nil, err
	}
	return cb, nil
}

// PendingClientCallbacks returns the number of webhook rows not yet
// delivered and not exhausted.
func (s *Storage) PendingClientCallbacks() int {
	count := 0
	keys, err := s.listArtifacts(clientCbPrefix)
	if err != nil {
		return 0
	}
	for _, k := range keys {
		cb := &types.ClientCallback{}
		if err := s.getArtifact(clientCbPrefix, k, cb); err != nil {
			continue
		}
		if cb.Status == types.DeliveryDelivered {
			continue
		}
		if cb.MaxAttempts > 0 && cb.Attempts >= cb.MaxAttempts {
			continue
		}
		count++
	}
	return count
}

// saveClientCallback writes the row back and drops the reservation in one
// transaction. Assumes the caller holds the globalLock.
func (s *Storage) saveClientCallback(cb *types.ClientCallback) error {
	data, err := EncodeArtifact(cb)
	if err != nil {
		return err
	}
	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := prefixeddb.NewPrefixedWriteTx(wTx, clientCbPrefix).Set([]byte(cb.ID), data); err != nil {
		return err
	}
	if err := prefixeddb.NewPrefixedWriteTx(wTx, clientCbReservPrefix).Delete([]byte(cb.ID)); err != nil {
		return err
	}
	return wTx.Commit()
}
