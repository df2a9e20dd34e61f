package storage

import (
	"fmt"
	"time"

	"github.com/vireopay/fundflow/db/prefixeddb"
	"github.com/vireopay/fundflow/types"
)

// PushGatewayCallback persists a callback received from the gateway so the
// intake endpoint can acknowledge immediately. Rows are kept after
// processing for traceability.
func (s *Storage) PushGatewayCallback(cb *types.GatewayCallback) error {
	if cb == nil || cb.ID == "" {
		return fmt.Errorf("gateway callback missing ID")
	}
	if cb.Status == "" {
		cb.Status = types.CallbackPending
	}
	if cb.ReceivedAt.IsZero() {
		cb.ReceivedAt = time.Now()
	}
	return s.setArtifact(gwCallbackPrefix, []byte(cb.ID), cb)
}

// NextPendingGatewayCallback claims the next unprocessed gateway callback.
// The caller owns it until SetGatewayCallbackResult. Returns
// ErrNoMoreElements when nothing is claimable.
func (s *Storage) NextPendingGatewayCallback() (*types.GatewayCallback, error) {
	keys, err := s.listArtifacts(gwCallbackPrefix)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if s.isReserved(gwCallbackReservPrefix, k) {
			continue
		}
		cb := &types.GatewayCallback{}
		if err := s.getArtifact(gwCallbackPrefix, k, cb); err != nil {
			continue
		}
		if cb.Status != types.CallbackPending {
			continue
		}
		if err := s.setReservation(gwCallbackReservPrefix, k); err != nil {
			continue
		}
		return cb, nil
	}
	return nil, ErrNoMoreElements
}

// SetGatewayCallbackResult records the outcome of processing a callback and
// releases the worker's claim.
func (s *Storage) SetGatewayCallbackResult(id string, status types.CallbackStatus, errText string) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	cb := &types.GatewayCallback{}
	if err := s.getArtifact(gwCallbackPrefix, []byte(id), cb); err != nil {
		return err
	}
	now := time.Now()
	cb.Status = status
	cb.Error = errText
	cb.ProcessedAt = &now

	data, err := EncodeArtifact(cb)
	if err != nil {
		return err
	}
	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := prefixeddb.NewPrefixedWriteTx(wTx, gwCallbackPrefix).Set([]byte(id), data); err != nil {
		return err
	}
	if err := prefixeddb.NewPrefixedWriteTx(wTx, gwCallbackReservPrefix).Delete([]byte(id)); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}

	s.bumpStats(func(st *Stats) {
		switch status {
		case types.CallbackProcessed:
			st.CallbacksProcessed++
		case types.CallbackIgnored:
			st.CallbacksIgnored++
		}
	})
	return nil
}

// GatewayCallback retrieves a stored callback by ID.
func (s *Storage) GatewayCallback(id string) (*types.GatewayCallback, error) {
	cb := &types.GatewayCallback{}
	if err := s.getArtifact(gwCallbackPrefix, []byte(id), cb); err != nil {
		return nil, err
	}
	return cb, nil
}

// PendingGatewayCallbacks returns the number of callbacks awaiting
// processing.
func (s *Storage) PendingGatewayCallbacks() int {
	count := 0
	keys, err := s.listArtifacts(gwCallbackPrefix)
	if err != nil {
		return 0
	}
	for _, k := range keys {
		cb := &types.GatewayCallback{}
		if err := s.getArtifact(gwCallbackPrefix, k, cb); err != nil {
			continue
		}
		if cb.Status == types.CallbackPending {
			count++
		}
	}
	return count
}
