package storage

import (
	"fmt"
	"time"

	"github.com/vireopay/fundflow/db"
	"github.com/vireopay/fundflow/db/prefixeddb"
	"github.com/vireopay/fundflow/log"
	"github.com/vireopay/fundflow/types"
)

// CreateTransaction stores a new transaction together with its lookup
// indexes. References are unique per institution; a reuse returns
// ErrDuplicateReference so the API can surface the existing transaction.
func (s *Storage) CreateTransaction(tx *types.Transaction) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	if tx == nil {
		return fmt.Errorf("nil transaction")
	}
	if tx.ID == "" || tx.Reference == "" || tx.InstitutionID == "" {
		return fmt.Errorf("transaction missing id, reference or institution")
	}

	if _, err := prefixeddb.NewPrefixedReader(s.db, referencePrefix).Get(refKey(tx.InstitutionID, tx.Reference)); err == nil {
		return ErrDuplicateReference
	}

	now := time.Now()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now

	wTx := s.db.WriteTx()
	defer wTx.Discard()

	if err := s.writeTransaction(wTx, tx); err != nil {
		return err
	}
	if err := prefixeddb.NewPrefixedWriteTx(wTx, referencePrefix).
		Set(refKey(tx.InstitutionID, tx.Reference), []byte(tx.ID)); err != nil {
		return err
	}
	if err := s.reindexTimeout(wTx, tx, time.Time{}); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}

	s.bumpStats(func(st *Stats) { st.TransactionsCreated++ })
	return nil
}

// Transaction retrieves a transaction by ID. Returns ErrNotFound if it does
// not exist.
func (s *Storage) Transaction(id string) (*types.Transaction, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	return s.transactionUnsafe(id)
}

// TransactionByReference resolves a transaction through the per-institution
// reference index.
func (s *Storage) TransactionByReference(institutionID, reference string) (*types.Transaction, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	id, err := prefixeddb.NewPrefixedReader(s.db, referencePrefix).Get(refKey(institutionID, reference))
	if err != nil {
		return nil, ErrNotFound
	}
	return s.transactionUnsafe(string(id))
}

// TransactionBySession resolves a transaction through the session index. Any
// of the three leg session IDs resolves to the owning transaction.
func (s *Storage) TransactionBySession(sessionID string) (*types.Transaction, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	id, err := prefixeddb.NewPrefixedReader(s.db, sessionPrefix).Get([]byte(sessionID))
	if err != nil {
		return nil, ErrNotFound
	}
	return s.transactionUnsafe(string(id))
}

// ListTransactions returns the IDs of every stored transaction.
func (s *Storage) ListTransactions() ([]string, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	keys, err := s.listArtifacts(transactionPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = string(k)
	}
	return ids, nil
}

// UpdateTransaction performs an atomic read-modify-write operation on a
// transaction. The update functions are called with the current state and
// can modify it. Session and timeout indexes are kept in sync with whatever
// the update functions changed.
func (s *Storage) UpdateTransaction(id string, updateFunc ...func(*types.Transaction) error) (*types.Transaction, error) {
	if id == "" {
		return nil, fmt.Errorf("empty transaction ID")
	}
	if len(updateFunc) == 0 {
		return nil, fmt.Errorf("no update function provided")
	}

	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	tx, err := s.transactionUnsafe(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction for update: %w", err)
	}
	prevTimeout := tx.TimeoutAt

	for _, f := range updateFunc {
		if err := f(tx); err != nil {
			return nil, fmt.Errorf("update function failed: %w", err)
		}
	}
	tx.UpdatedAt = time.Now()

	wTx := s.db.WriteTx()
	defer wTx.Discard()

	if err := s.writeTransaction(wTx, tx); err != nil {
		return nil, err
	}
	if err := s.reindexTimeout(wTx, tx, prevTimeout); err != nil {
		return nil, err
	}
	if err := wTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to save updated transaction: %w", err)
	}
	return tx, nil
}

// UpdateTransactionStatus moves a transaction through the state machine. The
// transition is validated, the previous status is kept, an audit record is
// appended and queue side effects are applied, all in a single database
// transaction. Returns types.ErrInvalidTransition (wrapped) when the edge is
// not allowed.
func (s *Storage) UpdateTransactionStatus(id string, to types.TxStatus, reason string, severity types.AuditSeverity) (*types.Transaction, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	tx, err := s.transactionUnsafe(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction for status update: %w", err)
	}
	from := tx.Status
	if err := types.ValidateTransition(from, to); err != nil {
		return nil, err
	}
	prevTimeout := tx.TimeoutAt

	now := time.Now()
	tx.StatusBefore = from
	tx.Status = to
	tx.UpdatedAt = now
	if to.IsTerminal() {
		tx.CompletedAt = &now
	}

	wTx := s.db.WriteTx()
	defer wTx.Discard()

	if err := s.writeTransaction(wTx, tx); err != nil {
		return nil, err
	}
	if err := s.reindexTimeout(wTx, tx, prevTimeout); err != nil {
		return nil, err
	}
	if err := s.appendAuditInTx(wTx, &types.AuditRecord{
		TxID:       id,
		FromStatus: from,
		ToStatus:   to,
		Reason:     reason,
		Severity:   severity,
		At:         now,
	}); err != nil {
		return nil, err
	}

	// Entering a worker-owned status enqueues the corresponding job.
	switch to {
	case types.StatusFTCPending:
		if err := enqueueInTx(wTx, creditQueuePrefix, id); err != nil {
			return nil, err
		}
	case types.StatusReversalPending:
		if err := enqueueInTx(wTx, reversalQueuePrefix, id); err != nil {
			return nil, err
		}
	}

	if err := wTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to save status update: %w", err)
	}

	s.bumpStats(func(st *Stats) {
		switch to {
		case types.StatusCompleted:
			st.TransactionsCompleted++
		case types.StatusFailed:
			st.TransactionsFailed++
		case types.StatusTimeout:
			st.TransactionsTimedOut++
		case types.StatusReversalPending:
			if from != types.StatusReversalPending {
				st.ReversalsStarted++
			}
		case types.StatusReversalSuccess:
			st.ReversalsSucceeded++
		}
	})

	log.Debugw("transaction status updated", "tx", id, "from", string(from), "to", string(to))
	return tx, nil
}

// transactionUnsafe loads a transaction without locking.
func (s *Storage) transactionUnsafe(id string) (*types.Transaction, error) {
	tx := &types.Transaction{}
	if err := s.getArtifact(transactionPrefix, []byte(id), tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// writeTransaction persists the record and upserts the session index for
// every gateway leg that has been minted so far. The caller owns the write
// transaction and the lock.
func (s *Storage) writeTransaction(wTx db.WriteTx, tx *types.Transaction) error {
	data, err := EncodeArtifact(tx)
	if err != nil {
		return fmt.Errorf("encode transaction: %w", err)
	}
	if err := prefixeddb.NewPrefixedWriteTx(wTx, transactionPrefix).Set([]byte(tx.ID), data); err != nil {
		return err
	}
	sidTx := prefixeddb.NewPrefixedWriteTx(wTx, sessionPrefix)
	for _, sid := range []string{tx.SessionID, tx.FTCSessionID, tx.ReversalSessionID} {
		if sid == "" {
			continue
		}
		if err := sidTx.Set([]byte(sid), []byte(tx.ID)); err != nil {
			return err
		}
	}
	return nil
}

// reindexTimeout keeps the time-ordered timeout index in sync. Terminal
// transactions are removed from the index regardless of their deadline.
func (s *Storage) reindexTimeout(wTx db.WriteTx, tx *types.Transaction, prev time.Time) error {
	toTx := prefixeddb.NewPrefixedWriteTx(wTx, timeoutPrefix)
	cur := tx.TimeoutAt
	if tx.Status.IsTerminal() {
		cur = time.Time{}
	}
	if !prev.IsZero() && !prev.Equal(cur) {
		if err := toTx.Delete(timeKey(prev, tx.ID)); err != nil {
			return err
		}
	}
	if !cur.IsZero() && !cur.Equal(prev) {
		if err := toTx.Set(timeKey(cur, tx.ID), []byte{1}); err != nil {
			return err
		}
	}
	return nil
}

// enqueueInTx adds a transaction to a worker queue within the caller's
// write transaction. Re-enqueueing is harmless, the marker is overwritten.
func enqueueInTx(wTx db.WriteTx, prefix []byte, txID string) error {
	data, err := EncodeArtifact(&queueRecord{QueuedAt: time.Now().Unix()})
	if err != nil {
		return err
	}
	return prefixeddb.NewPrefixedWriteTx(wTx, prefix).Set([]byte(txID), data)
}
