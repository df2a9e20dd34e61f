package storage

import (
	"github.com/vireopay/fundflow/db/prefixeddb"
	"github.com/vireopay/fundflow/log"
	"github.com/vireopay/fundflow/types"
)

// NextCreditJob returns the next transaction queued for credit-leg
// submission that is not reserved by another worker. The caller owns the
// job until MarkCreditJobDone or ReleaseCreditJob. Returns
// ErrNoMoreElements when nothing is claimable.
func (s *Storage) NextCreditJob() (*types.Transaction, error) {
	return s.nextQueuedTransaction(creditQueuePrefix, creditReservPrefix)
}

// MarkCreditJobDone removes a credit job and its reservation.
func (s *Storage) MarkCreditJobDone(txID string) error {
	return s.dequeueTransaction(creditQueuePrefix, creditReservPrefix, txID)
}

// ReleaseCreditJob frees the reservation so the job can be claimed again.
func (s *Storage) ReleaseCreditJob(txID string) error {
	return s.releaseReservation(creditReservPrefix, []byte(txID))
}

// PendingCreditJobs returns the number of queued credit jobs, claimed or
// not.
func (s *Storage) PendingCreditJobs() int {
	keys, err := s.listArtifacts(creditQueuePrefix)
	if err != nil {
		return 0
	}
	return len(keys)
}

// NextReversalJob returns the next transaction queued for reversal
// submission that is not reserved by another worker.
func (s *Storage) NextReversalJob() (*types.Transaction, error) {
	return s.nextQueuedTransaction(reversalQueuePrefix, reversalReservPrefix)
}

// MarkReversalJobDone removes a reversal job and its reservation.
func (s *Storage) MarkReversalJobDone(txID string) error {
	return s.dequeueTransaction(reversalQueuePrefix, reversalReservPrefix, txID)
}

// ReleaseReversalJob frees the reservation so the job can be claimed again.
func (s *Storage) ReleaseReversalJob(txID string) error {
	return s.releaseReservation(reversalReservPrefix, []byte(txID))
}

// PendingReversalJobs returns the number of queued reversal jobs.
func (s *Storage) PendingReversalJobs() int {
	keys, err := s.listArtifacts(reversalQueuePrefix)
	if err != nil {
		return 0
	}
	return len(keys)
}

// nextQueuedTransaction scans a transaction-keyed queue and claims the first
// entry without a reservation. Queue entries whose transaction has vanished
// are dropped on the way.
func (s *Storage) nextQueuedTransaction(queuePrefix, reservPrefix []byte) (*types.Transaction, error) {
	keys, err := s.listArtifacts(queuePrefix)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if s.isReserved(reservPrefix, k) {
			continue
		}
		tx := &types.Transaction{}
		if err := s.getArtifact(transactionPrefix, k, tx); err != nil {
			log.Warnw("queued transaction no longer exists, dropping queue entry",
				"tx", string(k), "queue", string(queuePrefix))
			if err := s.deleteArtifact(queuePrefix, k); err != nil {
				log.Warnw("failed to drop orphan queue entry", "tx", string(k), "error", err)
			}
			continue
		}
		if err := s.setReservation(reservPrefix, k); err != nil {
			// lost the race to another worker
			continue
		}
		return tx, nil
	}
	return nil, ErrNoMoreElements
}

// dequeueTransaction removes a queue entry and its reservation atomically.
func (s *Storage) dequeueTransaction(queuePrefix, reservPrefix []byte, txID string) error {
	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := prefixeddb.NewPrefixedWriteTx(wTx, queuePrefix).Delete([]byte(txID)); err != nil {
		return err
	}
	if err := prefixeddb.NewPrefixedWriteTx(wTx, reservPrefix).Delete([]byte(txID)); err != nil {
		return err
	}
	return wTx.Commit()
}
