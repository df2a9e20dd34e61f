package storage

import (
	"fmt"
	"time"

	"github.com/vireopay/fundflow/db/prefixeddb"
	"github.com/vireopay/fundflow/log"
	"github.com/vireopay/fundflow/types"
)

// ScheduleTSQ queues a status query for a transaction leg whose outcome is
// in doubt. At most one task per transaction can be pending; a second
// schedule returns ErrKeyAlreadyExists.
func (s *Storage) ScheduleTSQ(task *types.TSQTask) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	if task == nil || task.TxID == "" || task.SessionID == "" {
		return fmt.Errorf("status query task missing transaction or session ID")
	}
	if _, err := prefixeddb.NewPrefixedReader(s.db, tsqIndexPrefix).Get([]byte(task.TxID)); err == nil {
		return ErrKeyAlreadyExists
	}

	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.ScheduledFor.IsZero() {
		task.ScheduledFor = now
	}

	data, err := EncodeArtifact(task)
	if err != nil {
		return err
	}
	key := timeKey(task.ScheduledFor, task.TxID)
	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := prefixeddb.NewPrefixedWriteTx(wTx, tsqQueuePrefix).Set(key, data); err != nil {
		return err
	}
	if err := prefixeddb.NewPrefixedWriteTx(wTx, tsqIndexPrefix).Set([]byte(task.TxID), key); err != nil {
		return err
	}
	return wTx.Commit()
}

// NextDueTSQ claims the earliest task whose scheduled time has passed. The
// queue is ordered by due time, so the scan stops at the first task still
// in the future. Returns ErrNoMoreElements when nothing is due.
func (s *Storage) NextDueTSQ(now time.Time) (*types.TSQTask, error) {
	var claimed *types.TSQTask
	if err := prefixeddb.NewPrefixedReader(s.db, tsqQueuePrefix).Iterate(nil, func(k, v []byte) bool {
		at, _, ok := splitTimeKey(k)
		if !ok {
			return true
		}
		if at.After(now) {
			return false
		}
		if s.isReserved(tsqReservPrefix, k) {
			return true
		}
		task := &types.TSQTask{}
		if err := DecodeArtifact(v, task); err != nil {
			log.Warnw("undecodable status query task, skipping", "key", fmt.Sprintf("%x", k), "error", err)
			return true
		}
		if err := s.setReservation(tsqReservPrefix, append([]byte(nil), k...)); err != nil {
			return true
		}
		claimed = task
		return false
	}); err != nil {
		return nil, err
	}
	if claimed == nil {
		return nil, ErrNoMoreElements
	}
	return claimed, nil
}

// CompleteTSQ removes a finished task, its reservation and the pending
// index entry.
func (s *Storage) CompleteTSQ(task *types.TSQTask) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	key := timeKey(task.ScheduledFor, task.TxID)
	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := prefixeddb.NewPrefixedWriteTx(wTx, tsqQueuePrefix).Delete(key); err != nil {
		return err
	}
	if err := prefixeddb.NewPrefixedWriteTx(wTx, tsqReservPrefix).Delete(key); err != nil {
		return err
	}
	if err := prefixeddb.NewPrefixedWriteTx(wTx, tsqIndexPrefix).Delete([]byte(task.TxID)); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	s.bumpStats(func(st *Stats) { st.TSQAttempts++ })
	return nil
}

// RescheduleTSQ moves a claimed task to a later due time. The caller has
// already bumped the attempt counter on the task.
func (s *Storage) RescheduleTSQ(task *types.TSQTask, nextAt time.Time) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	oldKey := timeKey(task.ScheduledFor, task.TxID)
	task.ScheduledFor = nextAt
	newKey := timeKey(nextAt, task.TxID)

	data, err := EncodeArtifact(task)
	if err != nil {
		return err
	}
	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := prefixeddb.NewPrefixedWriteTx(wTx, tsqQueuePrefix).Delete(oldKey); err != nil {
		return err
	}
	if err := prefixeddb.NewPrefixedWriteTx(wTx, tsqReservPrefix).Delete(oldKey); err != nil {
		return err
	}
	if err := prefixeddb.NewPrefixedWriteTx(wTx, tsqQueuePrefix).Set(newKey, data); err != nil {
		return err
	}
	if err := prefixeddb.NewPrefixedWriteTx(wTx, tsqIndexPrefix).Set([]byte(task.TxID), newKey); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	s.bumpStats(func(st *Stats) { st.TSQAttempts++ })
	return nil
}

// HasPendingTSQ reports whether a status query is already queued for the
// transaction.
func (s *Storage) HasPendingTSQ(txID string) bool {
	_, err := prefixeddb.NewPrefixedReader(s.db, tsqIndexPrefix).Get([]byte(txID))
	return err == nil
}

// PendingTSQTasks returns the number of queued status query tasks.
func (s *Storage) PendingTSQTasks() int {
	keys, err := s.listArtifacts(tsqQueuePrefix)
	if err != nil {
		return 0
	}
	return len(keys)
}
