package storage

import (
	"time"

	"github.com/vireopay/fundflow/db/prefixeddb"
)

// TimeoutEntry pairs a transaction with the deadline recorded in the
// timeout index.
type TimeoutEntry struct {
	TxID string
	At   time.Time
}

// DueTimeouts returns transactions whose processing deadline has passed,
// oldest first. The index is ordered by deadline so the scan stops at the
// first entry still in the future. A limit of 0 means no limit.
func (s *Storage) DueTimeouts(now time.Time, limit int) ([]TimeoutEntry, error) {
	var due []TimeoutEntry
	if err := prefixeddb.NewPrefixedReader(s.db, timeoutPrefix).Iterate(nil, func(k, _ []byte) bool {
		at, txID, ok := splitTimeKey(k)
		if !ok {
			return true
		}
		if at.After(now) {
			return false
		}
		due = append(due, TimeoutEntry{TxID: txID, At: at})
		return limit <= 0 || len(due) < limit
	}); err != nil {
		return nil, err
	}
	return due, nil
}

// RemoveTimeout drops a single timeout index entry. The timeout worker uses
// it to clean entries whose transaction reached a terminal state or moved
// its deadline through a path that bypassed the usual reindexing.
func (s *Storage) RemoveTimeout(at time.Time, txID string) error {
	return s.deleteArtifact(timeoutPrefix, timeKey(at, txID))
}
