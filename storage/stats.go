package storage

import (
	"github.com/vireopay/fundflow/log"
)

// statsKey is the single row holding the global counters.
var statsKey = []byte("totals")

// Stats aggregates orchestrator-wide counters. They are moved as a side
// effect of the storage operations that represent them.
type Stats struct {
	TransactionsCreated   int64 `json:"transactionsCreated"`
	TransactionsCompleted int64 `json:"transactionsCompleted"`
	TransactionsFailed    int64 `json:"transactionsFailed"`
	TransactionsTimedOut  int64 `json:"transactionsTimedOut"`
	ReversalsStarted      int64 `json:"reversalsStarted"`
	ReversalsSucceeded    int64 `json:"reversalsSucceeded"`
	CallbacksProcessed    int64 `json:"callbacksProcessed"`
	CallbacksIgnored      int64 `json:"callbacksIgnored"`
	WebhooksDelivered     int64 `json:"webhooksDelivered"`
	WebhooksFailed        int64 `json:"webhooksFailed"`
	TSQAttempts           int64 `json:"tsqAttempts"`
}

// Stats returns a copy of the global counters.
func (s *Storage) Stats() (*Stats, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	st := &Stats{}
	if err := s.getArtifact(statsPrefix, statsKey, st); err != nil && err != ErrNotFound {
		return nil, err
	}
	return st, nil
}

// bumpStats applies a delta to the global counters. Counters are best
// effort: failures are logged and never fail the operation that moved them.
// Assumes the caller holds the globalLock.
func (s *Storage) bumpStats(apply func(*Stats)) {
	st := &Stats{}
	if err := s.getArtifact(statsPrefix, statsKey, st); err != nil && err != ErrNotFound {
		log.Warnw("failed to load stats", "error", err)
		return
	}
	apply(st)
	if err := s.setArtifact(statsPrefix, statsKey, st); err != nil {
		log.Warnw("failed to save stats", "error", err)
	}
}
