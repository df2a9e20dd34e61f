/*
Package storage provides the durable state store of the orchestrator.

# Storage Organization

The storage uses a key-value database with prefixed namespaces to organize
the different types of data:

## Transactions
  - tx/   : transactionID → Transaction record
  - ref/  : institutionID + "/" + reference → transactionID (uniqueness index)
  - sid/  : sessionID → transactionID (one entry per gateway leg)
  - to/   : bigendian(timeoutAt) + transactionID → timeout scan index

## Gateway trace
  - ev/   : transactionID + "/" + bigendian(seq) → GatewayEvent (upserted)
  - aud/  : transactionID + "/" + bigendian(seq) → AuditRecord (append only)

## Work queues

Each queue pairs a data prefix with a reservation prefix. A worker claims an
item by writing a reservation; reservations left behind by crashed workers
are released by age.

 1. Credit leg submissions
    - ftcq/  : transactionID → queue marker (written on FTC_PENDING)
    - ftcqr/ : transactionID → reservation timestamp

 2. Reversal submissions
    - revq/  : transactionID → queue marker (written on REVERSAL_PENDING)
    - revqr/ : transactionID → reservation timestamp

 3. Status queries
    - tsqq/  : bigendian(scheduledFor) + transactionID → TSQTask
    - tsqqr/ : same key → reservation timestamp
    - tsqi/  : transactionID → queue key (pending-task index)

 4. Gateway callbacks
    - cbq/   : callbackID → GatewayCallback (kept after processing)
    - cbqr/  : callbackID → reservation timestamp

 5. Client webhooks
    - ccq/   : callbackID → ClientCallback (kept after delivery)
    - ccqr/  : callbackID → reservation timestamp
    - cci/   : transactionID → callbackID (idempotent-enqueue index)

## Registry
  - inst/  : institutionID → Institution
  - instk/ : apiKey → institutionID
  - part/  : bankCode → Participant

## Counters and statistics
  - ctr/  : persisted counters (session/tracking serial)
  - st/   : global statistics
*/
package storage

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vireopay/fundflow/db"
	"github.com/vireopay/fundflow/db/prefixeddb"
	"github.com/vireopay/fundflow/log"
)

var (
	ErrKeyAlreadyExists   = errors.New("key already exists")
	ErrNotFound           = errors.New("not found")
	ErrNoMoreElements     = errors.New("no more elements")
	ErrDuplicateReference = errors.New("duplicate reference")

	// Prefixes
	transactionPrefix      = []byte("tx/")
	referencePrefix        = []byte("ref/")
	sessionPrefix          = []byte("sid/")
	timeoutPrefix          = []byte("to/")
	eventPrefix            = []byte("ev/")
	auditPrefix            = []byte("aud/")
	creditQueuePrefix      = []byte("ftcq/")
	creditReservPrefix     = []byte("ftcqr/")
	reversalQueuePrefix    = []byte("revq/")
	reversalReservPrefix   = []byte("revqr/")
	tsqQueuePrefix         = []byte("tsqq/")
	tsqReservPrefix        = []byte("tsqqr/")
	tsqIndexPrefix         = []byte("tsqi/")
	gwCallbackPrefix       = []byte("cbq/")
	gwCallbackReservPrefix = []byte("cbqr/")
	clientCbPrefix         = []byte("ccq/")
	clientCbReservPrefix   = []byte("ccqr/")
	clientCbIndexPrefix    = []byte("cci/")
	institutionPrefix      = []byte("inst/")
	institutionKeyPrefix   = []byte("instk/")
	participantPrefix      = []byte("part/")
	counterPrefix          = []byte("ctr/")
	statsPrefix            = []byte("st/")
)

// reservationRecord stores metadata about a reservation
type reservationRecord struct {
	Timestamp int64
}

// queueRecord marks a transaction as queued for a worker.
type queueRecord struct {
	QueuedAt int64
}

// Storage manages the orchestrator state with per-queue reservations.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex // Lock for read-modify-write operations
}

// New creates a new Storage instance over the given database.
func New(database db.Database) *Storage {
	s := &Storage{
		db: database,
	}

	// clear stale reservations left behind by a previous run
	if err := s.recover(); err != nil {
		log.Errorw(err, "failed to clear stale reservations")
	}

	// start monitoring for stale reservations
	s.monitorStaleReservations()

	return s
}

// reservationPrefixes lists every reservation namespace, used by recovery
// and the staleness monitor.
func reservationPrefixes() [][]byte {
	return [][]byte{
		creditReservPrefix,
		reversalReservPrefix,
		tsqReservPrefix,
		gwCallbackReservPrefix,
		clientCbReservPrefix,
	}
}

// recover cleans up any stale reservations and ensures that no items are
// blocked. After a crash, any reservations left behind must be cleared so
// that the corresponding queue items are available for processing again.
func (s *Storage) recover() error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	for _, prefix := range reservationPrefixes() {
		if err := s.cleanAllReservations(prefix); err != nil {
			if strings.Contains(err.Error(), "pebble: closed") {
				return fmt.Errorf("database closed")
			}
			return fmt.Errorf("failed to clear reservations for prefix %x: %w", prefix, err)
		}
	}

	return nil
}

// cleanAllReservations removes every reservation under a prefix.
func (s *Storage) cleanAllReservations(prefix []byte) error {
	keys, err := s.listArtifacts(prefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	wTx := prefixeddb.NewPrefixedDatabase(s.db, prefix).WriteTx()
	defer wTx.Discard()
	for _, k := range keys {
		if err := wTx.Delete(k); err != nil {
			return err
		}
	}
	return wTx.Commit()
}

// Close closes the storage.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		log.Errorw(err, "failed to close storage")
	}
}

// releaseStaleReservations checks and frees stale reservations in every
// queue.
func (s *Storage) releaseStaleReservations(maxAge time.Duration) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	now := time.Now().Unix()
	for _, prefix := range reservationPrefixes() {
		if err := s.releaseStaleInPrefix(prefix, now, maxAge); err != nil {
			return err
		}
	}
	return nil
}

func (s *Storage) releaseStaleInPrefix(prefix []byte, now int64, maxAge time.Duration) error {
	wTx := prefixeddb.NewPrefixedDatabase(s.db, prefix).WriteTx()
	defer wTx.Discard()
	var staleKeys [][]byte
	if err := wTx.Iterate(nil, func(k, v []byte) bool {
		r := &reservationRecord{}
		if err := DecodeArtifact(v, r); err != nil {
			staleKeys = append(staleKeys, append([]byte(nil), k...))
			return true
		}
		if now-r.Timestamp > int64(maxAge.Seconds()) {
			staleKeys = append(staleKeys, append([]byte(nil), k...))
		}
		return true
	}); err != nil {
		return fmt.Errorf("iterate stale reservations: %w", err)
	}
	if len(staleKeys) == 0 {
		return nil
	}

	// Delete all stale keys in a single transaction
	for _, sk := range staleKeys {
		if err := wTx.Delete(sk); err != nil {
			return fmt.Errorf("delete stale reservation: %w", err)
		}
	}

	if err := wTx.Commit(); err != nil {
		return fmt.Errorf("commit stale deletion: %w", err)
	}

	log.Debugw("released stale reservations", "prefix", string(prefix), "count", len(staleKeys))
	return nil
}

func (s *Storage) setReservation(prefix, key []byte) error {
	val, err := EncodeArtifact(&reservationRecord{Timestamp: time.Now().Unix()})
	if err != nil {
		return err
	}
	wTx := prefixeddb.NewPrefixedDatabase(s.db, prefix).WriteTx()
	defer wTx.Discard()
	if _, err := wTx.Get(key); err == nil {
		return ErrKeyAlreadyExists
	}
	if err := wTx.Set(key, val); err != nil {
		return err
	}
	return wTx.Commit()
}

func (s *Storage) isReserved(prefix, key []byte) bool {
	_, err := prefixeddb.NewPrefixedReader(s.db, prefix).Get(key)
	return err == nil
}

func (s *Storage) releaseReservation(prefix, key []byte) error {
	return s.deleteArtifact(prefix, key)
}

func (s *Storage) deleteArtifact(prefix, key []byte) error {
	wTx := prefixeddb.NewPrefixedDatabase(s.db, prefix).WriteTx()
	defer wTx.Discard()
	if err := wTx.Delete(key); err != nil {
		return err
	}
	return wTx.Commit()
}

// setArtifact helper function stores any kind of artifact in the storage.
// It receives the prefix, the key and the artifact to store, overwriting
// any previous value.
func (s *Storage) setArtifact(prefix, key []byte, artifact any) error {
	data, err := EncodeArtifact(artifact)
	if err != nil {
		return err
	}
	wTx := prefixeddb.NewPrefixedDatabase(s.db, prefix).WriteTx()
	defer wTx.Discard()
	if err := wTx.Set(key, data); err != nil {
		return err
	}
	return wTx.Commit()
}

// getArtifact helper function retrieves any kind of artifact from the
// storage. It receives the prefix of the key and a pointer to the artifact
// to decode into. Returns ErrNotFound if the key does not exist.
func (s *Storage) getArtifact(prefix, key []byte, out any) error {
	data, err := prefixeddb.NewPrefixedReader(s.db, prefix).Get(key)
	if err != nil {
		return ErrNotFound
	}
	if err := DecodeArtifact(data, out); err != nil {
		return fmt.Errorf("could not decode artifact: %w", err)
	}
	return nil
}

// listArtifacts retrieves all the keys for a given prefix.
func (s *Storage) listArtifacts(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	if err := prefixeddb.NewPrefixedReader(s.db, prefix).Iterate(nil, func(k, _ []byte) bool {
		kcopy := make([]byte, len(k))
		copy(kcopy, k)
		keys = append(keys, kcopy)
		return true
	}); err != nil {
		return nil, err
	}
	return keys, nil
}

// monitorStaleReservations starts a goroutine that periodically checks for
// and releases stale reservations. This prevents queue items from being
// stuck indefinitely if workers crash or fail to release them properly.
func (s *Storage) monitorStaleReservations() {
	ticker := time.NewTicker(60 * time.Second) // Check every minute
	go func() {
		defer ticker.Stop()
		for range ticker.C {
			// Release reservations older than 5 minutes
			if err := s.releaseStaleReservations(5 * time.Minute); err != nil {
				log.Warnw("failed to release stale reservations", "error", err)
			}
		}
	}()
}
