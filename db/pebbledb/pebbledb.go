// Package pebbledb implements db.Database over cockroachdb/pebble. The
// WriteTx is backed by an indexed pebble.Batch: reads observe the pending
// writes of the batch, but there is no conflict detection between
// concurrent transactions.
package pebbledb

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"

	"github.com/vireopay/fundflow/db"
	"github.com/vireopay/fundflow/log"
)

// PebbleDB implements db.Database.
type PebbleDB struct {
	db     *pebble.DB
	closed atomic.Bool
}

var _ db.Database = (*PebbleDB)(nil)

// pebbleLogger routes pebble internal messages to the global logger.
type pebbleLogger struct{}

func (pebbleLogger) Infof(format string, args ...any) {
	log.Debugf(format, args...)
}

func (pebbleLogger) Fatalf(format string, args ...any) {
	log.Fatalf(format, args...)
}

// New opens or creates a pebble database at opts.Path.
func New(opts db.Options) (*PebbleDB, error) {
	pdb, err := pebble.Open(opts.Path, &pebble.Options{
		Logger: pebbleLogger{},
	})
	if err != nil {
		return nil, fmt.Errorf("cannot open pebble db at %s: %w", opts.Path, err)
	}
	return &PebbleDB{db: pdb}, nil
}

// Close closes the database. Further operations on the database or on any
// outstanding WriteTx become no-ops.
func (d *PebbleDB) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	return d.db.Close()
}

// Compact performs a manual compaction of the whole key space.
func (d *PebbleDB) Compact() error {
	if d.closed.Load() {
		return nil
	}
	iter, err := d.db.NewIter(nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := iter.Close(); err != nil {
			log.Warnw("cannot close compaction iterator", "err", err)
		}
	}()
	if !iter.First() {
		return nil
	}
	first := append([]byte{}, iter.Key()...)
	iter.Last()
	last := append([]byte{}, iter.Key()...)
	// the end bound is exclusive, extend it past the last key
	return d.db.Compact(first, append(last, 0x00), true)
}

// Get retrieves the value for the given key.
func (d *PebbleDB) Get(key []byte) ([]byte, error) {
	if d.closed.Load() {
		return nil, fmt.Errorf("database is closed")
	}
	return get(d.db, key)
}

// Iterate calls callback with all key-value pairs whose key starts with
// prefix. The prefix is stripped from the keys passed to the callback.
func (d *PebbleDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	if d.closed.Load() {
		return fmt.Errorf("database is closed")
	}
	return iterate(d.db, prefix, callback)
}

// WriteTx creates a new write transaction backed by an indexed batch.
func (d *PebbleDB) WriteTx() db.WriteTx {
	if d.closed.Load() {
		return &WriteTx{db: d}
	}
	return &WriteTx{
		db:    d,
		batch: d.db.NewIndexedBatch(),
	}
}

// WriteTx implements db.WriteTx over a pebble indexed batch.
type WriteTx struct {
	db    *PebbleDB
	batch *pebble.Batch
}

var _ db.WriteTx = (*WriteTx)(nil)

// unusable reports whether the transaction can still touch pebble. Every
// operation degrades into a no-op once the database is closed, so pending
// transactions held by other goroutines during shutdown do not panic.
func (tx *WriteTx) unusable() bool {
	return tx.batch == nil || tx.db == nil || tx.db.closed.Load()
}

// Get retrieves the value for the given key, observing pending writes.
func (tx *WriteTx) Get(key []byte) ([]byte, error) {
	if tx.unusable() {
		return nil, nil
	}
	return get(tx.batch, key)
}

// Iterate calls callback with all key-value pairs, observing pending writes.
func (tx *WriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	if tx.unusable() {
		return nil
	}
	return iterate(tx.batch, prefix, callback)
}

// Set adds a key-value pair to the batch.
func (tx *WriteTx) Set(key, value []byte) error {
	if tx.unusable() {
		return nil
	}
	return tx.batch.Set(key, value, nil)
}

// Delete removes a key in the batch.
func (tx *WriteTx) Delete(key []byte) error {
	if tx.unusable() {
		return nil
	}
	return tx.batch.Delete(key, nil)
}

// Apply merges the pending writes of the given transaction, which must be
// a pebbledb one possibly wrapped by prefixeddb, into this batch.
func (tx *WriteTx) Apply(other db.WriteTx) error {
	if tx.unusable() {
		return nil
	}
	otherTx, ok := unwrapWriteTx(other)
	if !ok {
		return fmt.Errorf("cannot apply a transaction from a different backend")
	}
	return tx.batch.Apply(otherTx.batch, nil)
}

// Commit writes the batch to the database synchronously.
func (tx *WriteTx) Commit() error {
	if tx.unusable() {
		return nil
	}
	return tx.batch.Commit(pebble.Sync)
}

// Discard drops the batch.
func (tx *WriteTx) Discard() {
	if tx.unusable() {
		return
	}
	if err := tx.batch.Close(); err != nil && !errors.Is(err, pebble.ErrClosed) {
		log.Warnw("error discarding pebble batch", "err", err)
	}
}

// unwrapWriteTx peels prefixeddb wrappers until it reaches the native
// pebbledb transaction.
func unwrapWriteTx(tx db.WriteTx) (*WriteTx, bool) {
	for {
		switch casted := tx.(type) {
		case *WriteTx:
			return casted, true
		case interface{ UnwrapWriteTx() db.WriteTx }:
			tx = casted.UnwrapWriteTx()
		default:
			return nil, false
		}
	}
}

func get(reader pebble.Reader, key []byte) ([]byte, error) {
	value, closer, err := reader.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	out := append([]byte{}, value...)
	if err := closer.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

func iterate(reader pebble.Reader, prefix []byte, callback func(key, value []byte) bool) error {
	iter, err := reader.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	for iter.First(); iter.Valid(); iter.Next() {
		if !callback(iter.Key()[len(prefix):], iter.Value()) {
			break
		}
	}
	if err := iter.Error(); err != nil {
		_ = iter.Close()
		return err
	}
	return iter.Close()
}

// keyUpperBound returns the smallest key greater than every key with the
// given prefix, or nil when the prefix is empty or all 0xff.
func keyUpperBound(b []byte) []byte {
	end := append([]byte{}, b...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
