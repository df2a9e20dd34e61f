// Package prefixeddb exposes database views that transparently prepend a
// fixed prefix to every key, so independent subsystems can share a single
// db.Database without key collisions.
package prefixeddb

import (
	"github.com/vireopay/fundflow/db"
)

// PrefixedDatabase wraps a db.Database scoping all keys under a prefix.
type PrefixedDatabase struct {
	db     db.Database
	prefix []byte
}

// NewPrefixedDatabase returns a view of database where every key is
// prepended with prefix.
func NewPrefixedDatabase(database db.Database, prefix []byte) *PrefixedDatabase {
	return &PrefixedDatabase{
		db:     database,
		prefix: prefix,
	}
}

// Close closes the underlying database.
func (d *PrefixedDatabase) Close() error {
	return d.db.Close()
}

// Compact compacts the underlying database.
func (d *PrefixedDatabase) Compact() error {
	return d.db.Compact()
}

// Get retrieves the value for the given key within the prefix.
func (d *PrefixedDatabase) Get(key []byte) ([]byte, error) {
	return d.db.Get(concat(d.prefix, key))
}

// Iterate calls callback with all key-value pairs under the combined
// prefix. Both the database prefix and the given prefix are stripped from
// the keys passed to the callback.
func (d *PrefixedDatabase) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return d.db.Iterate(concat(d.prefix, prefix), callback)
}

// WriteTx creates a prefixed write transaction.
func (d *PrefixedDatabase) WriteTx() db.WriteTx {
	return NewPrefixedWriteTx(d.db.WriteTx(), d.prefix)
}

// PrefixedReader wraps a db.Reader scoping all keys under a prefix.
type PrefixedReader struct {
	reader db.Reader
	prefix []byte
}

// NewPrefixedReader returns a view of reader where every key is prepended
// with prefix.
func NewPrefixedReader(reader db.Reader, prefix []byte) *PrefixedReader {
	return &PrefixedReader{
		reader: reader,
		prefix: prefix,
	}
}

// Get retrieves the value for the given key within the prefix.
func (r *PrefixedReader) Get(key []byte) ([]byte, error) {
	return r.reader.Get(concat(r.prefix, key))
}

// Iterate calls callback with all key-value pairs under the combined prefix.
func (r *PrefixedReader) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return r.reader.Iterate(concat(r.prefix, prefix), callback)
}

// PrefixedWriteTx wraps a db.WriteTx scoping all keys under a prefix.
type PrefixedWriteTx struct {
	tx     db.WriteTx
	prefix []byte
}

// NewPrefixedWriteTx returns a view of tx where every key is prepended
// with prefix.
func NewPrefixedWriteTx(tx db.WriteTx, prefix []byte) *PrefixedWriteTx {
	return &PrefixedWriteTx{
		tx:     tx,
		prefix: prefix,
	}
}

// Get retrieves the value for the given key within the prefix.
func (t *PrefixedWriteTx) Get(key []byte) ([]byte, error) {
	return t.tx.Get(concat(t.prefix, key))
}

// Iterate calls callback with all key-value pairs under the combined prefix.
func (t *PrefixedWriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return t.tx.Iterate(concat(t.prefix, prefix), callback)
}

// Set adds a key-value pair within the prefix.
func (t *PrefixedWriteTx) Set(key, value []byte) error {
	return t.tx.Set(concat(t.prefix, key), value)
}

// Delete removes a key within the prefix.
func (t *PrefixedWriteTx) Delete(key []byte) error {
	return t.tx.Delete(concat(t.prefix, key))
}

// Apply merges the pending writes of the given transaction into the
// underlying one, keeping their absolute keys.
func (t *PrefixedWriteTx) Apply(other db.WriteTx) error {
	return t.tx.Apply(other)
}

// Commit persists all pending writes of the underlying transaction.
func (t *PrefixedWriteTx) Commit() error {
	return t.tx.Commit()
}

// Discard drops all pending writes of the underlying transaction.
func (t *PrefixedWriteTx) Discard() {
	t.tx.Discard()
}

// UnwrapWriteTx returns the wrapped transaction, so backends can reach
// their native type when applying transactions across wrappers.
func (t *PrefixedWriteTx) UnwrapWriteTx() db.WriteTx {
	return t.tx
}

func concat(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
