package db

import "errors"

var (
	// ErrKeyNotFound is returned when a key is not found in the database.
	ErrKeyNotFound = errors.New("key not found")
	// ErrConflict is returned by WriteTx.Commit when a concurrent
	// transaction modified one of the keys read or written by this one.
	ErrConflict = errors.New("transaction conflict")
)

// Supported database backends.
const (
	TypePebble   = "pebble"
	TypeMongo    = "mongodb"
	TypeInMemory = "inmemory"
)

// Options defines generic parameters for creating a database.
type Options struct {
	// Path is the filesystem directory for disk backed databases, or the
	// database name for server backed ones.
	Path string
}

// Reader is the interface for read-only database access.
type Reader interface {
	// Get retrieves the value for the given key. It returns
	// ErrKeyNotFound if the key does not exist.
	Get(key []byte) ([]byte, error)
	// Iterate calls callback with all key-value pairs in the database
	// whose key starts with prefix. The prefix is stripped from the keys
	// passed to the callback. Keys are visited in ascending byte order,
	// and iteration stops when the callback returns false.
	//
	// The key and value byte slices are only valid during the callback
	// call; copy them if they must be kept.
	Iterate(prefix []byte, callback func(key, value []byte) bool) error
}

// WriteTx is a write transaction. Depending on the backend it may be a real
// transaction with conflict detection or just an atomic batch of writes.
type WriteTx interface {
	Reader
	// Set adds a key-value pair, overwriting any previous value.
	Set(key []byte, value []byte) error
	// Delete removes a key. Deleting a missing key is not an error.
	Delete(key []byte) error
	// Apply merges the pending writes of the given WriteTx, which must
	// belong to the same backend, into this one.
	Apply(WriteTx) error
	// Commit persists all pending writes. The transaction must not be
	// used afterwards.
	Commit() error
	// Discard drops all pending writes. Calling it after Commit is a
	// no-op, so it is safe to defer.
	Discard()
}

// Database is the interface implemented by every storage backend.
type Database interface {
	Reader
	// WriteTx creates a new write transaction.
	WriteTx() WriteTx
	// Close releases all database resources.
	Close() error
	// Compact triggers storage compaction, on backends that support it.
	Compact() error
}
