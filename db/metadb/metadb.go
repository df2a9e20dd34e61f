// Package metadb constructs a db.Database from a backend type name, so
// callers pick the storage engine through configuration.
package metadb

import (
	"fmt"
	"testing"

	"github.com/vireopay/fundflow/db"
	"github.com/vireopay/fundflow/db/inmemory"
	"github.com/vireopay/fundflow/db/mongodb"
	"github.com/vireopay/fundflow/db/pebbledb"
)

// New creates a database of the given type. For disk backed databases dir
// is the data directory; for server backed ones it is the database name.
func New(typ, dir string) (db.Database, error) {
	var (
		database db.Database
		err      error
	)
	opts := db.Options{Path: dir}
	switch typ {
	case db.TypePebble:
		database, err = pebbledb.New(opts)
	case db.TypeMongo:
		database, err = mongodb.New(opts)
	case db.TypeInMemory:
		database, err = inmemory.New(opts)
	default:
		return nil, fmt.Errorf("invalid db type: %q", typ)
	}
	if err != nil {
		return nil, err
	}
	return database, nil
}

// NewTest returns a pebble database over a test temporary directory,
// closed automatically when the test finishes.
func NewTest(tb testing.TB) db.Database {
	database, err := New(db.TypePebble, tb.TempDir())
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() {
		if err := database.Close(); err != nil {
			tb.Error(err)
		}
	})
	return database
}
