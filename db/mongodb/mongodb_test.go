package mongodb

import (
	"fmt"
	"os"
	"testing"

	"github.com/vireopay/fundflow/db"
	"github.com/vireopay/fundflow/db/internal/dbtest"
	"github.com/vireopay/fundflow/db/prefixeddb"
	"github.com/vireopay/fundflow/util"
)

// newTestDB connects to the server referenced by MONGODB_URL using a
// random database name, or skips the test when no server is configured.
func newTestDB(tb testing.TB) *MongoDB {
	if os.Getenv("MONGODB_URL") == "" {
		tb.Skip("MONGODB_URL is not set")
	}
	database, err := New(db.Options{Path: "test_" + util.RandomHex(16)})
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

func TestWriteTx(t *testing.T) {
	dbtest.TestWriteTx(t, newTestDB(t))
}

func TestIterate(t *testing.T) {
	dbtest.TestIterate(t, newTestDB(t))
}

func TestWriteTxApply(t *testing.T) {
	dbtest.TestWriteTxApply(t, newTestDB(t))
}

func TestWriteTxApplyPrefixed(t *testing.T) {
	database := newTestDB(t)

	prefix := []byte("one")
	dbWithPrefix := prefixeddb.NewPrefixedDatabase(database, prefix)

	dbtest.TestWriteTxApplyPrefixed(t, database, dbWithPrefix)
}

func BenchmarkWriteTx(b *testing.B) {
	database := newTestDB(b)

	for b.Loop() {
		tx := database.WriteTx()
		if err := tx.Set([]byte("key"), []byte("value")); err != nil {
			b.Fatal(err)
		}
		if err := tx.Commit(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkIterate(b *testing.B) {
	database := newTestDB(b)

	tx := database.WriteTx()
	for i := range 10000 {
		if err := tx.Set(fmt.Appendf(nil, "key%d", i), []byte("value")); err != nil {
			b.Fatal(err)
		}
	}
	if err := tx.Commit(); err != nil {
		b.Fatal(err)
	}

	for b.Loop() {
		err := database.Iterate([]byte("key"), func(k, v []byte) bool {
			return true
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}
