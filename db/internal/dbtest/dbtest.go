// Package dbtest holds the conformance suite every db.Database backend
// must pass.
package dbtest

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/vireopay/fundflow/db"
)

// TestWriteTx exercises the set/get/delete/commit/discard contract.
func TestWriteTx(t *testing.T, database db.Database) {
	c := qt.New(t)

	wTx := database.WriteTx()
	defer wTx.Discard()

	_, err := wTx.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	c.Assert(wTx.Set([]byte("a"), []byte("b")), qt.IsNil)
	v, err := wTx.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("b"))
	c.Assert(wTx.Commit(), qt.IsNil)

	// a fresh tx observes the committed value
	wTx = database.WriteTx()
	defer wTx.Discard()
	v, err = wTx.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("b"))

	// and so does the database reader
	v, err = database.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("b"))

	c.Assert(wTx.Delete([]byte("a")), qt.IsNil)
	_, err = wTx.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
	c.Assert(wTx.Commit(), qt.IsNil)

	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	// discarded writes never land
	wTx = database.WriteTx()
	c.Assert(wTx.Set([]byte("x"), []byte("y")), qt.IsNil)
	wTx.Discard()
	_, err = database.Get([]byte("x"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
}

// TestIterate exercises prefix iteration, key stripping, ordering and
// early termination.
func TestIterate(t *testing.T, database db.Database) {
	c := qt.New(t)

	wTx := database.WriteTx()
	defer wTx.Discard()
	for _, kv := range [][2]string{
		{"ka1", "va1"},
		{"ka2", "va2"},
		{"kb1", "vb1"},
	} {
		c.Assert(wTx.Set([]byte(kv[0]), []byte(kv[1])), qt.IsNil)
	}
	c.Assert(wTx.Commit(), qt.IsNil)

	// full iteration yields every key in byte order
	var keys []string
	err := database.Iterate(nil, func(k, v []byte) bool {
		keys = append(keys, string(k))
		return true
	})
	c.Assert(err, qt.IsNil)
	c.Assert(keys, qt.DeepEquals, []string{"ka1", "ka2", "kb1"})

	// prefixed iteration strips the prefix from the yielded keys
	keys = nil
	var values []string
	err = database.Iterate([]byte("ka"), func(k, v []byte) bool {
		keys = append(keys, string(k))
		values = append(values, string(v))
		return true
	})
	c.Assert(err, qt.IsNil)
	c.Assert(keys, qt.DeepEquals, []string{"1", "2"})
	c.Assert(values, qt.DeepEquals, []string{"va1", "va2"})

	// returning false stops the iteration
	count := 0
	err = database.Iterate(nil, func(k, v []byte) bool {
		count++
		return false
	})
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, 1)

	// a WriteTx iteration observes its own pending writes
	wTx = database.WriteTx()
	defer wTx.Discard()
	c.Assert(wTx.Set([]byte("ka3"), []byte("va3")), qt.IsNil)
	c.Assert(wTx.Delete([]byte("ka1")), qt.IsNil)
	keys = nil
	err = wTx.Iterate([]byte("ka"), func(k, v []byte) bool {
		keys = append(keys, string(k))
		return true
	})
	c.Assert(err, qt.IsNil)
	c.Assert(keys, qt.DeepEquals, []string{"2", "3"})
}

// TestWriteTxApply exercises merging one transaction into another.
func TestWriteTxApply(t *testing.T, database db.Database) {
	c := qt.New(t)

	txA := database.WriteTx()
	defer txA.Discard()
	c.Assert(txA.Set([]byte("applied"), []byte("yes")), qt.IsNil)

	txB := database.WriteTx()
	defer txB.Discard()
	c.Assert(txB.Apply(txA), qt.IsNil)
	c.Assert(txB.Commit(), qt.IsNil)

	v, err := database.Get([]byte("applied"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("yes"))
}

// TestWriteTxApplyPrefixed checks that applying a prefixed transaction
// into an unprefixed one keeps the absolute keys.
func TestWriteTxApplyPrefixed(t *testing.T, database, prefixedDatabase db.Database) {
	c := qt.New(t)

	key := []byte("key1")
	value := []byte("value1")

	prefixedTx := prefixedDatabase.WriteTx()
	defer prefixedTx.Discard()
	c.Assert(prefixedTx.Set(key, value), qt.IsNil)

	tx := database.WriteTx()
	defer tx.Discard()
	c.Assert(tx.Apply(prefixedTx), qt.IsNil)
	c.Assert(tx.Commit(), qt.IsNil)

	v, err := prefixedDatabase.Get(key)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, value)
}

// TestConcurrentWriteTx checks commit-time conflict detection. Only
// backends with real transactions pass it; batch based ones do not run it.
func TestConcurrentWriteTx(t *testing.T, database db.Database) {
	c := qt.New(t)

	txA := database.WriteTx()
	defer txA.Discard()
	txB := database.WriteTx()
	defer txB.Discard()

	_, err := txA.Get([]byte("contended"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
	c.Assert(txA.Set([]byte("contended"), []byte("a")), qt.IsNil)
	c.Assert(txB.Set([]byte("contended"), []byte("b")), qt.IsNil)

	c.Assert(txA.Commit(), qt.IsNil)
	c.Assert(txB.Commit(), qt.ErrorIs, db.ErrConflict)
}
