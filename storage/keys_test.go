package storage

import (
	"bytes"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestTimeKeyRoundTrip(t *testing.T) {
	c := qt.New(t)

	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	k := timeKey(at, "tx-123")

	got, txID, ok := splitTimeKey(k)
	c.Assert(ok, qt.IsTrue)
	c.Assert(txID, qt.Equals, "tx-123")
	c.Assert(got.Unix(), qt.Equals, at.Unix())

	_, _, ok = splitTimeKey([]byte("short"))
	c.Assert(ok, qt.IsFalse)
}

func TestTimeKeyOrdering(t *testing.T) {
	c := qt.New(t)

	base := time.Now()
	earlier := timeKey(base, "tx-b")
	later := timeKey(base.Add(time.Second), "tx-a")
	// byte order follows time order regardless of the ID suffix
	c.Assert(bytes.Compare(earlier, later) < 0, qt.IsTrue)
}

func TestSeqKeyOrdering(t *testing.T) {
	c := qt.New(t)

	low := seqKey("tx-1", 4)
	high := seqKey("tx-1", 99)
	c.Assert(bytes.Compare(low, high) < 0, qt.IsTrue)
	c.Assert(bytes.HasPrefix(low, seqKeyPrefix("tx-1")), qt.IsTrue)
	c.Assert(bytes.HasPrefix(low, seqKeyPrefix("tx-2")), qt.IsFalse)
}

func TestRefKeyScopedByInstitution(t *testing.T) {
	c := qt.New(t)

	c.Assert(refKey("inst-1", "REF-1"), qt.DeepEquals, []byte("inst-1/REF-1"))
	c.Assert(bytes.Equal(refKey("inst-1", "REF-1"), refKey("inst-2", "REF-1")), qt.IsFalse)
}
