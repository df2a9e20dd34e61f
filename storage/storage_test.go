package storage

import (
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vireopay/fundflow/db"
	"github.com/vireopay/fundflow/db/metadb"
	"github.com/vireopay/fundflow/types"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	database, err := metadb.New(db.TypePebble, filepath.Join(t.TempDir(), "db"))
	qt.Assert(t, err, qt.IsNil)
	st := New(database)
	t.Cleanup(st.Close)
	return st
}

// createTestTransaction builds a funds transfer in its initial state.
func createTestTransaction(id, reference string) *types.Transaction {
	return &types.Transaction{
		ID:                id,
		Reference:         reference,
		InstitutionID:     "inst-1",
		Type:              types.TxTypeFT,
		SrcBankCode:       "000014",
		SrcAccountNumber:  "0112345678",
		SrcAccountName:    "ADAEZE OKONKWO",
		DestBankCode:      "000013",
		DestAccountNumber: "0298765432",
		DestAccountName:   "EMEKA ADEBAYO",
		Narration:         "invoice 2041",
		Amount:            types.Amount(250000),
		Status:            types.StatusInitiated,
	}
}

func TestReleaseStaleReservations(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)

	testKey1 := []byte("testkey1")
	testKey2 := []byte("testkey2")
	testKey3 := []byte("testkey3")

	now := time.Now().Unix()

	// Fresh reservation (should not be released)
	freshData, err := EncodeArtifact(&reservationRecord{Timestamp: now})
	c.Assert(err, qt.IsNil)

	// Old reservations (should be released)
	oldData, err := EncodeArtifact(&reservationRecord{Timestamp: now - 15*60})
	c.Assert(err, qt.IsNil)
	veryOldData, err := EncodeArtifact(&reservationRecord{Timestamp: now - 30*60})
	c.Assert(err, qt.IsNil)

	c.Assert(st.setTestReservation(creditReservPrefix, testKey1, freshData), qt.IsNil)
	c.Assert(st.setTestReservation(creditReservPrefix, testKey2, oldData), qt.IsNil)
	c.Assert(st.setTestReservation(reversalReservPrefix, testKey3, veryOldData), qt.IsNil)

	c.Assert(st.isReserved(creditReservPrefix, testKey1), qt.IsTrue)
	c.Assert(st.isReserved(creditReservPrefix, testKey2), qt.IsTrue)
	c.Assert(st.isReserved(reversalReservPrefix, testKey3), qt.IsTrue)

	err = st.releaseStaleReservations(10 * time.Minute)
	c.Assert(err, qt.IsNil)

	// Fresh reservation survives, old ones are gone
	c.Assert(st.isReserved(creditReservPrefix, testKey1), qt.IsTrue)
	c.Assert(st.isReserved(creditReservPrefix, testKey2), qt.IsFalse)
	c.Assert(st.isReserved(reversalReservPrefix, testKey3), qt.IsFalse)
}

func TestReleaseStaleReservationsAllPrefixes(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)

	testKey := []byte("testkey")
	oldData, err := EncodeArtifact(&reservationRecord{Timestamp: time.Now().Unix() - 15*60})
	c.Assert(err, qt.IsNil)

	for _, prefix := range reservationPrefixes() {
		c.Assert(st.setTestReservation(prefix, testKey, oldData), qt.IsNil)
		c.Assert(st.isReserved(prefix, testKey), qt.IsTrue)
	}

	err = st.releaseStaleReservations(10 * time.Minute)
	c.Assert(err, qt.IsNil)

	for _, prefix := range reservationPrefixes() {
		c.Assert(st.isReserved(prefix, testKey), qt.IsFalse)
	}
}

func TestReleaseStaleReservationsInvalidData(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)

	// Undecodable reservations are treated as stale
	testKey := []byte("invalidkey")
	err := st.setTestReservation(creditReservPrefix, testKey, []byte("invalid reservation data"))
	c.Assert(err, qt.IsNil)
	c.Assert(st.isReserved(creditReservPrefix, testKey), qt.IsTrue)

	err = st.releaseStaleReservations(10 * time.Minute)
	c.Assert(err, qt.IsNil)
	c.Assert(st.isReserved(creditReservPrefix, testKey), qt.IsFalse)
}

func TestRecoverClearsAllReservations(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)

	testKey := []byte("testkey")
	data, err := EncodeArtifact(&reservationRecord{Timestamp: time.Now().Unix()})
	c.Assert(err, qt.IsNil)

	for _, prefix := range reservationPrefixes() {
		c.Assert(st.setTestReservation(prefix, testKey, data), qt.IsNil)
		c.Assert(st.isReserved(prefix, testKey), qt.IsTrue)
	}

	// Simulate a restart
	err = st.recover()
	c.Assert(err, qt.IsNil)

	for _, prefix := range reservationPrefixes() {
		c.Assert(st.isReserved(prefix, testKey), qt.IsFalse)
	}
}

// setTestReservation writes a reservation blob directly, bypassing
// setReservation, so tests control the timestamp.
func (s *Storage) setTestReservation(prefix, key, data []byte) error {
	wTx := s.db.WriteTx()
	defer wTx.Discard()

	prefixedKey := append(append([]byte(nil), prefix...), key...)
	if err := wTx.Set(prefixedKey, data); err != nil {
		return err
	}
	return wTx.Commit()
}
