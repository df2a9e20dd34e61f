package storage

import (
	"fmt"
	"time"

	"github.com/vireopay/fundflow/db/prefixeddb"
	"github.com/vireopay/fundflow/types"
)

// sessionCounterKey holds the serial behind session IDs and tracking
// numbers. It is persisted so identifiers stay unique across restarts.
var sessionCounterKey = []byte("session")

const trackingDigits = 12

// NextSessionPair mints the session ID and tracking number for one gateway
// leg. The session ID is the minting bank code, the current timestamp in
// gateway format and a zero-padded serial; the tracking number is the
// serial alone. Every leg of a transaction gets a fresh pair.
func (s *Storage) NextSessionPair(bankCode string) (sessionID, trackingNumber string, err error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	if len(bankCode) != 6 {
		return "", "", fmt.Errorf("bank code must be 6 characters, got %q", bankCode)
	}

	var serial uint64
	if raw, err := prefixeddb.NewPrefixedReader(s.db, counterPrefix).Get(sessionCounterKey); err == nil {
		serial = decodeUint64(raw)
	}
	serial++

	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), counterPrefix)
	defer wTx.Discard()
	if err := wTx.Set(sessionCounterKey, encodeUint64(serial)); err != nil {
		return "", "", err
	}
	if err := wTx.Commit(); err != nil {
		return "", "", err
	}

	trackingNumber = fmt.Sprintf("%0*d", trackingDigits, serial%1_000_000_000_000)
	sessionID = bankCode + time.Now().Format(types.GatewayTimeLayout) + trackingNumber
	return sessionID, trackingNumber, nil
}
