package storage

import (
	"encoding/binary"
	"time"
)

// timeKey builds a key that sorts by time: 8 bytes of big-endian unix
// seconds followed by the transaction ID.
func timeKey(at time.Time, txID string) []byte {
	k := make([]byte, 8, 8+len(txID))
	binary.BigEndian.PutUint64(k, uint64(at.Unix()))
	return append(k, txID...)
}

// splitTimeKey is the inverse of timeKey.
func splitTimeKey(k []byte) (time.Time, string, bool) {
	if len(k) < 8 {
		return time.Time{}, "", false
	}
	return time.Unix(int64(binary.BigEndian.Uint64(k[:8])), 0), string(k[8:]), true
}

// seqKey builds a key that sorts by sequence number within a transaction.
func seqKey(txID string, seq uint64) []byte {
	k := make([]byte, 0, len(txID)+1+8)
	k = append(k, txID...)
	k = append(k, '/')
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return append(k, b[:]...)
}

// seqKeyPrefix matches every seqKey of a transaction.
func seqKeyPrefix(txID string) []byte {
	return append([]byte(txID), '/')
}

// refKey builds the reference uniqueness key. References are unique per
// institution, not globally.
func refKey(institutionID, reference string) []byte {
	k := make([]byte, 0, len(institutionID)+1+len(reference))
	k = append(k, institutionID...)
	k = append(k, '/')
	return append(k, reference...)
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func decodeUint64(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
