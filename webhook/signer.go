package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Sign computes the webhook signature: HMAC-SHA256 over the string
// "{timestampMs}.{payload}" keyed with the institution secret, hex encoded.
// Receivers rebuild the same string from the X-Webhook-Timestamp header and
// the body to verify.
func Sign(secret string, timestampMs int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestampMs, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether the signature matches the payload. Constant time.
func Verify(secret string, timestampMs int64, payload []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, timestampMs, payload)), []byte(signature))
}
