package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vireopay/fundflow/types"
)

func TestSignMatchesManualHMAC(t *testing.T) {
	c := qt.New(t)
	payload := []byte(`{"referenceNumber":"REF-1","status":"SUCCESSFUL"}`)
	secret := "whsec_test"
	ts := int64(1724500000000)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10) + "."))
	mac.Write(payload)
	want := hex.EncodeToString(mac.Sum(nil))

	c.Assert(Sign(secret, ts, payload), qt.Equals, want)
	c.Assert(Verify(secret, ts, payload, want), qt.IsTrue)
	c.Assert(Verify(secret, ts, []byte(`tampered`), want), qt.IsFalse)
	c.Assert(Verify("wrong", ts, payload, want), qt.IsFalse)
}

func TestRetryPolicyDelays(t *testing.T) {
	c := qt.New(t)
	p := DefaultRetryPolicy()
	c.Assert(p.NextDelay(1), qt.Equals, 5*time.Second)
	c.Assert(p.NextDelay(2), qt.Equals, 10*time.Second)
	c.Assert(p.NextDelay(3), qt.Equals, 20*time.Second)
	c.Assert(p.NextDelay(4), qt.Equals, 40*time.Second)
	// far past the cap
	c.Assert(p.NextDelay(30), qt.Equals, 3600*time.Second)
}

func TestDeliverSignsAndPosts(t *testing.T) {
	c := qt.New(t)
	payload := []byte(`{"referenceNumber":"REF-7","status":"FAILED"}`)
	secret := "whsec_inst1"

	var gotSig, gotTs, gotRef, gotUA string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Webhook-Signature")
		gotTs = r.Header.Get("X-Webhook-Timestamp")
		gotRef = r.Header.Get("X-Transaction-Reference")
		gotUA = r.Header.Get("User-Agent")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cb := &types.ClientCallback{
		ID:        "cb-1",
		Reference: "REF-7",
		URL:       srv.URL,
		Payload:   payload,
	}
	n := NewNotifier(5 * time.Second)
	status, err := n.Deliver(context.Background(), cb, secret)
	c.Assert(err, qt.IsNil)
	c.Assert(Delivered(status), qt.IsTrue)
	c.Assert(gotBody, qt.DeepEquals, payload)
	c.Assert(gotRef, qt.Equals, "REF-7")
	c.Assert(gotUA, qt.Equals, "FundManagement-Webhook/1.0")

	ts, err := strconv.ParseInt(gotTs, 10, 64)
	c.Assert(err, qt.IsNil)
	c.Assert(Verify(secret, ts, payload, gotSig), qt.IsTrue)
}

func TestDeliverTransportError(t *testing.T) {
	c := qt.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	cb := &types.ClientCallback{ID: "cb-2", Reference: "REF-8", URL: srv.URL, Payload: []byte(`{}`)}
	n := NewNotifier(2 * time.Second)
	_, err := n.Deliver(context.Background(), cb, "s")
	c.Assert(err, qt.IsNotNil)
}

func TestDeliveredClassification(t *testing.T) {
	c := qt.New(t)
	c.Assert(Delivered(200), qt.IsTrue)
	c.Assert(Delivered(204), qt.IsTrue)
	c.Assert(Delivered(301), qt.IsFalse)
	c.Assert(Delivered(404), qt.IsFalse)
	c.Assert(Delivered(503), qt.IsFalse)
}
