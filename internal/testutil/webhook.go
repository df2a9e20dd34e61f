package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// WebhookDelivery is one request captured by the sink: the decoded body
// plus the signature headers the receiver would verify.
type WebhookDelivery struct {
	Body        map[string]any
	RawBody     []byte
	Signature   string
	TimestampMs string
	Reference   string
}

// WebhookSink plays the institution's webhook endpoint. Response statuses
// can be scripted in order; unscripted requests get 200.
type WebhookSink struct {
	mu       sync.Mutex
	statuses []int
	received []WebhookDelivery
	srv      *httptest.Server
}

// NewWebhookSink starts a sink server that is shut down with the test.
func NewWebhookSink(t *testing.T) *WebhookSink {
	t.Helper()
	s := &WebhookSink{}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.srv.Close)
	return s
}

// URL returns the sink's endpoint.
func (s *WebhookSink) URL() string {
	return s.srv.URL
}

// ScriptStatus queues the HTTP status returned to the next delivery.
func (s *WebhookSink) ScriptStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, code)
}

// Deliveries returns everything received so far, in arrival order.
func (s *WebhookSink) Deliveries() []WebhookDelivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WebhookDelivery, len(s.received))
	copy(out, s.received)
	return out
}

// Count returns how many deliveries arrived.
func (s *WebhookSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func (s *WebhookSink) handle(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	s.mu.Lock()
	s.received = append(s.received, WebhookDelivery{
		Body:        body,
		RawBody:     append([]byte(nil), raw...),
		Signature:   r.Header.Get("X-Webhook-Signature"),
		TimestampMs: r.Header.Get("X-Webhook-Timestamp"),
		Reference:   r.Header.Get("X-Transaction-Reference"),
	})
	status := http.StatusOK
	if len(s.statuses) > 0 {
		status = s.statuses[0]
		s.statuses = s.statuses[1:]
	}
	s.mu.Unlock()

	w.WriteHeader(status)
}
