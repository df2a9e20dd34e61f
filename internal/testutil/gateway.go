// Package testutil provides fixtures shared by integration-style tests: a
// programmable clearing gateway stub and deterministic record builders.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Gateway operation kinds used to script and inspect the stub. The stub
// classifies incoming requests by path and payload, so tests do not need
// to care which wire paths share a function code.
const (
	OpNEC      = "nec"
	OpFTD      = "ftd"
	OpFTC      = "ftc"
	OpReversal = "reversal"
	OpTSQ      = "tsq"
)

// ScriptedResponse is one prepared gateway answer.
type ScriptedResponse struct {
	Status int
	Body   map[string]any
}

// Approved returns the stock success answer.
func Approved() ScriptedResponse {
	return ScriptedResponse{
		Status: http.StatusOK,
		Body:   map[string]any{"actionCode": "000", "responseMessage": "Approved or completed successfully"},
	}
}

// GatewayStub is an in-memory clearing gateway. Responses are scripted per
// operation and consumed in order; when a queue is empty the default
// answer (success) is served. Every request body is recorded.
type GatewayStub struct {
	mu       sync.Mutex
	scripted map[string][]ScriptedResponse
	fallback ScriptedResponse
	requests map[string][]map[string]any
	srv      *httptest.Server
}

// NewGatewayStub starts a stub server that is shut down with the test.
func NewGatewayStub(t *testing.T) *GatewayStub {
	t.Helper()
	g := &GatewayStub{
		scripted: map[string][]ScriptedResponse{},
		fallback: Approved(),
		requests: map[string][]map[string]any{},
	}
	g.srv = httptest.NewServer(http.HandlerFunc(g.handle))
	t.Cleanup(g.srv.Close)
	return g
}

// URL returns the stub's base URL for the gateway client configuration.
func (g *GatewayStub) URL() string {
	return g.srv.URL
}

// Close shuts the stub down early so tests can simulate a gateway outage.
// Safe to call more than once.
func (g *GatewayStub) Close() {
	g.srv.Close()
}

// Script queues the next answer served to the given operation.
func (g *GatewayStub) Script(op string, resp ScriptedResponse) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scripted[op] = append(g.scripted[op], resp)
}

// ScriptCode queues a 200 answer carrying just an action code.
func (g *GatewayStub) ScriptCode(op, actionCode string) {
	g.Script(op, ScriptedResponse{
		Status: http.StatusOK,
		Body:   map[string]any{"actionCode": actionCode},
	})
}

// ScriptTSQ queues a status query answer with the (actionCode, statusCode)
// pair the decision table keys on.
func (g *GatewayStub) ScriptTSQ(actionCode, statusCode string) {
	g.Script(OpTSQ, ScriptedResponse{
		Status: http.StatusOK,
		Body:   map[string]any{"actionCode": actionCode, "statusCode": statusCode},
	})
}

// SetDefault replaces the fallback answer.
func (g *GatewayStub) SetDefault(resp ScriptedResponse) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fallback = resp
}

// Requests returns the recorded request bodies of an operation, in arrival
// order.
func (g *GatewayStub) Requests(op string) []map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]map[string]any, len(g.requests[op]))
	copy(out, g.requests[op])
	return out
}

// CallCount returns how many requests an operation received.
func (g *GatewayStub) CallCount(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests[op])
}

// LastRequest returns the most recent request body of an operation, or nil.
func (g *GatewayStub) LastRequest(op string) map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	q := g.requests[op]
	if len(q) == 0 {
		return nil
	}
	return q[len(q)-1]
}

func (g *GatewayStub) handle(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	op := classify(r.URL.Path, body)

	g.mu.Lock()
	g.requests[op] = append(g.requests[op], body)
	resp := g.fallback
	if q := g.scripted[op]; len(q) > 0 {
		resp = q[0]
		g.scripted[op] = q[1:]
	}
	g.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	if err := json.NewEncoder(w).Encode(resp.Body); err != nil {
		return
	}
}

// classify maps a request onto its operation kind. Name enquiries and
// status queries have their own paths; debit, credit and reversal share
// the transfer path and are told apart by function code and the reversal
// narration prefix.
func classify(path string, body map[string]any) string {
	switch {
	case strings.Contains(path, "nameenquiry"):
		return OpNEC
	case strings.Contains(path, "tsq"):
		return OpTSQ
	}
	if fc, _ := body["functionCode"].(string); fc == "240" {
		return OpFTC
	}
	if narration, _ := body["narration"].(string); strings.HasPrefix(narration, "REVERSAL: ") {
		return OpReversal
	}
	return OpFTD
}
