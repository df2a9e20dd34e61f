package api

import (
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vireopay/fundflow/gateway"
	"github.com/vireopay/fundflow/log"
	"github.com/vireopay/fundflow/metrics"
	"github.com/vireopay/fundflow/types"
)

// gatewayAckBody acknowledges every callback delivery. The gateway treats
// anything else as undelivered and redelivers.
var gatewayAckBody = &GatewayAck{ResponseCode: "00"}

// gatewayCallback ingests an asynchronous gateway notification
// POST /v1/gateway/callback
//
// The row is persisted before the acknowledgement so a crash cannot lose
// a notification, and the response is 200 with responseCode "00" even for
// bodies we cannot decode: redelivering a malformed callback would only
// produce the same row again. Correlation and settlement happen later in
// the callback worker.
func (a *API) gatewayCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		ErrGenericInternalServerError.Withf("could not read callback body: %v", err).Write(w)
		return
	}

	cb := &types.GatewayCallback{
		ID:              uuid.New().String(),
		ResponsePayload: body,
		SourceIP:        r.RemoteAddr,
		Status:          types.CallbackPending,
		ReceivedAt:      time.Now(),
	}
	resp, err := gateway.ParseResponse(body)
	if err != nil {
		cb.Status = types.CallbackError
		cb.Error = "malformed callback body: " + err.Error()
		log.Warnw("malformed gateway callback", "callback", cb.ID, "error", err)
	} else {
		cb.SessionID = resp.SessionID
		cb.FunctionCode = resp.FunctionCode
		cb.ActionCode = resp.ActionCode
	}

	if err := a.storage.PushGatewayCallback(cb); err != nil {
		// the gateway retries on non-200, which is the behavior we want
		// when the store is the thing that failed
		ErrGenericInternalServerError.Withf("could not persist callback: %v", err).Write(w)
		return
	}
	metrics.GatewayCallbacks.WithLabelValues("received").Inc()
	log.Infow("gateway callback received",
		"callback", cb.ID, "session", cb.SessionID,
		"function", cb.FunctionCode, "action", cb.ActionCode)

	httpWriteJSON(w, gatewayAckBody)
}
