package types

import (
	"encoding/json"
	"time"
)

// GatewayEventType identifies the gateway exchange an event records.
type GatewayEventType string

const (
	EventNECRequest          GatewayEventType = "NEC_REQUEST"
	EventFTDRequest          GatewayEventType = "FTD_REQUEST"
	EventFTDCallback         GatewayEventType = "FTD_CALLBACK"
	EventFTCRequest          GatewayEventType = "FTC_REQUEST"
	EventFTCCallback         GatewayEventType = "FTC_CALLBACK"
	EventReversalRequest     GatewayEventType = "REVERSAL_REQUEST"
	EventReversalCallback    GatewayEventType = "REVERSAL_CALLBACK"
	EventFTDTSQResponse      GatewayEventType = "FTD_TSQ_RESPONSE"
	EventFTCTSQResponse      GatewayEventType = "FTC_TSQ_RESPONSE"
	EventReversalTSQResponse GatewayEventType = "REVERSAL_TSQ_RESPONSE"
)

// Fixed sequence slots of the gateway events of a transaction. A request
// and its asynchronous response share a slot: the response updates the row
// the request created. TSQ responses claim a distinct slot per attempt
// starting at SeqTSQBase.
const (
	SeqNECRequest       = 1
	SeqFTDRequest       = 3
	SeqFTDCallback      = 4
	SeqFTCRequest       = 5
	SeqFTCCallback      = 6
	SeqReversalRequest  = 7
	SeqReversalCallback = 8
	SeqTSQBase          = 99
)

// GatewayEvent records one exchange with the gateway: the request sent or
// callback received, and the matching response payload once known. Events
// are upserted on (TxID, Seq) so a late response completes the row written
// when the request went out.
type GatewayEvent struct {
	TxID            string           `json:"txId"`
	Seq             int              `json:"seq"`
	Type            GatewayEventType `json:"type"`
	SessionID       string           `json:"sessionId,omitempty"`
	TrackingNumber  string           `json:"trackingNumber,omitempty"`
	FunctionCode    string           `json:"functionCode,omitempty"`
	RequestPayload  json.RawMessage  `json:"requestPayload,omitempty"`
	ResponsePayload json.RawMessage  `json:"responsePayload,omitempty"`
	ActionCode      string           `json:"actionCode,omitempty"`
	// DurationMs is the gateway round trip time of synchronous exchanges.
	DurationMs int64     `json:"durationMs,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// TSQEventType returns the event type recording a TSQ response for the
// given leg.
func TSQEventType(leg TSQType) GatewayEventType {
	switch leg {
	case TSQTypeFTC:
		return EventFTCTSQResponse
	case TSQTypeReversal:
		return EventReversalTSQResponse
	default:
		return EventFTDTSQResponse
	}
}
