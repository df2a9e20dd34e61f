package gateway

import (
	"encoding/json"
	"time"

	"github.com/vireopay/fundflow/types"
)

// Request is the JSON body of every outbound gateway operation. The same
// shape serves all five operations; which fields matter depends on the
// function code.
type Request struct {
	DateTime        string `json:"dateTime"`
	SessionID       string `json:"sessionId"`
	TrackingNumber  string `json:"trackingNumber"`
	FunctionCode    string `json:"functionCode"`
	ChannelCode     string `json:"channelCode"`
	OriginBank      string `json:"originBank"`
	DestBank        string `json:"destBank"`
	AccountToDebit  string `json:"accountToDebit"`
	AccountToCredit string `json:"accountToCredit"`
	NameToDebit     string `json:"nameToDebit,omitempty"`
	NameToCredit    string `json:"nameToCredit,omitempty"`
	Amount          string `json:"amount"`
	Narration       string `json:"narration,omitempty"`
	CallbackURL     string `json:"callbackUrl,omitempty"`
}

// Response is a normalized gateway reply: either the synchronous body of
// an outbound call or an asynchronous callback body. The gateway is not
// consistent about field spelling, so decoding accepts both camelCase and
// snake_case.
type Response struct {
	ActionCode string
	// StatusCode is only present on status query replies: the gateway's
	// view of the queried leg, as opposed to ActionCode which grades the
	// query itself.
	StatusCode      string
	ResponseMessage string
	SessionID       string
	TrackingNumber  string
	FunctionCode    string
	ApprovalCode    string
	// AccountName is the resolved payee name of a name enquiry.
	AccountName    string
	NameEnquiryRef string

	// Raw is the body exactly as received.
	Raw json.RawMessage `json:"-"`
	// HTTPStatus and Duration describe the synchronous exchange; both are
	// zero for callback bodies.
	HTTPStatus int           `json:"-"`
	Duration   time.Duration `json:"-"`
}

// looseResponse carries every accepted spelling of every response field.
type looseResponse struct {
	ActionCode       string `json:"actionCode"`
	ActionCodeS      string `json:"action_code"`
	StatusCode       string `json:"statusCode"`
	StatusCodeS      string `json:"status_code"`
	ResponseMessage  string `json:"responseMessage"`
	ResponseMessageS string `json:"response_message"`
	SessionID        string `json:"sessionId"`
	SessionIDS       string `json:"session_id"`
	TrackingNumber   string `json:"trackingNumber"`
	TrackingNumberS  string `json:"tracking_number"`
	FunctionCode     string `json:"functionCode"`
	FunctionCodeS    string `json:"function_code"`
	ApprovalCode     string `json:"approvalCode"`
	ApprovalCodeS    string `json:"approval_code"`
	AccountName      string `json:"accountName"`
	AccountNameS     string `json:"account_name"`
	NameEnquiryRef   string `json:"nameEnquiryRef"`
	NameEnquiryRefS  string `json:"name_enquiry_ref"`
}

func first(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// ParseResponse decodes a gateway body, camelCase or snake_case. The raw
// bytes are kept on the result verbatim.
func ParseResponse(data []byte) (*Response, error) {
	var loose looseResponse
	if err := json.Unmarshal(data, &loose); err != nil {
		return nil, err
	}
	return &Response{
		ActionCode:      first(loose.ActionCode, loose.ActionCodeS),
		StatusCode:      first(loose.StatusCode, loose.StatusCodeS),
		ResponseMessage: first(loose.ResponseMessage, loose.ResponseMessageS),
		SessionID:       first(loose.SessionID, loose.SessionIDS),
		TrackingNumber:  first(loose.TrackingNumber, loose.TrackingNumberS),
		FunctionCode:    first(loose.FunctionCode, loose.FunctionCodeS),
		ApprovalCode:    first(loose.ApprovalCode, loose.ApprovalCodeS),
		AccountName:     first(loose.AccountName, loose.AccountNameS),
		NameEnquiryRef:  first(loose.NameEnquiryRef, loose.NameEnquiryRefS),
		Raw:             append(json.RawMessage(nil), data...),
	}, nil
}

// newRequest fills the fields common to every operation.
func (c *Client) newRequest(functionCode, sessionID, trackingNumber string, amount types.Amount) Request {
	return Request{
		DateTime:       time.Now().Format(types.GatewayTimeLayout),
		SessionID:      sessionID,
		TrackingNumber: trackingNumber,
		FunctionCode:   functionCode,
		ChannelCode:    c.cfg.ChannelCode,
		Amount:         amount.GatewayString(),
		CallbackURL:    c.cfg.CallbackURL,
	}
}

// NECRequest asks the destination bank for the payee account name. NEC
// carries a zero amount.
func (c *Client) NECRequest(tx *types.Transaction) Request {
	req := c.newRequest(c.cfg.FunctionNEC, tx.SessionID, tx.TrackingNumber, 0)
	req.OriginBank = tx.SrcBankCode
	req.DestBank = tx.DestBankCode
	req.AccountToDebit = tx.SrcAccountNumber
	req.AccountToCredit = tx.DestAccountNumber
	req.NameToDebit = tx.SrcAccountName
	return req
}

// FTDRequest debits the source account: origin is the source side.
func (c *Client) FTDRequest(tx *types.Transaction) Request {
	req := c.newRequest(c.cfg.FunctionFTD, tx.SessionID, tx.TrackingNumber, tx.Amount)
	req.OriginBank = tx.SrcBankCode
	req.DestBank = tx.DestBankCode
	req.AccountToDebit = tx.SrcAccountNumber
	req.AccountToCredit = tx.DestAccountNumber
	req.NameToDebit = tx.SrcAccountName
	req.NameToCredit = tx.DestAccountName
	req.Narration = tx.Narration
	return req
}

// FTCRequest credits the destination account. Only the banks swap: the
// origin of the credit leg is the destination bank, while the account
// fields keep the debit-leg orientation. Uses the credit leg session pair.
func (c *Client) FTCRequest(tx *types.Transaction) Request {
	req := c.newRequest(c.cfg.FunctionFTC, tx.FTCSessionID, tx.FTCTrackingNumber, tx.Amount)
	req.OriginBank = tx.DestBankCode
	req.DestBank = tx.SrcBankCode
	req.AccountToDebit = tx.SrcAccountNumber
	req.AccountToCredit = tx.DestAccountNumber
	req.NameToDebit = tx.SrcAccountName
	req.NameToCredit = tx.DestAccountName
	req.Narration = tx.Narration
	return req
}

// ReversalRequest returns the money to the source: a full mirror of the
// debit leg, banks, accounts and names all swapped, same function code as
// FTD, fresh session pair, narration marked.
func (c *Client) ReversalRequest(tx *types.Transaction) Request {
	req := c.newRequest(c.cfg.FunctionFTD, tx.ReversalSessionID, tx.ReversalTrackingNumber, tx.Amount)
	req.OriginBank = tx.DestBankCode
	req.DestBank = tx.SrcBankCode
	req.AccountToDebit = tx.DestAccountNumber
	req.AccountToCredit = tx.SrcAccountNumber
	req.NameToDebit = tx.DestAccountName
	req.NameToCredit = tx.SrcAccountName
	req.Narration = "REVERSAL: " + tx.Narration
	return req
}

// TSQRequest queries the status of one leg, identified by that leg's own
// session pair. Accounts and amount travel in debit-leg orientation.
func (c *Client) TSQRequest(tx *types.Transaction, leg types.TSQType) Request {
	sessionID, trackingNumber := tx.LegSession(leg)
	req := c.newRequest(c.cfg.FunctionTSQ, sessionID, trackingNumber, tx.Amount)
	req.OriginBank = tx.SrcBankCode
	req.DestBank = tx.DestBankCode
	req.AccountToDebit = tx.SrcAccountNumber
	req.AccountToCredit = tx.DestAccountNumber
	return req
}
