package api

import (
	"fmt"
	"net/url"
	"strings"
)

// Route constants for the API endpoints

const (
	// Health endpoints
	PingEndpoint    = "/ping"    // Health check endpoint
	MetricsEndpoint = "/metrics" // Prometheus metrics endpoint

	// Submission endpoints
	EnquiryEndpoint  = "/v1/enquiry"  // POST: Submit a name enquiry
	TransferEndpoint = "/v1/transfer" // POST: Submit a funds transfer

	// Transaction endpoints
	ReferenceURLParam         = "reference"                                     // URL parameter for the institution reference number
	TransactionEndpoint       = "/v1/transactions/{" + ReferenceURLParam + "}"  // GET: Transaction status with events and audit trail
	TransactionEventsEndpoint = TransactionEndpoint + "/events"                 // GET: Gateway events of a transaction
	TransactionTSQEndpoint    = TransactionEndpoint + "/tsq"                    // POST: On-demand status query against the gateway

	// Gateway callback intake
	GatewayCallbackEndpoint = "/v1/gateway/callback" // POST: Asynchronous gateway notification intake

	// Registry admin endpoints
	InstitutionsEndpoint = "/v1/institutions" // POST: Register institution, GET: List institutions
	ParticipantsEndpoint = "/v1/participants" // POST: Register participant bank, GET: List participants
)

// EndpointWithParam creates an endpoint URL by replacing the parameter
// placeholder with the actual value. Used to build fully qualified
// endpoint URLs.
func EndpointWithParam(path, key, param string) string {
	rawKey := fmt.Sprintf("{%s}", key)

	// Always try to replace the placeholder, even if it's after the '?'
	if strings.Contains(path, rawKey) {
		return strings.Replace(path, rawKey, url.PathEscape(param), 1)
	}

	// Fallback: add as query param
	escapedKey := url.QueryEscape(key)
	escapedVal := url.QueryEscape(param)

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	return fmt.Sprintf("%s%s%s=%s", path, sep, escapedKey, escapedVal)
}

// LogExcludedPrefixes defines URL prefixes to exclude from request logging
var LogExcludedPrefixes = []string{
	PingEndpoint,
	MetricsEndpoint,
}
