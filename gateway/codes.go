package gateway

import "github.com/vireopay/fundflow/types"

// Gateway function codes. The code identifies the operation both on
// outbound requests and on the asynchronous callbacks the gateway sends
// back, so the callback processor dispatches on it.
const (
	FunctionNEC = "230"
	FunctionFTD = "241"
	FunctionFTC = "240"
	// FunctionTSQDefault is the common status query code; some gateway
	// deployments expect FunctionTSQAlt instead, selectable via config.
	FunctionTSQDefault = "230"
	FunctionTSQAlt     = "111"
)

// ActionSuccess is the gateway action code for an approved operation.
const ActionSuccess = "000"

// Well-known non-success codes seen on the wire. 381 and 999 are
// conclusive rejections; 990 is the gateway timeout code, inconclusive for
// classification but also the code reported to institutions when a
// transaction expires here.
const (
	ActionInvalidSession = "381"
	ActionSystemMalfunc  = "999"
	ActionTimeout        = "990"
)

// inconclusiveCodes are the action codes that leave the outcome of a leg
// in doubt. They must never be treated as a failure; the TSQ flow settles
// them.
var inconclusiveCodes = map[string]bool{
	"909": true, // gateway busy
	"912": true, // destination bank unavailable
	"990": true, // timeout waiting for destination
	"":    true, // absent code, nothing can be concluded
}

// Inconclusive reports whether the action code leaves the leg outcome
// unknown. An empty code (absent or null on the wire) is inconclusive.
func Inconclusive(code string) bool {
	return inconclusiveCodes[code]
}

// Success reports whether the action code is the approved outcome.
func Success(code string) bool {
	return code == ActionSuccess
}

// ConclusiveFailure reports whether the action code is a definitive
// rejection: neither approved nor inconclusive.
func ConclusiveFailure(code string) bool {
	return !Success(code) && !Inconclusive(code)
}

// LegFunction returns the function code carried on requests and callbacks
// of a transfer leg. Reversals travel as debit transfers with swapped
// direction, so they share the FTD code.
func LegFunction(leg types.TSQType) string {
	if leg == types.TSQTypeFTC {
		return FunctionFTC
	}
	return FunctionFTD
}
