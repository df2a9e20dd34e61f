package types

// Timestamp layouts of the two wire surfaces.
const (
	// GatewayTimeLayout is the compact YYMMDDHHmmss format of gateway
	// payload dateTime fields.
	GatewayTimeLayout = "060102150405"
	// CallbackTimeLayout is the requestTimestamp format of client webhook
	// payloads.
	CallbackTimeLayout = "2006-01-02 15:04:05"
)
