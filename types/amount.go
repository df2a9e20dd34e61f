package types

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Amount is a monetary amount in minor units (cents). All arithmetic is
// integer, decimal strings are parsed and rendered without ever passing
// through floats.
type Amount int64

// gatewayAmountDigits is the fixed width of amounts on the gateway wire.
const gatewayAmountDigits = 12

// GatewayString formats the amount as the zero padded twelve digit minor
// unit string the gateway expects, e.g. 100050 -> "000000100050".
func (a Amount) GatewayString() string {
	return fmt.Sprintf("%0*d", gatewayAmountDigits, int64(a))
}

// String renders the amount as a decimal units string, e.g. "1000.50".
func (a Amount) String() string {
	v := int64(a)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// ParseAmount parses a decimal units string such as "1000.50" or "250"
// into an Amount. At most two fraction digits are accepted.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	negative := false
	if s[0] == '-' {
		negative = true
		s = s[1:]
	}
	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	if intPart == "" {
		return 0, fmt.Errorf("malformed amount %q", s)
	}
	units, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed amount %q: %w", s, err)
	}
	var cents int64
	if hasFrac {
		switch len(fracPart) {
		case 1:
			cents, err = strconv.ParseInt(fracPart, 10, 64)
			cents *= 10
		case 2:
			cents, err = strconv.ParseInt(fracPart, 10, 64)
		default:
			return 0, fmt.Errorf("amount %q has more than two fraction digits", s)
		}
		if err != nil || cents < 0 {
			return 0, fmt.Errorf("malformed amount %q", s)
		}
	}
	total := units*100 + cents
	if negative {
		total = -total
	}
	return Amount(total), nil
}

// ParseGatewayAmount parses a zero padded minor unit amount from the
// gateway wire, e.g. "000000100050" -> 100050.
func ParseGatewayAmount(s string) (Amount, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed gateway amount %q: %w", s, err)
	}
	return Amount(v), nil
}

// MarshalJSON renders the amount as a quoted decimal units string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts both a quoted decimal string ("1000.50") and a
// bare JSON number. Numbers are parsed from their raw text, so fractional
// amounts never go through float conversion.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(data), `"`))
	if s == "null" || s == "" {
		*a = 0
		return nil
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
