package types

import (
	"encoding/json"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestAmountGatewayString(t *testing.T) {
	c := qt.New(t)

	c.Assert(Amount(100050).GatewayString(), qt.Equals, "000000100050")
	c.Assert(Amount(0).GatewayString(), qt.Equals, "000000000000")
	c.Assert(Amount(1).GatewayString(), qt.Equals, "000000000001")
	c.Assert(Amount(999999999999).GatewayString(), qt.Equals, "999999999999")
}

func TestParseAmount(t *testing.T) {
	c := qt.New(t)

	for _, tc := range []struct {
		in   string
		want Amount
	}{
		{"1000.50", 100050},
		{"1000.5", 100050},
		{"1000", 100000},
		{"0.07", 7},
		{"0", 0},
		{"-12.34", -1234},
	} {
		got, err := ParseAmount(tc.in)
		c.Assert(err, qt.IsNil, qt.Commentf("input %q", tc.in))
		c.Assert(got, qt.Equals, tc.want, qt.Commentf("input %q", tc.in))
	}

	for _, in := range []string{"", ".", "1.234", "12,34", "abc", "12.x"} {
		_, err := ParseAmount(in)
		c.Assert(err, qt.IsNotNil, qt.Commentf("input %q", in))
	}
}

func TestParseGatewayAmount(t *testing.T) {
	c := qt.New(t)

	got, err := ParseGatewayAmount("000000100050")
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, Amount(100050))

	_, err = ParseGatewayAmount("12AB")
	c.Assert(err, qt.IsNotNil)
}

func TestAmountJSON(t *testing.T) {
	c := qt.New(t)

	data, err := json.Marshal(Amount(100050))
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, `"1000.50"`)

	var a Amount
	c.Assert(json.Unmarshal([]byte(`"1000.50"`), &a), qt.IsNil)
	c.Assert(a, qt.Equals, Amount(100050))

	// bare numbers are parsed from their raw text, not via float
	c.Assert(json.Unmarshal([]byte(`250.10`), &a), qt.IsNil)
	c.Assert(a, qt.Equals, Amount(25010))
}
