package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatINR(t *testing.T) {
	cases := map[string]string{
		"1000":     "₹1,000.00",
		"900":      "₹900.00",
		"450.5":    "₹450.50",
		"-25":      "-₹25.00",
		"0.004":    "₹0.00",
		"99.999":   "₹100.00",
		"123456":   "₹1,23,456.00",
		"10000000": "₹1,00,00,000.00",
	}
	for in, want := range cases {
		if got := FormatINR(decimal.RequireFromString(in)); got != want {
			t.Fatalf("FormatINR(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestPlain(t *testing.T) {
	if got := Plain(decimal.RequireFromString("474")); got != "474.00" {
		t.Fatalf("unexpected plain amount %q", got)
	}
	if Code != "INR" {
		t.Fatalf("unexpected currency code %q", Code)
	}
}
