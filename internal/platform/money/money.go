// Package money formats rupee amounts for display.
package money

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Code is the ISO 4217 code of every amount handled by the storefront.
var Code = currency.INR.String()

const symbol = "₹"

var printer = message.NewPrinter(language.MustParse("en-IN"))

// FormatINR renders amount as "₹1,000.00" using Indian digit grouping.
func FormatINR(amount decimal.Decimal) string {
	value := amount.Round(2)
	sign := ""
	if value.IsNegative() {
		sign = "-"
		value = value.Neg()
	}
	return sign + symbol + printer.Sprint(number.Decimal(value.InexactFloat64(), number.Scale(2)))
}

// Plain renders amount with two decimals and no grouping, as used in UPI links
// and provider payloads ("450.00").
func Plain(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
