package payments

import (
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pinaka-makhana/storefront/internal/platform/money"
)

var (
	// ShippingCharge is itemised separately and already included in the order amount.
	ShippingCharge = decimal.NewFromInt(50)
	// CODSurcharge is added on top of the order amount for cash on delivery.
	CODSurcharge = decimal.NewFromInt(25)
)

// Summary is the order summary shown next to the pay button.
type Summary struct {
	Method     MethodID        `json:"method"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Shipping   decimal.Decimal `json:"shipping"`
	CODCharges decimal.Decimal `json:"codCharges"`
	Total      decimal.Decimal `json:"total"`
}

// Summarize itemises amount for method. Only COD changes the total.
func Summarize(method MethodID, amount decimal.Decimal) Summary {
	s := Summary{
		Method:     method,
		Subtotal:   amount.Sub(ShippingCharge),
		Shipping:   ShippingCharge,
		CODCharges: decimal.Zero,
		Total:      amount,
	}
	if method == MethodCOD {
		s.CODCharges = CODSurcharge
		s.Total = amount.Add(CODSurcharge)
	}
	return s
}

// ChargedAmount is the amount actually collected for method.
func ChargedAmount(method MethodID, amount decimal.Decimal) decimal.Decimal {
	return Summarize(method, amount).Total
}

// MonthlyInstallment is the indicative EMI, rounded up to whole rupees. The provider
// determines the actual schedule.
func MonthlyInstallment(amount decimal.Decimal, tenureMonths int) decimal.Decimal {
	if tenureMonths <= 0 {
		return decimal.Zero
	}
	return amount.Div(decimal.NewFromInt(int64(tenureMonths))).Ceil()
}

// EMIPlan pairs a tenure with its indicative installment.
type EMIPlan struct {
	Months  int             `json:"months"`
	Monthly decimal.Decimal `json:"monthly"`
}

// EMIPlans returns one plan per supported tenure.
func EMIPlans(amount decimal.Decimal) []EMIPlan {
	tenures := EMITenures()
	plans := make([]EMIPlan, 0, len(tenures))
	for _, months := range tenures {
		plans = append(plans, EMIPlan{Months: months, Monthly: MonthlyInstallment(amount, months)})
	}
	return plans
}

// UPIIntentURL builds the upi://pay deep link for order, addressed to vpa.
func UPIIntentURL(order OrderData, vpa, payeeName string) string {
	q := []string{
		"pa=" + escape(vpa),
		"pn=" + escape(payeeName),
		"am=" + money.Plain(order.Amount),
		"cu=INR",
		"tn=" + escape("Order "+order.OrderID),
	}
	return "upi://pay?" + strings.Join(q, "&")
}

func escape(v string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(strings.TrimSpace(v)), "+", "%20")
	return strings.ReplaceAll(escaped, "%40", "@")
}
