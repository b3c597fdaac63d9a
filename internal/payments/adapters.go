package payments

import (
	"context"
	"encoding/json"

	"github.com/pinaka-makhana/storefront/internal/backend"
)

// Loader makes a provider's client library available before it is used. Implementations
// load on every call; nothing is cached between attempts.
type Loader interface {
	EnsureLoaded(ctx context.Context) error
}

// RazorpayGateway opens Razorpay's hosted checkout and returns once the customer finishes.
type RazorpayGateway interface {
	Loader
	Checkout(ctx context.Context, opts RazorpayOptions) (RazorpayResponse, error)
}

// GooglePayGateway shows the Google Pay sheet and returns the provider's payment data verbatim.
type GooglePayGateway interface {
	Loader
	LoadPaymentData(ctx context.Context, req GooglePayRequest) (json.RawMessage, error)
}

// PaytmGateway initialises and invokes the Paytm checkout widget.
type PaytmGateway interface {
	Loader
	Invoke(ctx context.Context, cfg PaytmConfig) error
}

// Redirector sends the customer's browser to a provider-hosted page.
type Redirector interface {
	Redirect(ctx context.Context, url string) error
}

// ServerGlue is the backend side of the provider flows.
type ServerGlue interface {
	PhonePeInitiate(ctx context.Context, req backend.PhonePeInitiate) (*backend.PhonePeSession, error)
	PaytmInitiate(ctx context.Context, req backend.PaytmInitiate) (*backend.PaytmSession, error)
	PlaceCOD(ctx context.Context, order backend.CODOrder) (*backend.CODConfirmation, error)
	Verify(ctx context.Context, proof any) (*backend.Verification, error)
}

// RazorpayOptions is the options object passed to `new Razorpay(...)`.
type RazorpayOptions struct {
	Key         string            `json:"key"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Image       string            `json:"image"`
	OrderID     string            `json:"order_id,omitempty"`
	Prefill     RazorpayPrefill   `json:"prefill"`
	Notes       map[string]string `json:"notes"`
	Theme       RazorpayTheme     `json:"theme"`
	Method      map[string]bool   `json:"method"`
	Bank        string            `json:"bank,omitempty"`
	EMITenure   int               `json:"emi_tenure,omitempty"`
}

type RazorpayPrefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
	Method  string `json:"method,omitempty"`
	VPA     string `json:"vpa,omitempty"`
}

type RazorpayTheme struct {
	Color string `json:"color"`
}

// RazorpayResponse is the payload of the checkout success handler.
type RazorpayResponse struct {
	PaymentID string `json:"razorpay_payment_id"`
	OrderID   string `json:"razorpay_order_id"`
	Signature string `json:"razorpay_signature"`
}

// GooglePayRequest is the PaymentDataRequest handed to PaymentsClient.loadPaymentData,
// plus the client environment.
type GooglePayRequest struct {
	Environment           string                `json:"environment"`
	APIVersion            int                   `json:"apiVersion"`
	APIVersionMinor       int                   `json:"apiVersionMinor"`
	AllowedPaymentMethods []GooglePayMethod     `json:"allowedPaymentMethods"`
	MerchantInfo          GooglePayMerchantInfo `json:"merchantInfo"`
	TransactionInfo       GooglePayTransaction  `json:"transactionInfo"`
}

type GooglePayMethod struct {
	Type       string         `json:"type"`
	Parameters map[string]any `json:"parameters"`
}

type GooglePayMerchantInfo struct {
	MerchantID   string `json:"merchantId"`
	MerchantName string `json:"merchantName"`
}

type GooglePayTransaction struct {
	TotalPriceStatus string `json:"totalPriceStatus"`
	TotalPrice       string `json:"totalPrice"`
	CurrencyCode     string `json:"currencyCode"`
}

// PaytmConfig is the CheckoutJS init config.
type PaytmConfig struct {
	Root string    `json:"root"`
	Flow string    `json:"flow"`
	Data PaytmData `json:"data"`
	// MerchantID selects the merchant script the widget is loaded from.
	MerchantID string `json:"merchantId"`
}

type PaytmData struct {
	OrderID   string  `json:"orderId"`
	Token     string  `json:"token"`
	TokenType string  `json:"tokenType"`
	Amount    float64 `json:"amount"`
}
