package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/pinaka-makhana/storefront/internal/restclient"
)

func sampleOrder() OrderData {
	return OrderData{
		Amount:          decimal.RequireFromString("450.50"),
		OrderID:         "ORD-42",
		CustomerID:      "7",
		CustomerName:    "John Doe",
		CustomerEmail:   "user123@test.com",
		CustomerPhone:   "9876543210",
		ShippingAddress: "12 MG Road, Bengaluru",
	}
}

func TestPayDispatchesExactlyOneProvider(t *testing.T) {
	t.Parallel()

	cases := []struct {
		instr Instruction
		want  []string
	}{
		{RazorpayInstruction{}, []string{"razorpay"}},
		{UPIInstruction{}, []string{"razorpay"}},
		{UPIInstruction{Manual: true, VPA: "john@okaxis"}, []string{"razorpay"}},
		{PhonePeInstruction{}, []string{"phonepe.initiate", "redirect"}},
		{GooglePayInstruction{}, []string{"googlepay"}},
		{PaytmInstruction{}, []string{"paytm.initiate", "paytm"}},
		{NetBankingInstruction{BankCode: "HDFC"}, []string{"razorpay"}},
		{CODInstruction{}, []string{"cod"}},
		{EMIInstruction{Tenure: 6}, []string{"razorpay"}},
	}
	seen := map[MethodID]bool{}
	for _, tc := range cases {
		seen[tc.instr.Method()] = true
		h := newHarness()
		result, err := h.orch.Pay(context.Background(), sampleOrder(), tc.instr)
		require.NoError(t, err, tc.instr.Method())
		require.Equal(t, tc.instr.Method(), result.Method)
		require.Equal(t, tc.want, h.log.snapshot(), tc.instr.Method())
	}
	for _, m := range Methods() {
		require.True(t, seen[m], "method %s not covered", m)
	}
}

func TestPayRejectsBeforeAnySideEffect(t *testing.T) {
	t.Parallel()

	cases := map[string]Instruction{
		"nil instruction":       nil,
		"netbanking no bank":    NetBankingInstruction{},
		"netbanking unknown":    NetBankingInstruction{BankCode: "XXXX"},
		"upi manual without id": UPIInstruction{Manual: true},
		"upi manual malformed":  UPIInstruction{Manual: true, VPA: "not-a-vpa"},
		"emi bad tenure":        EMIInstruction{Tenure: 5},
	}
	for name, instr := range cases {
		h := newHarness()
		_, err := h.orch.Pay(context.Background(), sampleOrder(), instr)
		var failure *Failure
		require.True(t, errors.As(err, &failure), name)
		require.Equal(t, KindValidation, failure.Kind, name)
		require.NotEmpty(t, failure.Message(), name)
		require.Empty(t, h.log.snapshot(), name)
	}

	h := newHarness()
	order := sampleOrder()
	order.Amount = decimal.Zero
	_, err := h.orch.Pay(context.Background(), order, CODInstruction{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields(), "amount")
	require.Empty(t, h.log.snapshot())
}

func TestInstructionForUnknownMethod(t *testing.T) {
	t.Parallel()

	_, err := InstructionFor("bitcoin", Params{})
	require.ErrorIs(t, err, ErrUnsupportedMethod)

	_, err = ParseMethod("BitCoin")
	require.ErrorIs(t, err, ErrUnsupportedMethod)

	m, err := ParseMethod(" GooglePay ")
	require.NoError(t, err)
	require.Equal(t, MethodGooglePay, m)
}

func TestRazorpayOptions(t *testing.T) {
	t.Parallel()

	h := newHarness()
	order := sampleOrder()
	order.RazorpayOrderID = "order_rzp_9"
	result, err := h.orch.Pay(context.Background(), order, NetBankingInstruction{BankCode: " sbin"})
	require.NoError(t, err)

	opts := h.razorpay.opts
	require.Equal(t, int64(45050), opts.Amount)
	require.Equal(t, "INR", opts.Currency)
	require.Equal(t, "rzp_test_key", opts.Key)
	require.Equal(t, "Pinaka Makhana Store", opts.Name)
	require.Equal(t, "Premium Makhana Purchase", opts.Description)
	require.Equal(t, "/logo192.png", opts.Image)
	require.Equal(t, "order_rzp_9", opts.OrderID)
	require.Equal(t, "#ef4444", opts.Theme.Color)
	require.Equal(t, "12 MG Road, Bengaluru", opts.Notes["address"])
	require.Equal(t, "netbanking", opts.Prefill.Method)
	require.Equal(t, "SBIN", opts.Bank)
	require.True(t, opts.Method["paylater"])

	require.Equal(t, "pay_1", result.PaymentID)
	require.Equal(t, "order_rzp_1", result.OrderID)
	require.Equal(t, "sig", result.Signature)
	require.Equal(t, "razorpay", result.Provider)
	require.Equal(t, StatusAuthorized, result.Status)
}

func TestEMIAndManualUPIOptions(t *testing.T) {
	t.Parallel()

	h := newHarness()
	_, err := h.orch.Pay(context.Background(), sampleOrder(), EMIInstruction{Tenure: 12})
	require.NoError(t, err)
	require.Equal(t, 12, h.razorpay.opts.EMITenure)
	require.Equal(t, "emi", h.razorpay.opts.Prefill.Method)

	h = newHarness()
	result, err := h.orch.Pay(context.Background(), sampleOrder(), UPIInstruction{Manual: true, VPA: "john@okaxis"})
	require.NoError(t, err)
	require.Equal(t, "upi", h.razorpay.opts.Prefill.Method)
	require.Equal(t, "john@okaxis", h.razorpay.opts.Prefill.VPA)
	require.Contains(t, string(result.Payload), "upi://pay?pa=john@okaxis")
}

func TestRazorpayScriptFailureIsProviderSDK(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.razorpay.loadErr = errors.New("script status 503")
	_, err := h.orch.Pay(context.Background(), sampleOrder(), RazorpayInstruction{})

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, KindProviderSDK, failure.Kind)
	require.Equal(t, "Razorpay SDK failed to load", failure.Message())
	require.ErrorIs(t, err, ErrProviderUnavailable)
	require.Empty(t, h.log.snapshot())
}

func TestRazorpayFailureCallbackIsRejection(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.razorpay.err = &ProviderError{Reason: ErrDeclined, Payload: map[string]any{"code": "BAD_REQUEST_ERROR", "description": "Payment failed due to insufficient funds"}}
	_, err := h.orch.Pay(context.Background(), sampleOrder(), RazorpayInstruction{})

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, KindProviderRejection, failure.Kind)
	require.Equal(t, "Payment failed due to insufficient funds", failure.Message())
	require.Equal(t, "BAD_REQUEST_ERROR", failure.Provider["code"])
}

func TestPhonePeInitiation(t *testing.T) {
	t.Parallel()

	h := newHarness()
	result, err := h.orch.Pay(context.Background(), sampleOrder(), PhonePeInstruction{})
	require.NoError(t, err)
	require.Equal(t, "https://mercury.phonepe.test/pay/abc", result.RedirectURL)
	require.Equal(t, h.redirect.url, result.RedirectURL)
	require.Equal(t, StatusRedirected, result.Status)
	require.Equal(t, 450.5, h.glue.phoneReq.Amount)
	require.Equal(t, "9876543210", h.glue.phoneReq.CustomerDetails.Phone)

	h = newHarness()
	h.glue.phonepe.Success = false
	_, err = h.orch.Pay(context.Background(), sampleOrder(), PhonePeInstruction{})
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, KindProviderRejection, failure.Kind)
	require.Equal(t, "PhonePe initialization failed", failure.Message())
	require.Equal(t, []string{"phonepe.initiate"}, h.log.snapshot())
}

func TestBackendErrorsKeepTheirKind(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.glue.err = &restclient.Error{Kind: restclient.KindHTTP, Status: 400, Message: "Cart is empty"}
	_, err := h.orch.Pay(context.Background(), sampleOrder(), CODInstruction{})
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, KindHTTP, failure.Kind)
	require.Equal(t, "Cart is empty", failure.Message())

	h = newHarness()
	h.glue.err = &restclient.Error{Kind: restclient.KindNetwork, Message: "network error"}
	_, err = h.orch.Pay(context.Background(), sampleOrder(), PaytmInstruction{})
	require.ErrorAs(t, err, &failure)
	require.Equal(t, KindNetwork, failure.Kind)
}

func TestCODChargesSurcharge(t *testing.T) {
	t.Parallel()

	h := newHarness()
	result, err := h.orch.Pay(context.Background(), sampleOrder(), CODInstruction{})
	require.NoError(t, err)
	require.Equal(t, "ORD-COD-1", result.OrderID)
	require.Equal(t, StatusConfirmed, result.Status)
	require.True(t, result.Amount.Equal(decimal.RequireFromString("475.50")))
	require.Equal(t, 475.5, h.glue.codOrder.Amount)
	require.Equal(t, 25.0, h.glue.codOrder.CODCharges)

	h = newHarness()
	h.glue.cod.Success = false
	_, err = h.orch.Pay(context.Background(), sampleOrder(), CODInstruction{})
	require.EqualError(t, err, "COD order placement failed")
}

func TestGooglePayRequestAndAvailability(t *testing.T) {
	t.Parallel()

	h := newHarness()
	result, err := h.orch.Pay(context.Background(), sampleOrder(), GooglePayInstruction{})
	require.NoError(t, err)
	require.JSONEq(t, `{"paymentMethodData":{"type":"CARD"}}`, string(result.Payload))

	req := h.googlePay.req
	require.Equal(t, 2, req.APIVersion)
	require.Equal(t, 0, req.APIVersionMinor)
	require.Equal(t, "TEST", req.Environment)
	require.Equal(t, "450.50", req.TransactionInfo.TotalPrice)
	require.Equal(t, "FINAL", req.TransactionInfo.TotalPriceStatus)
	require.Equal(t, "INR", req.TransactionInfo.CurrencyCode)
	require.Equal(t, "12345678901234567890", req.MerchantInfo.MerchantID)
	require.Len(t, req.AllowedPaymentMethods, 2)
	require.Equal(t, "CARD", req.AllowedPaymentMethods[0].Type)
	require.Equal(t, []string{"MASTERCARD", "VISA", "RUPAY"}, req.AllowedPaymentMethods[0].Parameters["allowedCardNetworks"])
	require.Equal(t, "merchant@upi", req.AllowedPaymentMethods[1].Parameters["payeeVpa"])

	h = newHarness()
	h.googlePay.loadErr = errors.New("pay.js unreachable")
	_, err = h.orch.Pay(context.Background(), sampleOrder(), GooglePayInstruction{})
	require.EqualError(t, err, "Google Pay not available")
	require.ErrorIs(t, err, ErrProviderUnavailable)

	h = newHarness()
	h.googlePay.err = errors.New("DEVELOPER_ERROR")
	_, err = h.orch.Pay(context.Background(), sampleOrder(), GooglePayInstruction{})
	require.EqualError(t, err, "Google Pay payment failed")
}

func TestPaytmConfigAndCancellation(t *testing.T) {
	t.Parallel()

	h := newHarness()
	result, err := h.orch.Pay(context.Background(), sampleOrder(), PaytmInstruction{})
	require.NoError(t, err)
	require.Equal(t, "PTM-1", result.OrderID)
	require.Equal(t, StatusInitiated, result.Status)
	require.Equal(t, PaytmConfig{
		Root:       "",
		Flow:       "DEFAULT",
		Data:       PaytmData{OrderID: "PTM-1", Token: "txn-token", TokenType: "TXN_TOKEN", Amount: 450.5},
		MerchantID: "test_merchant",
	}, h.paytm.cfg)

	h = newHarness()
	h.paytm.err = ErrCancelled
	_, err = h.orch.Pay(context.Background(), sampleOrder(), PaytmInstruction{})
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, KindProviderRejection, failure.Kind)

	h = newHarness()
	h.glue.paytm.Success = false
	_, err = h.orch.Pay(context.Background(), sampleOrder(), PaytmInstruction{})
	require.EqualError(t, err, "Paytm initialization failed")
}

func TestOutcomesArePublished(t *testing.T) {
	t.Parallel()

	h := newHarness()
	ctx := WithAttempt(context.Background(), "01HATTEMPT")
	_, err := h.orch.Pay(ctx, sampleOrder(), CODInstruction{})
	require.NoError(t, err)

	h.glue.err = errors.New("boom")
	_, err = h.orch.Pay(ctx, sampleOrder(), CODInstruction{})
	require.Error(t, err)

	require.Len(t, h.sink.outcomes, 2)
	require.True(t, h.sink.outcomes[0].Succeeded)
	require.Equal(t, "01HATTEMPT", h.sink.outcomes[0].AttemptID)
	require.True(t, h.sink.outcomes[0].Amount.Equal(decimal.RequireFromString("475.50")))
	require.False(t, h.sink.outcomes[1].Succeeded)
	require.Equal(t, KindNetwork, h.sink.outcomes[1].FailureKind)
}

func TestVerify(t *testing.T) {
	t.Parallel()

	h := newHarness()
	_, err := h.orch.Verify(context.Background(), VerifyRequest{Method: MethodRazorpay})
	require.Error(t, err)
	require.Empty(t, h.log.snapshot())

	res, err := h.orch.Verify(context.Background(), VerifyRequest{Method: MethodRazorpay, PaymentID: "pay_1", OrderID: "order_1", Signature: "sig"})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, []string{"verify"}, h.log.snapshot())
}

func TestNewOrchestratorRequiresGateways(t *testing.T) {
	t.Parallel()

	_, err := NewOrchestrator(Gateways{}, nil)
	require.Error(t, err)
}
