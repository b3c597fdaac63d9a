package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pinaka-makhana/storefront/internal/backend"
	"github.com/pinaka-makhana/storefront/internal/platform/requestctx"
)

const instrumentationName = "github.com/pinaka-makhana/storefront/internal/payments"

// Merchant holds the storefront's provider identifiers and checkout branding.
type Merchant struct {
	RazorpayKeyID        string
	PaytmMerchantID      string
	GooglePayMerchantID  string
	GooglePayEnvironment string
	PayeeVPA             string
	Name                 string
	URL                  string
	Description          string
	Image                string
	ThemeColor           string
}

// DefaultMerchant returns the non-production identifiers.
func DefaultMerchant() Merchant {
	return Merchant{
		RazorpayKeyID:        "rzp_test_key",
		PaytmMerchantID:      "test_merchant",
		GooglePayMerchantID:  "12345678901234567890",
		GooglePayEnvironment: "TEST",
		PayeeVPA:             "merchant@upi",
		Name:                 "Pinaka Makhana Store",
		URL:                  "https://pinakamakhana.com",
		Description:          "Premium Makhana Purchase",
		Image:                "/logo192.png",
		ThemeColor:           "#ef4444",
	}
}

// Gateways bundles the provider adapters. All of them are required.
type Gateways struct {
	Razorpay   RazorpayGateway
	GooglePay  GooglePayGateway
	Paytm      PaytmGateway
	Redirector Redirector
}

// Orchestrator routes one checkout intent to exactly one provider.
type Orchestrator struct {
	gateways Gateways
	glue     ServerGlue
	merchant Merchant
	sink     OutcomeSink
	logger   *zap.Logger
	tracer   trace.Tracer
	counter  metric.Int64Counter
	clock    func() time.Time
}

type Option func(*Orchestrator)

func WithMerchant(m Merchant) Option {
	return func(o *Orchestrator) { o.merchant = mergeMerchant(o.merchant, m) }
}

func WithOutcomeSink(sink OutcomeSink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

func WithMeter(meter metric.Meter) Option {
	return func(o *Orchestrator) {
		if meter == nil {
			return
		}
		if counter, err := newDispatchCounter(meter); err == nil {
			o.counter = counter
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) {
		if clock != nil {
			o.clock = clock
		}
	}
}

func NewOrchestrator(gateways Gateways, glue ServerGlue, opts ...Option) (*Orchestrator, error) {
	switch {
	case gateways.Razorpay == nil:
		return nil, errors.New("payments: razorpay gateway is required")
	case gateways.GooglePay == nil:
		return nil, errors.New("payments: google pay gateway is required")
	case gateways.Paytm == nil:
		return nil, errors.New("payments: paytm gateway is required")
	case gateways.Redirector == nil:
		return nil, errors.New("payments: redirector is required")
	}
	counter, err := newDispatchCounter(otel.GetMeterProvider().Meter(instrumentationName))
	if err != nil {
		return nil, fmt.Errorf("payments: dispatch counter: %w", err)
	}
	o := &Orchestrator{
		gateways: gateways,
		glue:     glue,
		merchant: DefaultMerchant(),
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(instrumentationName),
		counter:  counter,
		clock:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o, nil
}

// WithGlue returns a copy of the orchestrator bound to glue, typically a backend client
// carrying the payer's session.
func (o *Orchestrator) WithGlue(glue ServerGlue) *Orchestrator {
	cp := *o
	cp.glue = glue
	return &cp
}

// Merchant returns the effective merchant settings.
func (o *Orchestrator) Merchant() Merchant { return o.merchant }

// Pay validates the intent, dispatches it to a single provider and waits for that provider
// to settle. Every error is a *Failure.
func (o *Orchestrator) Pay(ctx context.Context, order OrderData, instr Instruction) (Result, error) {
	if instr == nil {
		return Result{}, &Failure{Kind: KindValidation, Err: ErrUnsupportedMethod}
	}
	method := instr.Method()
	if _, err := ParseMethod(string(method)); err != nil {
		return Result{}, &Failure{Method: method, Kind: KindValidation, Err: err}
	}

	order = order.Normalized()
	if err := joinValidation(order.Validate(), instr.validate()); err != nil {
		return Result{}, classify(method, err)
	}

	logger := o.loggerFor(ctx).With(zap.String("method", string(method)), zap.String("order_id", order.OrderID))
	ctx, span := o.tracer.Start(ctx, "payments.dispatch", trace.WithAttributes(
		attribute.String("payment.method", string(method)),
		attribute.String("payment.order_id", order.OrderID),
	))
	defer span.End()

	logger.Info("payment.dispatch", zap.String("amount", order.Amount.StringFixed(2)))
	result, err := o.dispatch(ctx, order, instr)
	if err != nil {
		failure := classify(method, err)
		span.RecordError(failure)
		span.SetStatus(codes.Error, string(failure.Kind))
		o.counter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", string(method)),
			attribute.String("outcome", "failed"),
			attribute.String("kind", string(failure.Kind)),
		))
		logger.Warn("payment.failed", zap.String("kind", string(failure.Kind)), zap.Error(failure))
		o.publish(ctx, logger, o.outcome(ctx, order, Result{Method: method}, failure))
		return Result{}, failure
	}

	result.Method = method
	if result.Amount.IsZero() {
		result.Amount = ChargedAmount(method, order.Amount)
	}
	span.SetAttributes(attribute.String("payment.status", result.Status))
	o.counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", string(method)),
		attribute.String("outcome", "succeeded"),
	))
	logger.Info("payment.succeeded", zap.String("status", result.Status), zap.String("provider", result.Provider))
	o.publish(ctx, logger, o.outcome(ctx, order, result, nil))
	return result, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, order OrderData, instr Instruction) (Result, error) {
	switch in := instr.(type) {
	case RazorpayInstruction:
		return o.razorpay(ctx, order, checkoutHint{})
	case UPIInstruction:
		if !in.Manual {
			return o.razorpay(ctx, order, checkoutHint{method: "upi"})
		}
		result, err := o.razorpay(ctx, order, checkoutHint{method: "upi", vpa: in.VPA})
		if err != nil {
			return result, err
		}
		payload, _ := json.Marshal(map[string]string{"intentUrl": UPIIntentURL(order, in.VPA, o.merchant.Name)})
		result.Payload = payload
		return result, nil
	case PhonePeInstruction:
		return o.phonePe(ctx, order)
	case GooglePayInstruction:
		return o.googlePay(ctx, order)
	case PaytmInstruction:
		return o.paytm(ctx, order)
	case NetBankingInstruction:
		return o.razorpay(ctx, order, checkoutHint{method: "netbanking", bank: strings.ToUpper(strings.TrimSpace(in.BankCode))})
	case CODInstruction:
		return o.cod(ctx, order)
	case EMIInstruction:
		return o.razorpay(ctx, order, checkoutHint{method: "emi", tenure: in.Tenure})
	default:
		return Result{}, fmt.Errorf("%w: %T", ErrUnsupportedMethod, instr)
	}
}

type checkoutHint struct {
	method string
	vpa    string
	bank   string
	tenure int
}

func (o *Orchestrator) razorpayOptions(order OrderData, hint checkoutHint) RazorpayOptions {
	return RazorpayOptions{
		Key:         o.merchant.RazorpayKeyID,
		Amount:      order.MinorUnits(),
		Currency:    "INR",
		Name:        o.merchant.Name,
		Description: o.merchant.Description,
		Image:       o.merchant.Image,
		OrderID:     order.RazorpayOrderID,
		Prefill: RazorpayPrefill{
			Name:    order.CustomerName,
			Email:   order.CustomerEmail,
			Contact: order.CustomerPhone,
			Method:  hint.method,
			VPA:     hint.vpa,
		},
		Notes: map[string]string{"address": order.ShippingAddress},
		Theme: RazorpayTheme{Color: o.merchant.ThemeColor},
		Method: map[string]bool{
			"netbanking": true,
			"card":       true,
			"wallet":     true,
			"upi":        true,
			"paylater":   true,
		},
		Bank:      hint.bank,
		EMITenure: hint.tenure,
	}
}

func (o *Orchestrator) razorpay(ctx context.Context, order OrderData, hint checkoutHint) (Result, error) {
	if err := o.gateways.Razorpay.EnsureLoaded(ctx); err != nil {
		return Result{}, reasoned("Razorpay SDK failed to load", ErrProviderUnavailable, err)
	}
	resp, err := o.gateways.Razorpay.Checkout(ctx, o.razorpayOptions(order, hint))
	if err != nil {
		return Result{}, err
	}
	return Result{
		Provider:  "razorpay",
		PaymentID: resp.PaymentID,
		OrderID:   resp.OrderID,
		Signature: resp.Signature,
		Status:    StatusAuthorized,
	}, nil
}

func (o *Orchestrator) phonePe(ctx context.Context, order OrderData) (Result, error) {
	if o.glue == nil {
		return Result{}, errors.New("payments: server glue not configured")
	}
	session, err := o.glue.PhonePeInitiate(ctx, backend.PhonePeInitiate{
		Amount:  order.Amount.InexactFloat64(),
		OrderID: order.OrderID,
		CustomerDetails: backend.CustomerDetails{
			Name:  order.CustomerName,
			Email: order.CustomerEmail,
			Phone: order.CustomerPhone,
		},
	})
	if err != nil {
		return Result{}, err
	}
	if !session.Success || strings.TrimSpace(session.PaymentURL) == "" {
		return Result{}, reasoned("PhonePe initialization failed", ErrInitiation)
	}
	if err := o.gateways.Redirector.Redirect(ctx, session.PaymentURL); err != nil {
		return Result{}, err
	}
	return Result{Provider: "phonepe", OrderID: order.OrderID, RedirectURL: session.PaymentURL, Status: StatusRedirected}, nil
}

// GooglePayRequestFor builds the PaymentDataRequest for order.
func (o *Orchestrator) GooglePayRequestFor(order OrderData) GooglePayRequest {
	return GooglePayRequest{
		Environment:     o.merchant.GooglePayEnvironment,
		APIVersion:      2,
		APIVersionMinor: 0,
		AllowedPaymentMethods: []GooglePayMethod{
			{
				Type: "CARD",
				Parameters: map[string]any{
					"allowedAuthMethods":  []string{"PAN_ONLY", "CRYPTOGRAM_3DS"},
					"allowedCardNetworks": []string{"MASTERCARD", "VISA", "RUPAY"},
				},
			},
			{
				Type: "UPI",
				Parameters: map[string]any{
					"payeeVpa":     o.merchant.PayeeVPA,
					"payeeName":    o.merchant.Name,
					"referenceUrl": o.merchant.URL,
				},
			},
		},
		MerchantInfo: GooglePayMerchantInfo{
			MerchantID:   o.merchant.GooglePayMerchantID,
			MerchantName: o.merchant.Name,
		},
		TransactionInfo: GooglePayTransaction{
			TotalPriceStatus: "FINAL",
			TotalPrice:       order.Amount.StringFixed(2),
			CurrencyCode:     "INR",
		},
	}
}

func (o *Orchestrator) googlePay(ctx context.Context, order OrderData) (Result, error) {
	if err := o.gateways.GooglePay.EnsureLoaded(ctx); err != nil {
		return Result{}, reasoned("Google Pay not available", ErrProviderUnavailable, err)
	}
	data, err := o.gateways.GooglePay.LoadPaymentData(ctx, o.GooglePayRequestFor(order))
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			return Result{}, err
		}
		return Result{}, reasoned("Google Pay payment failed", ErrDeclined, err)
	}
	return Result{Provider: "googlepay", OrderID: order.OrderID, Status: StatusAuthorized, Payload: data}, nil
}

func (o *Orchestrator) paytm(ctx context.Context, order OrderData) (Result, error) {
	if o.glue == nil {
		return Result{}, errors.New("payments: server glue not configured")
	}
	session, err := o.glue.PaytmInitiate(ctx, backend.PaytmInitiate{
		OrderID:    order.OrderID,
		Amount:     order.Amount.InexactFloat64(),
		CustomerID: order.CustomerID,
	})
	if err != nil {
		return Result{}, err
	}
	if !session.Success || strings.TrimSpace(session.Token) == "" {
		return Result{}, reasoned("Paytm initialization failed", ErrInitiation)
	}
	cfg := PaytmConfig{
		Root: "",
		Flow: "DEFAULT",
		Data: PaytmData{
			OrderID:   session.OrderID,
			Token:     session.Token,
			TokenType: "TXN_TOKEN",
			Amount:    order.Amount.InexactFloat64(),
		},
		MerchantID: o.merchant.PaytmMerchantID,
	}
	if err := o.gateways.Paytm.EnsureLoaded(ctx); err != nil {
		return Result{}, reasoned("Paytm checkout failed to load", ErrProviderUnavailable, err)
	}
	if err := o.gateways.Paytm.Invoke(ctx, cfg); err != nil {
		return Result{}, err
	}
	payload, _ := json.Marshal(cfg)
	return Result{Provider: "paytm", OrderID: session.OrderID, Status: StatusInitiated, Payload: payload}, nil
}

func (o *Orchestrator) cod(ctx context.Context, order OrderData) (Result, error) {
	if o.glue == nil {
		return Result{}, errors.New("payments: server glue not configured")
	}
	charged := ChargedAmount(MethodCOD, order.Amount)
	conf, err := o.glue.PlaceCOD(ctx, backend.CODOrder{
		OrderID:         order.OrderID,
		Amount:          charged.InexactFloat64(),
		CODCharges:      CODSurcharge.InexactFloat64(),
		CustomerName:    order.CustomerName,
		CustomerEmail:   order.CustomerEmail,
		CustomerPhone:   order.CustomerPhone,
		ShippingAddress: order.ShippingAddress,
	})
	if err != nil {
		return Result{}, err
	}
	if !conf.Success {
		return Result{}, reasoned("COD order placement failed", ErrInitiation)
	}
	orderID := conf.OrderID
	if orderID == "" {
		orderID = order.OrderID
	}
	return Result{Provider: "cod", OrderID: orderID, Status: StatusConfirmed, Amount: charged}, nil
}

// VerifyRequest is the payment proof the browser submits after a provider success.
type VerifyRequest struct {
	Method    MethodID        `json:"method"`
	PaymentID string          `json:"paymentId,omitempty"`
	OrderID   string          `json:"orderId,omitempty"`
	Signature string          `json:"signature,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Verify forwards a payment proof to the backend.
func (o *Orchestrator) Verify(ctx context.Context, req VerifyRequest) (*backend.Verification, error) {
	if _, err := ParseMethod(string(req.Method)); err != nil {
		return nil, &Failure{Method: req.Method, Kind: KindValidation, Err: err}
	}
	if strings.TrimSpace(req.PaymentID) == "" && strings.TrimSpace(req.OrderID) == "" && len(req.Payload) == 0 {
		return nil, classify(req.Method, fieldError("paymentId", "payment id or order id is required"))
	}
	if o.glue == nil {
		return nil, errors.New("payments: server glue not configured")
	}
	verification, err := o.glue.Verify(ctx, req)
	if err != nil {
		return nil, classify(req.Method, err)
	}
	o.loggerFor(ctx).Info("payment.verified",
		zap.String("method", string(req.Method)),
		zap.String("order_id", req.OrderID),
		zap.Bool("success", verification.Success || verification.Verified))
	return verification, nil
}

func (o *Orchestrator) outcome(ctx context.Context, order OrderData, result Result, failure *Failure) Outcome {
	out := Outcome{
		Method:     result.Method,
		Provider:   result.Provider,
		OrderID:    order.OrderID,
		Amount:     ChargedAmount(result.Method, order.Amount),
		Succeeded:  failure == nil,
		Status:     result.Status,
		PaymentID:  result.PaymentID,
		OccurredAt: o.clock().UTC(),
	}
	if id, ok := AttemptFromContext(ctx); ok {
		out.AttemptID = id
	}
	if failure != nil {
		out.FailureKind = failure.Kind
		out.Message = failure.Message()
	}
	return out
}

func (o *Orchestrator) publish(ctx context.Context, logger *zap.Logger, outcome Outcome) {
	if o.sink == nil {
		return
	}
	if err := o.sink.PublishOutcome(context.WithoutCancel(ctx), outcome); err != nil {
		logger.Warn("payment outcome publish failed", zap.Error(err))
	}
}

func (o *Orchestrator) loggerFor(ctx context.Context) *zap.Logger {
	if logger := requestctx.Logger(ctx); logger != requestctx.NoopLogger() {
		return logger
	}
	return o.logger
}

func newDispatchCounter(meter metric.Meter) (metric.Int64Counter, error) {
	return meter.Int64Counter("payments.dispatch",
		metric.WithDescription("Payment attempts dispatched, by method and outcome"))
}

func joinValidation(errs ...error) error {
	merged := newValidationError()
	for _, err := range errs {
		if err == nil {
			continue
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		for field, msg := range verr.fields {
			merged.add(field, msg)
		}
	}
	if merged.empty() {
		return nil
	}
	return merged
}

func mergeMerchant(base, override Merchant) Merchant {
	pick := func(a, b string) string {
		if strings.TrimSpace(b) != "" {
			return strings.TrimSpace(b)
		}
		return a
	}
	base.RazorpayKeyID = pick(base.RazorpayKeyID, override.RazorpayKeyID)
	base.PaytmMerchantID = pick(base.PaytmMerchantID, override.PaytmMerchantID)
	base.GooglePayMerchantID = pick(base.GooglePayMerchantID, override.GooglePayMerchantID)
	base.GooglePayEnvironment = pick(base.GooglePayEnvironment, override.GooglePayEnvironment)
	base.PayeeVPA = pick(base.PayeeVPA, override.PayeeVPA)
	base.Name = pick(base.Name, override.Name)
	base.URL = pick(base.URL, override.URL)
	base.Description = pick(base.Description, override.Description)
	base.Image = pick(base.Image, override.Image)
	base.ThemeColor = pick(base.ThemeColor, override.ThemeColor)
	return base
}

// reasonedError carries a customer-facing message while still matching its sentinel and cause.
type reasonedError struct {
	msg  string
	errs []error
}

func reasoned(msg string, errs ...error) error {
	kept := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			kept = append(kept, err)
		}
	}
	return &reasonedError{msg: msg, errs: kept}
}

func (e *reasonedError) Error() string   { return e.msg }
func (e *reasonedError) Unwrap() []error { return e.errs }
