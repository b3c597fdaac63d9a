package payments

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pinaka-makhana/storefront/internal/backend"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	l.calls = append(l.calls, name)
	l.mu.Unlock()
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeRazorpay struct {
	log     *callLog
	loadErr error
	resp    RazorpayResponse
	err     error
	opts    RazorpayOptions
}

func (f *fakeRazorpay) EnsureLoaded(context.Context) error { return f.loadErr }

func (f *fakeRazorpay) Checkout(_ context.Context, opts RazorpayOptions) (RazorpayResponse, error) {
	f.log.add("razorpay")
	f.opts = opts
	return f.resp, f.err
}

type fakeGooglePay struct {
	log     *callLog
	loadErr error
	data    json.RawMessage
	err     error
	req     GooglePayRequest
}

func (f *fakeGooglePay) EnsureLoaded(context.Context) error { return f.loadErr }

func (f *fakeGooglePay) LoadPaymentData(_ context.Context, req GooglePayRequest) (json.RawMessage, error) {
	f.log.add("googlepay")
	f.req = req
	return f.data, f.err
}

type fakePaytm struct {
	log     *callLog
	loadErr error
	err     error
	cfg     PaytmConfig
}

func (f *fakePaytm) EnsureLoaded(context.Context) error { return f.loadErr }

func (f *fakePaytm) Invoke(_ context.Context, cfg PaytmConfig) error {
	f.log.add("paytm")
	f.cfg = cfg
	return f.err
}

type fakeRedirector struct {
	log *callLog
	url string
}

func (f *fakeRedirector) Redirect(_ context.Context, url string) error {
	f.log.add("redirect")
	f.url = url
	return nil
}

type fakeGlue struct {
	log      *callLog
	phonepe  *backend.PhonePeSession
	paytm    *backend.PaytmSession
	cod      *backend.CODConfirmation
	err      error
	codOrder backend.CODOrder
	phoneReq backend.PhonePeInitiate
	verified any
}

func (f *fakeGlue) PhonePeInitiate(_ context.Context, req backend.PhonePeInitiate) (*backend.PhonePeSession, error) {
	f.log.add("phonepe.initiate")
	f.phoneReq = req
	return f.phonepe, f.err
}

func (f *fakeGlue) PaytmInitiate(_ context.Context, _ backend.PaytmInitiate) (*backend.PaytmSession, error) {
	f.log.add("paytm.initiate")
	return f.paytm, f.err
}

func (f *fakeGlue) PlaceCOD(_ context.Context, order backend.CODOrder) (*backend.CODConfirmation, error) {
	f.log.add("cod")
	f.codOrder = order
	return f.cod, f.err
}

func (f *fakeGlue) Verify(_ context.Context, proof any) (*backend.Verification, error) {
	f.log.add("verify")
	f.verified = proof
	return &backend.Verification{Success: true}, f.err
}

type recordingSink struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (s *recordingSink) PublishOutcome(_ context.Context, o Outcome) error {
	s.mu.Lock()
	s.outcomes = append(s.outcomes, o)
	s.mu.Unlock()
	return nil
}

type harness struct {
	log       *callLog
	razorpay  *fakeRazorpay
	googlePay *fakeGooglePay
	paytm     *fakePaytm
	redirect  *fakeRedirector
	glue      *fakeGlue
	sink      *recordingSink
	orch      *Orchestrator
}

func newHarness() *harness {
	log := &callLog{}
	h := &harness{
		log:       log,
		razorpay:  &fakeRazorpay{log: log, resp: RazorpayResponse{PaymentID: "pay_1", OrderID: "order_rzp_1", Signature: "sig"}},
		googlePay: &fakeGooglePay{log: log, data: json.RawMessage(`{"paymentMethodData":{"type":"CARD"}}`)},
		paytm:     &fakePaytm{log: log},
		redirect:  &fakeRedirector{log: log},
		glue: &fakeGlue{
			log:     log,
			phonepe: &backend.PhonePeSession{Success: true, PaymentURL: "https://mercury.phonepe.test/pay/abc"},
			paytm:   &backend.PaytmSession{Success: true, OrderID: "PTM-1", Token: "txn-token"},
			cod:     &backend.CODConfirmation{Success: true, OrderID: "ORD-COD-1"},
		},
		sink: &recordingSink{},
	}
	orch, err := NewOrchestrator(Gateways{
		Razorpay:   h.razorpay,
		GooglePay:  h.googlePay,
		Paytm:      h.paytm,
		Redirector: h.redirect,
	}, h.glue, WithOutcomeSink(h.sink))
	if err != nil {
		panic(err)
	}
	h.orch = orch
	return h
}
