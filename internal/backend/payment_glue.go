package backend

import (
	"context"
	"encoding/json"

	"github.com/pinaka-makhana/storefront/internal/restclient"
)

// PaymentGlue is the server side of the provider flows that need a merchant secret.
type PaymentGlue struct {
	c *restclient.Client
}

func (p PaymentGlue) PhonePeInitiate(ctx context.Context, req PhonePeInitiate) (*PhonePeSession, error) {
	var out PhonePeSession
	if err := p.c.Post(ctx, "payment/phonepe/initiate", req, &out); err != nil {
		return nil, wrap("phonepe initiate", err)
	}
	return &out, nil
}

func (p PaymentGlue) PaytmInitiate(ctx context.Context, req PaytmInitiate) (*PaytmSession, error) {
	var out PaytmSession
	if err := p.c.Post(ctx, "payment/paytm/initiate", req, &out); err != nil {
		return nil, wrap("paytm initiate", err)
	}
	return &out, nil
}

func (p PaymentGlue) PlaceCOD(ctx context.Context, order CODOrder) (*CODConfirmation, error) {
	var out CODConfirmation
	if err := p.c.Post(ctx, "orders/cod", order, &out); err != nil {
		return nil, wrap("cod order", err)
	}
	return &out, nil
}

// Verify forwards a provider's payment proof; the body is passed through untouched.
func (p PaymentGlue) Verify(ctx context.Context, proof any) (*Verification, error) {
	var raw json.RawMessage
	if err := p.c.Post(ctx, "payment/verify", proof, &raw); err != nil {
		return nil, wrap("verify payment", err)
	}
	out := Verification{Raw: raw}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return &out, nil
}
