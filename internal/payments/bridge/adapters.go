package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pinaka-makhana/storefront/internal/payments"
)

// Callback events reported by the browser.
const (
	EventSuccess   = "success"
	EventFailure   = "failure"
	EventDismissed = "dismissed"
	// EventAppClosed is Paytm's notifyMerchant event for a closed widget.
	EventAppClosed = "APP_CLOSED"
	// EventCanceled is the Google Pay statusCode for a closed sheet.
	EventCanceled = "CANCELED"
)

// Razorpay opens the hosted checkout in the browser.
type Razorpay struct {
	broker *Broker
	probe  payments.Loader
}

func NewRazorpay(broker *Broker, probe payments.Loader) *Razorpay {
	return &Razorpay{broker: broker, probe: probe}
}

func (r *Razorpay) EnsureLoaded(ctx context.Context) error { return ensure(ctx, r.probe) }

func (r *Razorpay) Checkout(ctx context.Context, opts payments.RazorpayOptions) (payments.RazorpayResponse, error) {
	cb, err := roundTrip(ctx, r.broker, ActionRazorpayOpen, opts)
	if err != nil {
		return payments.RazorpayResponse{}, err
	}
	switch cb.Event {
	case EventSuccess:
		var resp payments.RazorpayResponse
		if err := json.Unmarshal(cb.Payload, &resp); err != nil || strings.TrimSpace(resp.PaymentID) == "" {
			return payments.RazorpayResponse{}, &payments.ProviderError{
				Reason:  payments.ErrDeclined,
				Payload: map[string]any{"description": "Razorpay returned an incomplete payment response"},
			}
		}
		return resp, nil
	case EventFailure:
		return payments.RazorpayResponse{}, providerFailure(cb.Payload)
	default:
		return payments.RazorpayResponse{}, cancelled(cb.Event)
	}
}

// GooglePay shows the Google Pay sheet in the browser.
type GooglePay struct {
	broker *Broker
	probe  payments.Loader
}

func NewGooglePay(broker *Broker, probe payments.Loader) *GooglePay {
	return &GooglePay{broker: broker, probe: probe}
}

func (g *GooglePay) EnsureLoaded(ctx context.Context) error { return ensure(ctx, g.probe) }

func (g *GooglePay) LoadPaymentData(ctx context.Context, req payments.GooglePayRequest) (json.RawMessage, error) {
	cb, err := roundTrip(ctx, g.broker, ActionGooglePaySheet, req)
	if err != nil {
		return nil, err
	}
	switch cb.Event {
	case EventSuccess:
		if len(cb.Payload) == 0 {
			return nil, errors.New("bridge: google pay returned no payment data")
		}
		return cb.Payload, nil
	case EventFailure:
		return nil, providerFailure(cb.Payload)
	default:
		return nil, cancelled(cb.Event)
	}
}

// Paytm initialises and invokes the CheckoutJS widget in the browser.
type Paytm struct {
	broker *Broker
	probe  payments.Loader
}

func NewPaytm(broker *Broker, probe payments.Loader) *Paytm {
	return &Paytm{broker: broker, probe: probe}
}

func (p *Paytm) EnsureLoaded(ctx context.Context) error { return ensure(ctx, p.probe) }

func (p *Paytm) Invoke(ctx context.Context, cfg payments.PaytmConfig) error {
	cb, err := roundTrip(ctx, p.broker, ActionPaytmInvoke, cfg)
	if err != nil {
		return err
	}
	switch cb.Event {
	case EventSuccess:
		return nil
	case EventFailure:
		return providerFailure(cb.Payload)
	default:
		return cancelled(cb.Event)
	}
}

// Redirector hands the browser a provider-hosted URL to navigate to.
type Redirector struct {
	broker *Broker
}

func NewRedirector(broker *Broker) *Redirector {
	return &Redirector{broker: broker}
}

func (r *Redirector) Redirect(ctx context.Context, url string) error {
	id, ok := payments.AttemptFromContext(ctx)
	if !ok {
		return ErrMissingAttemptID
	}
	return r.broker.Notify(id, ActionRedirect, map[string]string{"url": url})
}

func ensure(ctx context.Context, probe payments.Loader) error {
	if probe == nil {
		return nil
	}
	return probe.EnsureLoaded(ctx)
}

func roundTrip(ctx context.Context, broker *Broker, kind string, payload any) (Callback, error) {
	id, ok := payments.AttemptFromContext(ctx)
	if !ok {
		return Callback{}, ErrMissingAttemptID
	}
	future, err := broker.Publish(id, kind, payload)
	if err != nil {
		return Callback{}, err
	}
	cb, err := future.Await(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrAttemptExpired) {
			return Callback{}, fmt.Errorf("%w: no response from the payment window", payments.ErrCancelled)
		}
		return Callback{}, err
	}
	return cb, nil
}

// providerFailure decodes Razorpay's response.error style payloads ({code, description, reason, ...}).
func providerFailure(raw json.RawMessage) error {
	payload := map[string]any{}
	if len(raw) > 0 {
		var wrapper struct {
			Error map[string]any `json:"error"`
		}
		if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Error != nil {
			payload = wrapper.Error
		} else {
			_ = json.Unmarshal(raw, &payload)
		}
	}
	return &payments.ProviderError{Reason: payments.ErrDeclined, Payload: payload}
}

func cancelled(event string) error {
	switch event {
	case EventDismissed, EventAppClosed, EventCanceled:
		return payments.ErrCancelled
	}
	return fmt.Errorf("%w: unexpected callback event %q", payments.ErrCancelled, event)
}
