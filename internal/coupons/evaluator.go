package coupons

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pinaka-makhana/storefront/internal/platform/requestctx"
)

const defaultRejection = "Invalid coupon code"

// Request is a coupon evaluation against an order amount.
type Request struct {
	Code          string          `json:"code"`
	Amount        decimal.Decimal `json:"amount"`
	FirstTimeUser bool            `json:"firstTimeUser"`
}

func (r Request) check() (Request, error) {
	r.Code = NormalizeCode(r.Code)
	verr := newValidationError()
	if r.Code == "" {
		verr.add("code", "Please enter a coupon code")
	}
	if !r.Amount.IsPositive() {
		verr.add("amount", "Order amount must be greater than 0")
	}
	if !verr.empty() {
		return r, verr
	}
	return r, nil
}

// Verdict is the backend's answer for a code. Discount is set only when the backend sent one.
type Verdict struct {
	Code     string           `json:"code"`
	Valid    bool             `json:"valid"`
	Discount *decimal.Decimal `json:"discount,omitempty"`
	Message  string           `json:"message,omitempty"`
}

// Quote is the order total after a coupon. Total never drops below zero.
type Quote struct {
	Code     string          `json:"code"`
	Amount   decimal.Decimal `json:"amount"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
	Message  string          `json:"message,omitempty"`
}

// Evaluator asks the remote coupon service about codes. It does no discount math of
// its own beyond subtracting what the service grants.
type Evaluator struct {
	remote Remote
}

func NewEvaluator(remote Remote) *Evaluator {
	return &Evaluator{remote: remote}
}

// Validate asks whether the code applies to the request.
func (e *Evaluator) Validate(ctx context.Context, req Request) (Verdict, error) {
	req, err := req.check()
	if err != nil {
		return Verdict{}, err
	}
	raw, err := e.remote.Validate(ctx, req.Code, req.Amount.InexactFloat64(), req.FirstTimeUser)
	if err != nil {
		return Verdict{}, fmt.Errorf("coupons: validate %s: %w", req.Code, err)
	}
	v := Verdict{Code: req.Code, Valid: raw.Valid, Message: strings.TrimSpace(raw.Message)}
	if raw.Discount != nil {
		d := decimal.NewFromFloat(*raw.Discount).Round(2)
		v.Discount = &d
	}
	if !v.Valid && v.Message == "" {
		v.Message = defaultRejection
	}
	return v, nil
}

// Calculate asks for the discount the code grants at the request amount.
func (e *Evaluator) Calculate(ctx context.Context, req Request) (decimal.Decimal, error) {
	req, err := req.check()
	if err != nil {
		return decimal.Zero, err
	}
	amount, err := e.remote.Calculate(ctx, req.Code, req.Amount.InexactFloat64(), req.FirstTimeUser)
	if err != nil {
		return decimal.Zero, fmt.Errorf("coupons: calculate %s: %w", req.Code, err)
	}
	return decimal.NewFromFloat(amount).Round(2), nil
}

// Apply validates the code and prices the order with it. The discount comes from the
// validate answer when it carries one, otherwise from a calculate call.
func (e *Evaluator) Apply(ctx context.Context, req Request) (Quote, error) {
	verdict, err := e.Validate(ctx, req)
	if err != nil {
		return Quote{}, err
	}
	if !verdict.Valid {
		return Quote{}, &RejectedError{Code: verdict.Code, Message: verdict.Message}
	}

	var discount decimal.Decimal
	if verdict.Discount != nil {
		discount = *verdict.Discount
	} else {
		discount, err = e.Calculate(ctx, req)
		if err != nil {
			return Quote{}, err
		}
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	amount := req.Amount.Round(2)
	total := amount.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	requestctx.Logger(ctx).Info("coupon.applied",
		zap.String("code", verdict.Code),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("discount", discount.StringFixed(2)),
	)
	return Quote{
		Code:     verdict.Code,
		Amount:   amount,
		Discount: discount,
		Total:    total,
		Message:  verdict.Message,
	}, nil
}

// Redeem records one use of the code. Call it after the order is confirmed.
func (e *Evaluator) Redeem(ctx context.Context, code string) error {
	code = NormalizeCode(code)
	if code == "" {
		verr := newValidationError()
		verr.add("code", "Please enter a coupon code")
		return verr
	}
	if err := e.remote.IncrementUsage(ctx, code); err != nil {
		return fmt.Errorf("coupons: redeem %s: %w", code, err)
	}
	return nil
}
