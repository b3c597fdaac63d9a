// Package coupons evaluates coupon codes at checkout and backs the coupon admin screens.
package coupons

import (
	"context"
	"errors"
	"strings"

	"github.com/pinaka-makhana/storefront/internal/backend"
)

// Coupon is the backend's coupon record.
type Coupon = backend.Coupon

// DiscountType names how a coupon's discountValue is applied.
type DiscountType string

const (
	DiscountPercentage   DiscountType = "PERCENTAGE"
	DiscountFixedAmount  DiscountType = "FIXED_AMOUNT"
	DiscountFreeShipping DiscountType = "FREE_SHIPPING"
)

// Valid reports whether t is one of the known discount types.
func (t DiscountType) Valid() bool {
	switch t {
	case DiscountPercentage, DiscountFixedAmount, DiscountFreeShipping:
		return true
	}
	return false
}

// Remote is the coupon service the evaluator and admin delegate to. backend.Coupons satisfies it.
type Remote interface {
	List(ctx context.Context) ([]backend.Coupon, error)
	Get(ctx context.Context, id int64) (*backend.Coupon, error)
	Create(ctx context.Context, coupon backend.Coupon) (*backend.Coupon, error)
	Update(ctx context.Context, id int64, coupon backend.Coupon) (*backend.Coupon, error)
	Delete(ctx context.Context, id int64) error
	Validate(ctx context.Context, code string, amount float64, firstTimeUser bool) (*backend.CouponVerdict, error)
	Calculate(ctx context.Context, code string, amount float64, firstTimeUser bool) (float64, error)
	IncrementUsage(ctx context.Context, code string) error
}

var (
	// ErrRejected is returned by Apply when the backend declares the code invalid.
	ErrRejected = errors.New("coupons: coupon rejected")
	// ErrUnknownFilter is returned for a status filter outside the supported set.
	ErrUnknownFilter = errors.New("coupons: unknown status filter")
)

// NormalizeCode trims and upper-cases a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidationError carries field → message for coupon inputs. Messages keep the order
// in which the checks ran, so the first one is what a form shows.
type ValidationError struct {
	order  []string
	fields map[string]string
}

func newValidationError() *ValidationError {
	return &ValidationError{fields: map[string]string{}}
}

func (e *ValidationError) add(field, message string) {
	if _, exists := e.fields[field]; exists {
		return
	}
	e.fields[field] = message
	e.order = append(e.order, field)
}

func (e *ValidationError) empty() bool { return len(e.fields) == 0 }

// First returns the message of the first failed check.
func (e *ValidationError) First() string {
	if len(e.order) == 0 {
		return ""
	}
	return e.fields[e.order[0]]
}

// Fields returns a copy of field → message.
func (e *ValidationError) Fields() map[string]string {
	out := make(map[string]string, len(e.fields))
	for k, v := range e.fields {
		out[k] = v
	}
	return out
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.order))
	for _, k := range e.order {
		parts = append(parts, e.fields[k])
	}
	return strings.Join(parts, "; ")
}

// RejectedError reports a code the backend refused, with the message to show the shopper.
type RejectedError struct {
	Code    string
	Message string
}

func (e *RejectedError) Error() string {
	return "coupons: " + e.Code + ": " + e.Message
}

func (e *RejectedError) Unwrap() error { return ErrRejected }

// OpError wraps a failed admin call with the message the back office shows for it.
type OpError struct {
	Message string
	Err     error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error { return e.Err }
