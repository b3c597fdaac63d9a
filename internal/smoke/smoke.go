// Package smoke holds end-to-end flows run against a live backend: reachability, the
// shopper registration/cart journey and coupon pricing.
package smoke

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pinaka-makhana/storefront/internal/backend"
	"github.com/pinaka-makhana/storefront/internal/coupons"
	"github.com/pinaka-makhana/storefront/internal/platform/observability"
	"github.com/pinaka-makhana/storefront/internal/platform/requestctx"
	"github.com/pinaka-makhana/storefront/internal/restclient"
)

// ErrCartMismatch is returned when the cart read back does not hold the line just added.
var ErrCartMismatch = errors.New("smoke: cart does not contain the added item")

// StepError names the step a flow stopped at.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("smoke: %s: %v", e.Step, e.Err) }

func (e *StepError) Unwrap() error { return e.Err }

// Step records one completed call.
type Step struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Detail   string        `json:"detail,omitempty"`
}

// Report is the trace of a flow.
type Report struct {
	Steps []Step `json:"steps"`
	Token string `json:"-"`
}

func (r *Report) run(ctx context.Context, name string, fn func() (string, error)) error {
	start := time.Now()
	detail, err := fn()
	elapsed := time.Since(start)
	logger := requestctx.Logger(ctx).With(zap.String("step", name), zap.Duration("latency", elapsed))
	if err != nil {
		logger.Warn("smoke.step_failed", zap.Error(err))
		return &StepError{Step: name, Err: err}
	}
	logger.Info("smoke.step_ok", zap.String("detail", detail))
	r.Steps = append(r.Steps, Step{Name: name, Duration: elapsed, Detail: detail})
	return nil
}

// DefaultCouponCode is the code priced by the coupon scenario.
const DefaultCouponCode = "SUMMER2023"

// Shopper is the account and cart line used by RegisterLoginCart.
type Shopper struct {
	Name      string
	Email     string
	Password  string
	ProductID int64
	Quantity  int
}

// DefaultShopper is the customer the connection scripts have always used.
func DefaultShopper() Shopper {
	return Shopper{
		Name:      "John Doe",
		Email:     "user123@test.com",
		Password:  "password123",
		ProductID: 1,
		Quantity:  2,
	}
}

// RegisterLoginCart registers the shopper, logs in, adds one product to the cart and
// reads the cart back. An account that already exists is not a failure; its cart only
// has to contain the product in at least the added quantity.
func RegisterLoginCart(ctx context.Context, b *backend.Backend, s Shopper) (Report, error) {
	var (
		report  Report
		created bool
	)

	err := report.run(ctx, "register", func() (string, error) {
		resp, err := b.Auth().Register(ctx, backend.Registration{Name: s.Name, Email: s.Email, Password: s.Password})
		if err != nil {
			if restclient.IsStatus(err, http.StatusBadRequest) || restclient.IsStatus(err, http.StatusConflict) {
				return "account already exists", nil
			}
			return "", err
		}
		created = true
		return "role " + resp.Role, nil
	})
	if err != nil {
		return report, err
	}

	err = report.run(ctx, "login", func() (string, error) {
		resp, err := b.Auth().Login(ctx, backend.Credentials{Email: s.Email, Password: s.Password})
		if err != nil {
			return "", err
		}
		report.Token = resp.Token
		return observability.MaskEmail(s.Email), nil
	})
	if err != nil {
		return report, err
	}

	shopper := b.As(restclient.StaticSession(report.Token))
	err = report.run(ctx, "cart.add", func() (string, error) {
		return shopper.Cart().Add(ctx, s.ProductID, s.Quantity)
	})
	if err != nil {
		return report, err
	}

	err = report.run(ctx, "cart.get", func() (string, error) {
		items, err := shopper.Cart().Get(ctx)
		if err != nil {
			return "", err
		}
		// A new account starts with an empty cart, so it must hold exactly the added line.
		if created {
			if len(items) == 1 && items[0].Product.ID == s.ProductID && items[0].Quantity == s.Quantity {
				return fmt.Sprintf("1 line(s), product %d x%d", s.ProductID, s.Quantity), nil
			}
			return "", fmt.Errorf("%w: %d line(s) after adding product %d x%d", ErrCartMismatch, len(items), s.ProductID, s.Quantity)
		}
		for _, item := range items {
			if item.Product.ID == s.ProductID && item.Quantity >= s.Quantity {
				return fmt.Sprintf("%d line(s), product %d x%d", len(items), item.Product.ID, item.Quantity), nil
			}
		}
		return "", ErrCartMismatch
	})
	return report, err
}

// CouponTotal prices amount with code through the coupon evaluator.
func CouponTotal(ctx context.Context, b *backend.Backend, code string, amount decimal.Decimal) (coupons.Quote, error) {
	var (
		report Report
		quote  coupons.Quote
	)
	err := report.run(ctx, "coupon.apply", func() (string, error) {
		q, err := coupons.NewEvaluator(b.Coupons()).Apply(ctx, coupons.Request{Code: code, Amount: amount})
		if err != nil {
			return "", err
		}
		quote = q
		return fmt.Sprintf("%s off %s = %s", q.Discount.StringFixed(2), q.Amount.StringFixed(2), q.Total.StringFixed(2)), nil
	})
	return quote, err
}

// ConnectionReport summarises backend reachability.
type ConnectionReport struct {
	Products     int  `json:"products"`
	AuthResponds bool `json:"authResponds"`
}

// Connection lists products and, unless skipAuth is set, checks that the login endpoint
// rejects bogus credentials with 400 or 401.
func Connection(ctx context.Context, b *backend.Backend, skipAuth bool) (ConnectionReport, error) {
	var out ConnectionReport
	products, err := b.Products().List(ctx)
	if err != nil {
		return out, &StepError{Step: "products", Err: err}
	}
	out.Products = len(products)
	if skipAuth {
		return out, nil
	}

	_, err = b.Auth().Login(ctx, backend.Credentials{Email: "test@example.com", Password: "wrongpassword"})
	switch {
	case err == nil:
		return out, &StepError{Step: "auth", Err: errors.New("bogus credentials were accepted")}
	case restclient.IsStatus(err, http.StatusUnauthorized), restclient.IsStatus(err, http.StatusBadRequest),
		restclient.IsStatus(err, http.StatusForbidden):
		out.AuthResponds = true
		return out, nil
	default:
		return out, &StepError{Step: "auth", Err: err}
	}
}
