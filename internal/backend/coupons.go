package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pinaka-makhana/storefront/internal/restclient"
)

// CouponVerdict is the normalized answer of GET /coupons/validate. The backend answers
// with a bare boolean; richer deployments send {valid, discount, message}.
type CouponVerdict struct {
	Valid    bool     `json:"valid"`
	Discount *float64 `json:"discount,omitempty"`
	Message  string   `json:"message,omitempty"`
}

type Coupons struct {
	c *restclient.Client
}

func (c Coupons) list(ctx context.Context, path, op string) ([]Coupon, error) {
	var out []Coupon
	if err := c.c.Get(ctx, path, nil, &out); err != nil {
		return nil, wrap(op, err)
	}
	return out, nil
}

func (c Coupons) List(ctx context.Context) ([]Coupon, error) {
	return c.list(ctx, "coupons", "list coupons")
}

func (c Coupons) Active(ctx context.Context) ([]Coupon, error) {
	return c.list(ctx, "coupons/active", "list active coupons")
}

func (c Coupons) FirstTime(ctx context.Context) ([]Coupon, error) {
	return c.list(ctx, "coupons/first-time", "list first-time coupons")
}

func (c Coupons) Get(ctx context.Context, id int64) (*Coupon, error) {
	var out Coupon
	if err := c.c.Get(ctx, idPath("coupons", id), nil, &out); err != nil {
		return nil, wrap("get coupon", err)
	}
	return &out, nil
}

func (c Coupons) ByCode(ctx context.Context, code string) (*Coupon, error) {
	var out Coupon
	if err := c.c.Get(ctx, "coupons/code/"+segment(normalizeCode(code)), nil, &out); err != nil {
		return nil, wrap("get coupon by code", err)
	}
	return &out, nil
}

func (c Coupons) Validate(ctx context.Context, code string, amount float64, firstTimeUser bool) (*CouponVerdict, error) {
	var raw json.RawMessage
	if err := c.c.Get(ctx, "coupons/validate", evalQuery(code, amount, firstTimeUser), &raw); err != nil {
		return nil, wrap("validate coupon", err)
	}
	verdict, err := decodeVerdict(raw)
	if err != nil {
		return nil, wrap("validate coupon", err)
	}
	return verdict, nil
}

// Calculate returns the discount the backend grants for the code at amount.
func (c Coupons) Calculate(ctx context.Context, code string, amount float64, firstTimeUser bool) (float64, error) {
	var raw json.RawMessage
	if err := c.c.Get(ctx, "coupons/calculate", evalQuery(code, amount, firstTimeUser), &raw); err != nil {
		return 0, wrap("calculate discount", err)
	}
	discount, err := decodeDiscount(raw)
	if err != nil {
		return 0, wrap("calculate discount", err)
	}
	return discount, nil
}

func (c Coupons) Create(ctx context.Context, coupon Coupon) (*Coupon, error) {
	coupon.ID = 0
	coupon.Code = normalizeCode(coupon.Code)
	var out Coupon
	if err := c.c.Post(ctx, "coupons", coupon, &out); err != nil {
		return nil, wrap("create coupon", err)
	}
	return &out, nil
}

func (c Coupons) Update(ctx context.Context, id int64, coupon Coupon) (*Coupon, error) {
	coupon.ID = id
	coupon.Code = normalizeCode(coupon.Code)
	var out Coupon
	if err := c.c.Put(ctx, idPath("coupons", id), coupon, &out); err != nil {
		return nil, wrap("update coupon", err)
	}
	return &out, nil
}

func (c Coupons) Delete(ctx context.Context, id int64) error {
	return wrap("delete coupon", c.c.Do(ctx, restclient.Request{Method: http.MethodDelete, Path: idPath("coupons", id)}, nil))
}

func (c Coupons) IncrementUsage(ctx context.Context, code string) error {
	path := "coupons/increment-usage/" + segment(normalizeCode(code))
	return wrap("increment coupon usage", c.c.Do(ctx, restclient.Request{Method: http.MethodPost, Path: path}, nil))
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func evalQuery(code string, amount float64, firstTimeUser bool) url.Values {
	q := url.Values{}
	q.Set("code", normalizeCode(code))
	q.Set("amount", strconv.FormatFloat(amount, 'f', -1, 64))
	q.Set("firstTimeUser", strconv.FormatBool(firstTimeUser))
	return q
}

func decodeVerdict(raw json.RawMessage) (*CouponVerdict, error) {
	raw = bytes.TrimSpace(raw)
	var flag bool
	if err := json.Unmarshal(raw, &flag); err == nil {
		return &CouponVerdict{Valid: flag}, nil
	}
	var verdict CouponVerdict
	if err := json.Unmarshal(raw, &verdict); err != nil {
		return nil, fmt.Errorf("unexpected verdict %q", clip(raw))
	}
	return &verdict, nil
}

func decodeDiscount(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	var amount float64
	if err := json.Unmarshal(raw, &amount); err == nil {
		return amount, nil
	}
	var obj struct {
		Discount       *float64 `json:"discount"`
		DiscountAmount *float64 `json:"discountAmount"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		switch {
		case obj.Discount != nil:
			return *obj.Discount, nil
		case obj.DiscountAmount != nil:
			return *obj.DiscountAmount, nil
		}
	}
	return 0, fmt.Errorf("unexpected discount %q", clip(raw))
}

func clip(raw []byte) string {
	if len(raw) > 120 {
		return string(raw[:120]) + "..."
	}
	return string(raw)
}
