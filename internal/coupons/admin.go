package coupons

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pinaka-makhana/storefront/internal/platform/requestctx"
)

// View is a coupon as the admin list shows it.
type View struct {
	Coupon
	Status          Status `json:"status"`
	DescriptionHTML string `json:"descriptionHtml,omitempty"`
}

// Admin manages coupons through the remote service. It holds no local copy, so a
// failed call leaves nothing half-applied.
type Admin struct {
	remote Remote
	now    func() time.Time
}

// AdminOption customises an Admin.
type AdminOption func(*Admin)

// WithAdminClock overrides the time used for status derivation.
func WithAdminClock(now func() time.Time) AdminOption {
	return func(a *Admin) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAdmin(remote Remote, opts ...AdminOption) *Admin {
	a := &Admin{remote: remote, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Admin) view(ctx context.Context, c Coupon, now time.Time) View {
	v := View{Coupon: c, Status: DeriveStatus(c, now)}
	rendered, err := RenderDescription(c.Description)
	if err != nil {
		requestctx.Logger(ctx).Warn("coupon.render_failed", zap.Int64("couponId", c.ID), zap.Error(err))
		return v
	}
	v.DescriptionHTML = rendered
	return v
}

// List returns the coupons passing f.
func (a *Admin) List(ctx context.Context, f Filter) ([]View, error) {
	all, err := a.remote.List(ctx)
	if err != nil {
		return nil, &OpError{Message: "Failed to load coupons", Err: err}
	}
	now := a.now()
	matched := Apply(all, f, now)
	out := make([]View, 0, len(matched))
	for _, c := range matched {
		out = append(out, a.view(ctx, c, now))
	}
	return out, nil
}

// Expiring lists active coupons ending within window.
func (a *Admin) Expiring(ctx context.Context, window time.Duration) ([]View, error) {
	all, err := a.remote.List(ctx)
	if err != nil {
		return nil, &OpError{Message: "Failed to load coupons", Err: err}
	}
	now := a.now()
	soon := ExpiringWithin(Apply(all, Filter{Status: FilterActive}, now), now, window)
	out := make([]View, 0, len(soon))
	for _, c := range soon {
		out = append(out, a.view(ctx, c, now))
	}
	return out, nil
}

func (a *Admin) Get(ctx context.Context, id int64) (*View, error) {
	c, err := a.remote.Get(ctx, id)
	if err != nil {
		return nil, &OpError{Message: "Failed to load coupon", Err: err}
	}
	v := a.view(ctx, *c, a.now())
	return &v, nil
}

// Draft loads coupon id as the edit form is opened with it.
func (a *Admin) Draft(ctx context.Context, id int64) (Draft, error) {
	c, err := a.remote.Get(ctx, id)
	if err != nil {
		return Draft{}, &OpError{Message: "Failed to load coupon", Err: err}
	}
	return DraftFrom(*c), nil
}

// Create validates the draft and creates the coupon.
func (a *Admin) Create(ctx context.Context, d Draft) (*Coupon, error) {
	d, err := ValidateDraft(d)
	if err != nil {
		return nil, err
	}
	created, err := a.remote.Create(ctx, d.Coupon())
	if err != nil {
		return nil, &OpError{Message: "Failed to save coupon. Please try again.", Err: err}
	}
	requestctx.Logger(ctx).Info("coupon.created", zap.String("code", created.Code), zap.Int64("couponId", created.ID))
	return created, nil
}

// Update validates the draft and replaces coupon id with it.
func (a *Admin) Update(ctx context.Context, id int64, d Draft) (*Coupon, error) {
	d, err := ValidateDraft(d)
	if err != nil {
		return nil, err
	}
	updated, err := a.remote.Update(ctx, id, d.Coupon())
	if err != nil {
		return nil, &OpError{Message: "Failed to save coupon. Please try again.", Err: err}
	}
	requestctx.Logger(ctx).Info("coupon.updated", zap.String("code", updated.Code), zap.Int64("couponId", id))
	return updated, nil
}

func (a *Admin) Delete(ctx context.Context, id int64) error {
	if err := a.remote.Delete(ctx, id); err != nil {
		return &OpError{Message: "Failed to delete coupon", Err: err}
	}
	requestctx.Logger(ctx).Info("coupon.deleted", zap.Int64("couponId", id))
	return nil
}

// Toggle flips the active flag of coupon id, sending the rest of the record unchanged.
func (a *Admin) Toggle(ctx context.Context, id int64) (*Coupon, error) {
	current, err := a.remote.Get(ctx, id)
	if err != nil {
		return nil, &OpError{Message: "Failed to update coupon status", Err: err}
	}
	next := *current
	next.Active = !current.Active
	updated, err := a.remote.Update(ctx, id, next)
	if err != nil {
		return nil, &OpError{Message: "Failed to update coupon status", Err: err}
	}
	requestctx.Logger(ctx).Info("coupon.toggled", zap.Int64("couponId", id), zap.Bool("active", updated.Active))
	return updated, nil
}
