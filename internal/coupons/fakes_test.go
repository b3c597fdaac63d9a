package coupons

import (
	"context"
	"errors"
	"sync"

	"github.com/pinaka-makhana/storefront/internal/backend"
)

type fakeRemote struct {
	mu        sync.Mutex
	coupons   map[int64]backend.Coupon
	nextID    int64
	verdict   *backend.CouponVerdict
	discount  float64
	failWith  error
	calls     []string
	redeemed  []string
	lastQuery struct {
		code  string
		amt   float64
		first bool
	}
}

func newFakeRemote(list ...backend.Coupon) *fakeRemote {
	f := &fakeRemote{coupons: map[int64]backend.Coupon{}, nextID: 1}
	for _, c := range list {
		if c.ID == 0 {
			c.ID = f.nextID
		}
		f.coupons[c.ID] = c
		if c.ID >= f.nextID {
			f.nextID = c.ID + 1
		}
	}
	return f
}

func (f *fakeRemote) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.failWith
}

func (f *fakeRemote) List(context.Context) ([]backend.Coupon, error) {
	if err := f.record("list"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]backend.Coupon, 0, len(f.coupons))
	for id := int64(1); id < f.nextID; id++ {
		if c, ok := f.coupons[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeRemote) Get(_ context.Context, id int64) (*backend.Coupon, error) {
	if err := f.record("get"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &c, nil
}

func (f *fakeRemote) Create(_ context.Context, c backend.Coupon) (*backend.Coupon, error) {
	if err := f.record("create"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = f.nextID
	f.nextID++
	f.coupons[c.ID] = c
	return &c, nil
}

func (f *fakeRemote) Update(_ context.Context, id int64, c backend.Coupon) (*backend.Coupon, error) {
	if err := f.record("update"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = id
	f.coupons[id] = c
	return &c, nil
}

func (f *fakeRemote) Delete(_ context.Context, id int64) error {
	if err := f.record("delete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.coupons, id)
	return nil
}

func (f *fakeRemote) Validate(_ context.Context, code string, amount float64, first bool) (*backend.CouponVerdict, error) {
	if err := f.record("validate"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery.code, f.lastQuery.amt, f.lastQuery.first = code, amount, first
	if f.verdict == nil {
		return &backend.CouponVerdict{Valid: true}, nil
	}
	v := *f.verdict
	return &v, nil
}

func (f *fakeRemote) Calculate(context.Context, string, float64, bool) (float64, error) {
	if err := f.record("calculate"); err != nil {
		return 0, err
	}
	return f.discount, nil
}

func (f *fakeRemote) IncrementUsage(_ context.Context, code string) error {
	if err := f.record("increment"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redeemed = append(f.redeemed, code)
	return nil
}
