package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/pinaka-makhana/storefront/internal/restclient"
)

// ErrInvalidStatus is returned for order statuses outside the backend's enum.
var ErrInvalidStatus = errors.New("backend: invalid order status")

type Orders struct {
	c *restclient.Client
}

// Place turns the caller's cart into an order and returns the backend's text confirmation.
func (o Orders) Place(ctx context.Context) (string, error) {
	var out string
	err := o.c.Do(ctx, restclient.Request{Method: http.MethodPost, Path: "orders/place"}, &out)
	return out, wrap("place order", err)
}

func (o Orders) History(ctx context.Context) ([]Order, error) {
	var out []Order
	if err := o.c.Get(ctx, "orders/history", nil, &out); err != nil {
		return nil, wrap("order history", err)
	}
	return out, nil
}

func (o Orders) Get(ctx context.Context, id int64) (*Order, error) {
	var out Order
	if err := o.c.Get(ctx, idPath("orders", id), nil, &out); err != nil {
		return nil, wrap("get order", err)
	}
	return &out, nil
}

func (o Orders) AdminAll(ctx context.Context) ([]Order, error) {
	var out []Order
	if err := o.c.Get(ctx, "orders/admin/all", nil, &out); err != nil {
		return nil, wrap("list all orders", err)
	}
	return out, nil
}

func (o Orders) AdminGet(ctx context.Context, id int64) (*Order, error) {
	var out Order
	if err := o.c.Get(ctx, idPath("orders/admin", id), nil, &out); err != nil {
		return nil, wrap("get order (admin)", err)
	}
	return &out, nil
}

func (o Orders) UpdateStatus(ctx context.Context, id int64, status string) (*Order, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if !ValidOrderStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	var out Order
	body := map[string]string{"status": status}
	if err := o.c.Put(ctx, idPath("orders/admin", id)+"/status", body, &out); err != nil {
		return nil, wrap("update order status", err)
	}
	return &out, nil
}
