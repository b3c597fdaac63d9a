package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pinaka-makhana/storefront/internal/restclient"
)

// ErrInvalidQuantity rejects non-positive cart quantities before any call is made.
var ErrInvalidQuantity = errors.New("backend: quantity must be positive")

type Cart struct {
	c *restclient.Client
}

func (c Cart) Get(ctx context.Context) ([]CartItem, error) {
	var out []CartItem
	if err := c.c.Get(ctx, "cart", nil, &out); err != nil {
		return nil, wrap("get cart", err)
	}
	return out, nil
}

// Add returns the backend's plain-text confirmation.
func (c Cart) Add(ctx context.Context, productID int64, quantity int) (string, error) {
	if quantity <= 0 {
		return "", ErrInvalidQuantity
	}
	query := url.Values{}
	query.Set("productId", strconv.FormatInt(productID, 10))
	query.Set("quantity", strconv.Itoa(quantity))
	var out string
	err := c.c.Do(ctx, restclient.Request{Method: http.MethodPost, Path: "cart/add", Query: query}, &out)
	return out, wrap("add to cart", err)
}

func (c Cart) Update(ctx context.Context, productID int64, quantity int) (string, error) {
	if quantity <= 0 {
		return "", ErrInvalidQuantity
	}
	query := url.Values{}
	query.Set("quantity", strconv.Itoa(quantity))
	var out string
	err := c.c.Do(ctx, restclient.Request{Method: http.MethodPut, Path: idPath("cart/update", productID), Query: query}, &out)
	return out, wrap("update cart", err)
}

func (c Cart) Remove(ctx context.Context, productID int64) (string, error) {
	var out string
	err := c.c.Do(ctx, restclient.Request{Method: http.MethodDelete, Path: idPath("cart/remove", productID)}, &out)
	return out, wrap("remove from cart", err)
}

func (c Cart) Clear(ctx context.Context) (string, error) {
	var out string
	err := c.c.Do(ctx, restclient.Request{Method: http.MethodDelete, Path: "cart/clear"}, &out)
	return out, wrap("clear cart", err)
}
