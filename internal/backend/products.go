package backend

import (
	"context"
	"net/http"

	"github.com/pinaka-makhana/storefront/internal/restclient"
)

type Products struct {
	c *restclient.Client
}

func (p Products) List(ctx context.Context) ([]Product, error) {
	var out []Product
	if err := p.c.Get(ctx, "products", nil, &out); err != nil {
		return nil, wrap("list products", err)
	}
	return out, nil
}

func (p Products) Get(ctx context.Context, id int64) (*Product, error) {
	var out Product
	if err := p.c.Get(ctx, idPath("products", id), nil, &out); err != nil {
		return nil, wrap("get product", err)
	}
	return &out, nil
}

func (p Products) Create(ctx context.Context, product Product) (*Product, error) {
	product.ID = 0
	var out Product
	if err := p.c.Post(ctx, "products", product, &out); err != nil {
		return nil, wrap("create product", err)
	}
	return &out, nil
}

func (p Products) Update(ctx context.Context, id int64, product Product) (*Product, error) {
	product.ID = id
	var out Product
	if err := p.c.Put(ctx, idPath("products", id), product, &out); err != nil {
		return nil, wrap("update product", err)
	}
	return &out, nil
}

func (p Products) Delete(ctx context.Context, id int64) error {
	return wrap("delete product", p.c.Do(ctx, restclient.Request{Method: http.MethodDelete, Path: idPath("products", id)}, nil))
}
