// Package backend wraps every endpoint of the Pinaka Makhana REST API exposed to the storefront.
package backend

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/pinaka-makhana/storefront/internal/restclient"
)

// Backend groups the resource wrappers. All calls go through one restclient.Client.
type Backend struct {
	client *restclient.Client
}

func New(client *restclient.Client) *Backend {
	return &Backend{client: client}
}

// As returns a Backend that authenticates as session.
func (b *Backend) As(session restclient.Session) *Backend {
	return &Backend{client: b.client.WithSession(session)}
}

// Client exposes the underlying REST client.
func (b *Backend) Client() *restclient.Client { return b.client }

func (b *Backend) Auth() Auth               { return Auth{c: b.client} }
func (b *Backend) Products() Products       { return Products{c: b.client} }
func (b *Backend) Cart() Cart               { return Cart{c: b.client} }
func (b *Backend) Orders() Orders           { return Orders{c: b.client} }
func (b *Backend) Coupons() Coupons         { return Coupons{c: b.client} }
func (b *Backend) AdminUsers() AdminUsers   { return AdminUsers{c: b.client} }
func (b *Backend) PaymentGlue() PaymentGlue { return PaymentGlue{c: b.client} }

func idPath(prefix string, id int64) string {
	return prefix + "/" + strconv.FormatInt(id, 10)
}

func segment(value string) string {
	return url.PathEscape(value)
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("backend: %s: %w", op, err)
}
