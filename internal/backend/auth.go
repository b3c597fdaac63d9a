package backend

import (
	"context"
	"errors"
	"strings"

	"github.com/pinaka-makhana/storefront/internal/restclient"
)

// ErrEmptyToken is returned when the backend accepts credentials but issues no token.
var ErrEmptyToken = errors.New("backend: auth response carried no token")

type Auth struct {
	c *restclient.Client
}

func (a Auth) Login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	var out AuthResponse
	if err := a.c.Post(ctx, "auth/login", creds, &out); err != nil {
		return nil, wrap("login", err)
	}
	if strings.TrimSpace(out.Token) == "" {
		return nil, ErrEmptyToken
	}
	if out.Email == "" {
		out.Email = creds.Email
	}
	return &out, nil
}

func (a Auth) Register(ctx context.Context, reg Registration) (*AuthResponse, error) {
	reg.Email = strings.TrimSpace(reg.Email)
	reg.Name = strings.TrimSpace(reg.Name)
	var out AuthResponse
	if err := a.c.Post(ctx, "auth/register", reg, &out); err != nil {
		return nil, wrap("register", err)
	}
	if strings.TrimSpace(out.Token) == "" {
		return nil, ErrEmptyToken
	}
	if out.Email == "" {
		out.Email = reg.Email
	}
	return &out, nil
}
