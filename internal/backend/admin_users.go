package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/pinaka-makhana/storefront/internal/restclient"
)

type AdminUsers struct {
	c *restclient.Client
}

func (a AdminUsers) WithStats(ctx context.Context) ([]UserWithStats, error) {
	var out []UserWithStats
	if err := a.c.Get(ctx, "admin/users/with-stats", nil, &out); err != nil {
		return nil, wrap("list users with stats", err)
	}
	return out, nil
}

func (a AdminUsers) UpdateStatus(ctx context.Context, id int64, active bool) (*User, error) {
	var out User
	body := map[string]bool{"active": active}
	if err := a.c.Put(ctx, idPath("admin/users", id)+"/status", body, &out); err != nil {
		return nil, wrap("update user status", err)
	}
	return &out, nil
}

func (a AdminUsers) UpdateRole(ctx context.Context, id int64, role string) (*User, error) {
	role = strings.ToUpper(strings.TrimSpace(role))
	if role != RoleAdmin && role != RoleUser {
		return nil, fmt.Errorf("backend: invalid role %q", role)
	}
	var out User
	body := map[string]string{"role": role}
	if err := a.c.Put(ctx, idPath("admin/users", id)+"/role", body, &out); err != nil {
		return nil, wrap("update user role", err)
	}
	return &out, nil
}

func (a AdminUsers) Stats(ctx context.Context, id int64) (*UserWithStats, error) {
	var out UserWithStats
	if err := a.c.Get(ctx, idPath("admin/users", id)+"/stats", nil, &out); err != nil {
		return nil, wrap("user stats", err)
	}
	return &out, nil
}

func (a AdminUsers) Get(ctx context.Context, id int64) (*User, error) {
	var out User
	if err := a.c.Get(ctx, idPath("admin/users", id), nil, &out); err != nil {
		return nil, wrap("get user", err)
	}
	return &out, nil
}
