// Package users serves the back office user directory.
package users

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pinaka-makhana/storefront/internal/backend"
	"github.com/pinaka-makhana/storefront/internal/platform/requestctx"
)

// Strategy names the source a listing was built from.
type Strategy string

const (
	// StrategyPrimary reads /admin/users/with-stats.
	StrategyPrimary Strategy = "with-stats"
	// StrategyFallback derives users from the admin order feed.
	StrategyFallback Strategy = "orders"
)

var ErrInvalidRole = errors.New("users: role must be ROLE_ADMIN or ROLE_USER")

// Account is one row of the directory.
type Account struct {
	ID                int64             `json:"id"`
	Name              string            `json:"name"`
	Email             string            `json:"email"`
	Phone             string            `json:"phone,omitempty"`
	Role              string            `json:"role"`
	Active            bool              `json:"active"`
	Status            string            `json:"status"`
	TotalOrders       int               `json:"totalOrders"`
	TotalSpent        decimal.Decimal   `json:"totalSpent"`
	AverageOrderValue decimal.Decimal   `json:"averageOrderValue"`
	JoinDate          backend.Timestamp `json:"joinDate"`
	LastOrderDate     backend.Timestamp `json:"lastOrderDate"`
	StatusBreakdown   map[string]int    `json:"orderStatusBreakdown,omitempty"`
}

// Listing is the result of List.
type Listing struct {
	Users    []Account `json:"users"`
	Strategy Strategy  `json:"strategy"`
}

// AdminAPI is the admin user surface of the backend. backend.AdminUsers satisfies it.
type AdminAPI interface {
	WithStats(ctx context.Context) ([]backend.UserWithStats, error)
	Stats(ctx context.Context, id int64) (*backend.UserWithStats, error)
	Get(ctx context.Context, id int64) (*backend.User, error)
	UpdateStatus(ctx context.Context, id int64, active bool) (*backend.User, error)
	UpdateRole(ctx context.Context, id int64, role string) (*backend.User, error)
}

// OrderFeed lists every order. backend.Orders satisfies it.
type OrderFeed interface {
	AdminAll(ctx context.Context) ([]backend.Order, error)
}

// Directory lists users from the stats endpoint and falls back to deriving them from
// orders when that endpoint is unavailable.
type Directory struct {
	admin  AdminAPI
	orders OrderFeed
}

func NewDirectory(admin AdminAPI, orders OrderFeed) *Directory {
	return &Directory{admin: admin, orders: orders}
}

// List tries the primary strategy, then the fallback.
func (d *Directory) List(ctx context.Context) (Listing, error) {
	accounts, primaryErr := d.Primary(ctx)
	if primaryErr == nil {
		return Listing{Users: accounts, Strategy: StrategyPrimary}, nil
	}
	if ctx.Err() != nil {
		return Listing{}, primaryErr
	}
	requestctx.Logger(ctx).Warn("users.primary_failed", zap.Error(primaryErr))

	accounts, fallbackErr := d.Fallback(ctx)
	if fallbackErr != nil {
		return Listing{}, errors.Join(primaryErr, fallbackErr)
	}
	return Listing{Users: accounts, Strategy: StrategyFallback}, nil
}

// Primary reads the stats endpoint.
func (d *Directory) Primary(ctx context.Context) ([]Account, error) {
	rows, err := d.admin.WithStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("users: primary: %w", err)
	}
	out := make([]Account, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromStats(row))
	}
	return out, nil
}

// Fallback derives one account per customer email from the order feed.
func (d *Directory) Fallback(ctx context.Context) ([]Account, error) {
	orders, err := d.orders.AdminAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("users: fallback: %w", err)
	}
	return DeriveFromOrders(orders), nil
}

// Get returns the account for id with its order statistics. Stats failures degrade to
// the bare user record.
func (d *Directory) Get(ctx context.Context, id int64) (*Account, error) {
	stats, err := d.admin.Stats(ctx, id)
	if err == nil {
		acct := fromStats(*stats)
		if acct.ID == 0 {
			acct.ID = id
		}
		return &acct, nil
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("users: stats %d: %w", id, err)
	}
	requestctx.Logger(ctx).Warn("users.stats_failed", zap.Int64("userId", id), zap.Error(err))

	u, getErr := d.admin.Get(ctx, id)
	if getErr != nil {
		return nil, fmt.Errorf("users: get %d: %w", id, getErr)
	}
	acct := fromUser(*u)
	return &acct, nil
}

// Stats returns the raw statistics row for id.
func (d *Directory) Stats(ctx context.Context, id int64) (*backend.UserWithStats, error) {
	stats, err := d.admin.Stats(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("users: stats %d: %w", id, err)
	}
	return stats, nil
}

func (d *Directory) SetActive(ctx context.Context, id int64, active bool) (*Account, error) {
	u, err := d.admin.UpdateStatus(ctx, id, active)
	if err != nil {
		return nil, fmt.Errorf("users: set active %d: %w", id, err)
	}
	requestctx.Logger(ctx).Info("users.status_changed", zap.Int64("userId", id), zap.Bool("active", active))
	acct := fromUser(*u)
	return &acct, nil
}

// SetRole accepts ROLE_ADMIN or ROLE_USER, with or without the prefix and in any case.
func (d *Directory) SetRole(ctx context.Context, id int64, role string) (*Account, error) {
	role, err := NormalizeRole(role)
	if err != nil {
		return nil, err
	}
	u, err := d.admin.UpdateRole(ctx, id, role)
	if err != nil {
		return nil, fmt.Errorf("users: set role %d: %w", id, err)
	}
	requestctx.Logger(ctx).Info("users.role_changed", zap.Int64("userId", id), zap.String("role", role))
	acct := fromUser(*u)
	return &acct, nil
}

func NormalizeRole(role string) (string, error) {
	role = strings.ToUpper(strings.TrimSpace(role))
	if role != "" && !strings.HasPrefix(role, "ROLE_") {
		role = "ROLE_" + role
	}
	switch role {
	case backend.RoleAdmin, backend.RoleUser:
		return role, nil
	}
	return "", ErrInvalidRole
}

// Search keeps accounts whose name or email contains term, case-insensitively.
func Search(list []Account, term string) []Account {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return list
	}
	out := make([]Account, 0, len(list))
	for _, a := range list {
		if strings.Contains(strings.ToLower(a.Name), term) || strings.Contains(strings.ToLower(a.Email), term) {
			out = append(out, a)
		}
	}
	return out
}

// DeriveFromOrders groups orders by customer email. Orders without an email are skipped.
// The result is ordered by most recent order first.
func DeriveFromOrders(orders []backend.Order) []Account {
	byEmail := map[string]*Account{}
	for _, o := range orders {
		email := strings.ToLower(strings.TrimSpace(o.CustomerEmail()))
		if email == "" {
			continue
		}
		acct, ok := byEmail[email]
		if !ok {
			acct = &Account{
				Email:           email,
				Role:            backend.RoleUser,
				Active:          true,
				Status:          statusLabel(true),
				StatusBreakdown: map[string]int{},
			}
			byEmail[email] = acct
		}
		if o.User != nil {
			if acct.ID == 0 {
				acct.ID = o.User.ID
			}
			if acct.Name == "" {
				acct.Name = o.User.Name
			}
			if acct.Phone == "" {
				acct.Phone = o.User.Phone
			}
			if o.User.Role != "" {
				acct.Role = o.User.Role
			}
		}
		acct.TotalOrders++
		acct.TotalSpent = acct.TotalSpent.Add(decimal.NewFromFloat(o.TotalAmount))
		if o.Status != "" {
			acct.StatusBreakdown[strings.ToUpper(o.Status)]++
		}
		placed := o.PlacedAt()
		if !placed.IsZero() {
			if acct.LastOrderDate.IsZero() || placed.After(acct.LastOrderDate.Time) {
				acct.LastOrderDate = placed
			}
			if acct.JoinDate.IsZero() || placed.Before(acct.JoinDate.Time) {
				acct.JoinDate = placed
			}
		}
	}

	out := make([]Account, 0, len(byEmail))
	for _, acct := range byEmail {
		if acct.Name == "" {
			acct.Name = strings.SplitN(acct.Email, "@", 2)[0]
		}
		acct.TotalSpent = acct.TotalSpent.Round(2)
		if acct.TotalOrders > 0 {
			acct.AverageOrderValue = acct.TotalSpent.Div(decimal.NewFromInt(int64(acct.TotalOrders))).Round(2)
		}
		out = append(out, *acct)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastOrderDate.Equal(out[j].LastOrderDate.Time) {
			return out[i].LastOrderDate.After(out[j].LastOrderDate.Time)
		}
		return out[i].Email < out[j].Email
	})
	return out
}

func fromStats(row backend.UserWithStats) Account {
	return Account{
		ID:                row.UserID,
		Name:              row.UserName,
		Email:             row.UserEmail,
		Phone:             row.Phone,
		Role:              row.UserRole,
		Active:            row.UserActive,
		Status:            statusLabel(row.UserActive),
		TotalOrders:       row.TotalOrders,
		TotalSpent:        decimal.NewFromFloat(row.TotalSpent).Round(2),
		AverageOrderValue: decimal.NewFromFloat(row.AverageOrderValue).Round(2),
		JoinDate:          row.JoinDate,
		LastOrderDate:     row.LastOrderDate,
		StatusBreakdown:   row.OrderStatusBreakdown,
	}
}

func fromUser(u backend.User) Account {
	return Account{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Phone:    u.Phone,
		Role:     u.Role,
		Active:   u.Active,
		Status:   statusLabel(u.Active),
		JoinDate: u.CreatedAt,
	}
}

func statusLabel(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}
