package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/pinaka-makhana/storefront/internal/backend"
)

type fakeAdmin struct {
	rows      []backend.UserWithStats
	listErr   error
	statsErr  error
	users     map[int64]backend.User
	roleCalls []string
}

func (f *fakeAdmin) WithStats(context.Context) ([]backend.UserWithStats, error) {
	return f.rows, f.listErr
}

func (f *fakeAdmin) Stats(_ context.Context, id int64) (*backend.UserWithStats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	for _, r := range f.rows {
		if r.UserID == id {
			return &r, nil
		}
	}
	return nil, errors.New("missing")
}

func (f *fakeAdmin) Get(_ context.Context, id int64) (*backend.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, errors.New("missing")
	}
	return &u, nil
}

func (f *fakeAdmin) UpdateStatus(_ context.Context, id int64, active bool) (*backend.User, error) {
	u := f.users[id]
	u.Active = active
	f.users[id] = u
	return &u, nil
}

func (f *fakeAdmin) UpdateRole(_ context.Context, id int64, role string) (*backend.User, error) {
	f.roleCalls = append(f.roleCalls, role)
	u := f.users[id]
	u.Role = role
	f.users[id] = u
	return &u, nil
}

type fakeFeed struct {
	orders []backend.Order
	err    error
}

func (f fakeFeed) AdminAll(context.Context) ([]backend.Order, error) { return f.orders, f.err }

func day(d int) backend.Timestamp {
	return backend.Timestamp{Time: time.Date(2025, 3, d, 10, 0, 0, 0, backend.Location)}
}

func sampleOrders() []backend.Order {
	john := &backend.UserRef{ID: 7, Name: "John Doe", Email: "user123@test.com", Phone: "9876543210"}
	return []backend.Order{
		{ID: 1, User: john, OrderDate: day(2), TotalAmount: 450.5, Status: "DELIVERED"},
		{ID: 2, UserEmail: "USER123@test.com", CreatedAt: day(9), TotalAmount: 99.5, Status: "pending"},
		{ID: 3, UserEmail: "asha@example.com", OrderDate: day(5), TotalAmount: 200, Status: "SHIPPED"},
		{ID: 4, TotalAmount: 10},
	}
}

func TestDeriveFromOrders(t *testing.T) {
	t.Parallel()

	got := DeriveFromOrders(sampleOrders())
	require.Len(t, got, 2)

	john := got[0]
	require.Equal(t, int64(7), john.ID)
	require.Equal(t, "John Doe", john.Name)
	require.Equal(t, "user123@test.com", john.Email)
	require.Equal(t, 2, john.TotalOrders)
	require.True(t, john.TotalSpent.Equal(decimal.NewFromInt(550)), john.TotalSpent.String())
	require.True(t, john.AverageOrderValue.Equal(decimal.NewFromInt(275)), john.AverageOrderValue.String())
	require.True(t, john.LastOrderDate.Equal(day(9).Time))
	require.True(t, john.JoinDate.Equal(day(2).Time))
	require.Equal(t, map[string]int{"DELIVERED": 1, "PENDING": 1}, john.StatusBreakdown)
	require.Equal(t, backend.RoleUser, john.Role)
	require.Equal(t, "active", john.Status)

	asha := got[1]
	require.Equal(t, "asha", asha.Name)
	require.Equal(t, 1, asha.TotalOrders)
}

func TestDeriveFromOrdersSumsExactly(t *testing.T) {
	t.Parallel()

	orders := []backend.Order{
		{ID: 1, UserEmail: "ravi@test.com", OrderDate: day(1), TotalAmount: 0.1},
		{ID: 2, UserEmail: "ravi@test.com", OrderDate: day(2), TotalAmount: 0.2},
		{ID: 3, UserEmail: "ravi@test.com", OrderDate: day(3), TotalAmount: 100},
	}
	got := DeriveFromOrders(orders)
	require.Len(t, got, 1)
	require.Equal(t, "100.3", got[0].TotalSpent.String())
	require.Equal(t, "33.43", got[0].AverageOrderValue.String())
}

func TestListPrefersPrimary(t *testing.T) {
	t.Parallel()

	admin := &fakeAdmin{rows: []backend.UserWithStats{{UserID: 1, UserName: "Admin", UserEmail: "admin@test.com", UserRole: backend.RoleAdmin, UserActive: true, TotalOrders: 3}}}
	dir := NewDirectory(admin, fakeFeed{err: errors.New("should not be called")})

	listing, err := dir.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, StrategyPrimary, listing.Strategy)
	require.Len(t, listing.Users, 1)
	require.Equal(t, "active", listing.Users[0].Status)
}

func TestListFallsBackToOrders(t *testing.T) {
	t.Parallel()

	dir := NewDirectory(&fakeAdmin{listErr: errors.New("404")}, fakeFeed{orders: sampleOrders()})

	listing, err := dir.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, StrategyFallback, listing.Strategy)
	require.Len(t, listing.Users, 2)
}

func TestListReportsBothFailures(t *testing.T) {
	t.Parallel()

	primary := errors.New("primary down")
	fallback := errors.New("orders down")
	_, err := NewDirectory(&fakeAdmin{listErr: primary}, fakeFeed{err: fallback}).List(context.Background())
	require.ErrorIs(t, err, primary)
	require.ErrorIs(t, err, fallback)
}

func TestGetDegradesToUserRecord(t *testing.T) {
	t.Parallel()

	admin := &fakeAdmin{
		statsErr: errors.New("stats broken"),
		users:    map[int64]backend.User{5: {ID: 5, Name: "Asha", Email: "asha@example.com", Role: backend.RoleUser, Active: false}},
	}
	acct, err := NewDirectory(admin, fakeFeed{}).Get(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, "Asha", acct.Name)
	require.Equal(t, "inactive", acct.Status)
}

func TestSetRoleNormalizes(t *testing.T) {
	t.Parallel()

	admin := &fakeAdmin{users: map[int64]backend.User{5: {ID: 5}}}
	dir := NewDirectory(admin, fakeFeed{})

	acct, err := dir.SetRole(context.Background(), 5, "admin")
	require.NoError(t, err)
	require.Equal(t, backend.RoleAdmin, acct.Role)

	_, err = dir.SetRole(context.Background(), 5, "superuser")
	require.ErrorIs(t, err, ErrInvalidRole)
	require.Equal(t, []string{backend.RoleAdmin}, admin.roleCalls)

	acct, err = dir.SetActive(context.Background(), 5, false)
	require.NoError(t, err)
	require.False(t, acct.Active)
}

func TestSearch(t *testing.T) {
	t.Parallel()

	list := DeriveFromOrders(sampleOrders())
	require.Len(t, Search(list, "JOHN"), 1)
	require.Len(t, Search(list, "example.com"), 1)
	require.Len(t, Search(list, " "), 2)
}
