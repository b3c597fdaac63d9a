package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pinaka-makhana/storefront/internal/backend"
	"github.com/pinaka-makhana/storefront/internal/restclient"
)

func newBackend(t *testing.T, handler http.HandlerFunc) *backend.Backend {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	client, err := restclient.New(ts.URL+"/api", restclient.WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	return backend.New(client)
}

func TestAuthLoginRequiresToken(t *testing.T) {
	t.Parallel()

	api := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/login", r.URL.Path)
		_, _ = w.Write([]byte(`{"token":"","name":"John Doe","role":"ROLE_USER"}`))
	})

	_, err := api.Auth().Login(context.Background(), backend.Credentials{Email: "user123@test.com", Password: "password123"})
	require.ErrorIs(t, err, backend.ErrEmptyToken)
}

func TestAuthRegisterFillsEmail(t *testing.T) {
	t.Parallel()

	var body map[string]any
	api := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"token":"jwt","name":"John Doe","role":"ROLE_USER"}`))
	})

	resp, err := api.Auth().Register(context.Background(), backend.Registration{
		Name: " John Doe ", Email: "user123@test.com", Password: "password123",
	})
	require.NoError(t, err)
	require.Equal(t, "jwt", resp.Token)
	require.Equal(t, "user123@test.com", resp.Email)
	require.Equal(t, "John Doe", body["name"])
	require.Equal(t, false, body["isAdmin"])
}

func TestCartAddSendsQueryAndReturnsText(t *testing.T) {
	t.Parallel()

	api := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/cart/add", r.URL.Path)
		require.Equal(t, "1", r.URL.Query().Get("productId"))
		require.Equal(t, "2", r.URL.Query().Get("quantity"))
		_, _ = w.Write([]byte("Product added to cart"))
	})

	msg, err := api.Cart().Add(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Equal(t, "Product added to cart", msg)

	_, err = api.Cart().Add(context.Background(), 1, 0)
	require.ErrorIs(t, err, backend.ErrInvalidQuantity)
}

func TestOrdersUpdateStatusValidatesLocally(t *testing.T) {
	t.Parallel()

	calls := 0
	api := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, "/api/orders/admin/7/status", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "SHIPPED", body["status"])
		_, _ = w.Write([]byte(`{"id":7,"status":"SHIPPED","totalAmount":450,"orderDate":[2025,3,14,10,30,0],"items":[]}`))
	})

	_, err := api.Orders().UpdateStatus(context.Background(), 7, "lost")
	require.ErrorIs(t, err, backend.ErrInvalidStatus)
	require.Zero(t, calls)

	order, err := api.Orders().UpdateStatus(context.Background(), 7, "shipped")
	require.NoError(t, err)
	require.Equal(t, backend.OrderShipped, order.Status)
	require.Equal(t, 2025, order.PlacedAt().Year())
	require.Equal(t, time.March, order.PlacedAt().Month())
}

func TestCouponVerdictShapes(t *testing.T) {
	t.Parallel()

	responses := map[string]string{
		"BOOL": `true`,
		"OBJ":  `{"valid":false,"message":"Coupon expired"}`,
	}
	api := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/coupons/validate":
			_, _ = w.Write([]byte(responses[r.URL.Query().Get("code")]))
		case "/api/coupons/calculate":
			require.Equal(t, "1000", r.URL.Query().Get("amount"))
			require.Equal(t, "false", r.URL.Query().Get("firstTimeUser"))
			_, _ = w.Write([]byte(`100.0`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	ctx := context.Background()
	verdict, err := api.Coupons().Validate(ctx, "bool", 1000, false)
	require.NoError(t, err)
	require.True(t, verdict.Valid)

	verdict, err = api.Coupons().Validate(ctx, "obj", 1000, false)
	require.NoError(t, err)
	require.False(t, verdict.Valid)
	require.Equal(t, "Coupon expired", verdict.Message)

	discount, err := api.Coupons().Calculate(ctx, "bool", 1000, false)
	require.NoError(t, err)
	require.Equal(t, 100.0, discount)
}

func TestCouponIncrementUsageUppercasesCode(t *testing.T) {
	t.Parallel()

	var path string
	api := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, api.Coupons().IncrementUsage(context.Background(), " summer2023 "))
	require.Equal(t, "/api/coupons/increment-usage/SUMMER2023", path)
}

func TestHTTPErrorsKeepRestclientType(t *testing.T) {
	t.Parallel()

	api := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Product not found"}`))
	})

	_, err := api.Products().Get(context.Background(), 99)
	var rerr *restclient.Error
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, "Product not found", rerr.Message)
	require.True(t, restclient.IsNotFound(err))
}

func TestTimestampDecoding(t *testing.T) {
	t.Parallel()

	var payload struct {
		A backend.Timestamp `json:"a"`
		B backend.Timestamp `json:"b"`
		C backend.Timestamp `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"2025-01-02T15:04:05.123","b":[2024,12,31,23,59],"c":null}`), &payload))
	require.Equal(t, 2025, payload.A.Year())
	require.Equal(t, 15, payload.A.Hour())
	require.Equal(t, 31, payload.B.Day())
	require.True(t, payload.C.IsZero())

	out, err := json.Marshal(payload.A)
	require.NoError(t, err)
	require.Equal(t, `"2025-01-02T15:04:05"`, string(out))
}
