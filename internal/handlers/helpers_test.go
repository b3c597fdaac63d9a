package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"

	"github.com/pinaka-makhana/storefront/internal/backend"
	"github.com/pinaka-makhana/storefront/internal/payments"
	"github.com/pinaka-makhana/storefront/internal/payments/bridge"
	"github.com/pinaka-makhana/storefront/internal/platform/auth"
	"github.com/pinaka-makhana/storefront/internal/restclient"
)

const shopperToken = "opaque-shopper-token"

func newTestBackend(t *testing.T, mux *http.ServeMux) *backend.Backend {
	t.Helper()
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	client, err := restclient.New(ts.URL+"/api", restclient.WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	return backend.New(client)
}

type testAPI struct {
	handler http.Handler
	broker  *bridge.Broker
}

func newTestAPI(t *testing.T, mux *http.ServeMux, opts ...CheckoutOption) testAPI {
	t.Helper()
	b := newTestBackend(t, mux)
	sessions := auth.NewSessions()
	broker := bridge.NewBroker(bridge.WithTTL(time.Minute))
	orch, err := payments.NewOrchestrator(payments.Gateways{
		Razorpay:   bridge.NewRazorpay(broker, nil),
		GooglePay:  bridge.NewGooglePay(broker, nil),
		Paytm:      bridge.NewPaytm(broker, nil),
		Redirector: bridge.NewRedirector(broker),
	}, nil)
	require.NoError(t, err)

	catalog := NewCatalogHandlers(b)
	orders := NewOrderHandlers(b, sessions)
	admin := NewAdminHandlers(b)
	opts = append([]CheckoutOption{WithAwaitTimeout(2 * time.Second)}, opts...)

	router := NewRouter(
		WithMiddlewares(sessions.Attach),
		WithAuthRoutes(NewAuthHandlers(b, sessions).Routes),
		WithProductRoutes(catalog.Routes),
		WithCartRoutes(NewCartHandlers(b, sessions).Routes),
		WithOrderRoutes(orders.Routes),
		WithCheckoutRoutes(NewCheckoutHandlers(b, sessions, orch, broker, opts...).Routes),
		WithAdminMiddlewares(sessions.RequireAdmin),
		WithAdminRoutes(func(r chi.Router) {
			catalog.AdminRoutes(r)
			orders.AdminRoutes(r)
			admin.Routes(r)
		}),
	)
	return testAPI{handler: router, broker: broker}
}

func (a testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return a.doWithHeader(t, method, path, token, body, "", "")
}

func (a testAPI) doWithHeader(t *testing.T, method, path, token string, body any, header, value string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if header != "" {
		req.Header.Set(header, value)
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func decodeMap(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return token
}

func adminToken(t *testing.T) string {
	return signedToken(t, jwt.MapClaims{
		"sub":  "admin@pinaka.test",
		"role": "ROLE_ADMIN",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
