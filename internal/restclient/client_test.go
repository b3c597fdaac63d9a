package restclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pinaka-makhana/storefront/internal/platform/requestctx"
	"github.com/pinaka-makhana/storefront/internal/restclient"
)

func TestClientAttachesSessionAndJSONHeaders(t *testing.T) {
	t.Parallel()

	var got *http.Request
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"jwt-1","name":"John Doe"}`))
	}))
	t.Cleanup(ts.Close)

	client, err := restclient.New(ts.URL+"/api", restclient.WithHTTPClient(ts.Client()), restclient.WithSession(restclient.StaticSession("abc")))
	require.NoError(t, err)

	var out struct {
		Token string `json:"token"`
		Name  string `json:"name"`
	}
	err = client.Post(context.Background(), "/auth/login", map[string]string{"email": "a@b.c"}, &out)
	require.NoError(t, err)

	require.Equal(t, "/api/auth/login", got.URL.Path)
	require.Equal(t, "Bearer abc", got.Header.Get("Authorization"))
	require.Equal(t, "application/json", got.Header.Get("Content-Type"))
	require.NotEmpty(t, got.Header.Get("X-Request-Id"))
	require.Equal(t, "a@b.c", body["email"])
	require.Equal(t, "jwt-1", out.Token)
	require.Equal(t, "John Doe", out.Name)
}

func TestClientOmitsAuthorizationWithoutToken(t *testing.T) {
	t.Parallel()

	var auth []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Values("Authorization")
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(ts.Close)

	client, err := restclient.New(ts.URL, restclient.WithHTTPClient(ts.Client()))
	require.NoError(t, err)

	var products []map[string]any
	require.NoError(t, client.Get(context.Background(), "products", nil, &products))
	require.Empty(t, auth)
	require.Empty(t, products)
}

func TestClientMutableSessionAndWithSession(t *testing.T) {
	t.Parallel()

	var seen []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(ts.Close)

	session := restclient.NewMutableSession("")
	client, err := restclient.New(ts.URL, restclient.WithHTTPClient(ts.Client()), restclient.WithSession(session))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, client.Get(ctx, "cart", nil, nil))
	session.Set("t1")
	require.NoError(t, client.Get(ctx, "cart", nil, nil))
	require.NoError(t, client.WithSession(restclient.StaticSession("t2")).Get(ctx, "cart", nil, nil))
	session.Clear()
	require.NoError(t, client.Get(ctx, "cart", nil, nil))

	require.Equal(t, []string{"", "Bearer t1", "Bearer t2", ""}, seen)
}

func TestClientStructuredErrorMessage(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Coupon code already exists"}`))
	}))
	t.Cleanup(ts.Close)

	client, err := restclient.New(ts.URL, restclient.WithHTTPClient(ts.Client()))
	require.NoError(t, err)

	var out map[string]any
	err = client.Post(context.Background(), "coupons", map[string]string{"code": "X"}, &out)
	require.Error(t, err)
	require.Equal(t, "Coupon code already exists", err.Error())
	require.Nil(t, out)

	var rerr *restclient.Error
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, restclient.KindHTTP, rerr.Kind)
	require.Equal(t, http.StatusBadRequest, rerr.Status)
	require.True(t, restclient.IsStatus(err, http.StatusBadRequest))
}

func TestClientSyntheticErrorForUnparsableBody(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"html body", http.StatusInternalServerError, "<html>oops</html>", "HTTP 500: Internal Server Error"},
		{"empty body", http.StatusNotFound, "", "HTTP 404: Not Found"},
		{"json without message", http.StatusForbidden, `{"error":"denied"}`, "HTTP 403: Forbidden"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			t.Cleanup(ts.Close)

			client, err := restclient.New(ts.URL, restclient.WithHTTPClient(ts.Client()))
			require.NoError(t, err)

			err = client.Get(context.Background(), "orders/history", nil, nil)
			require.EqualError(t, err, tc.want)
			require.Equal(t, tc.status, restclient.StatusCode(err))
		})
	}
}

func TestClientNetworkError(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.NotFoundHandler())
	base := ts.URL
	ts.Close()

	client, err := restclient.New(base)
	require.NoError(t, err)

	err = client.Get(context.Background(), "products", nil, nil)
	require.Error(t, err)
	require.True(t, restclient.IsNetwork(err))
	require.Zero(t, restclient.StatusCode(err))
}

func TestClientTextResponseAndQuery(t *testing.T) {
	t.Parallel()

	var query url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		require.Equal(t, "/api/cart/add", r.URL.Path)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("Product added to cart"))
	}))
	t.Cleanup(ts.Close)

	client, err := restclient.New(ts.URL+"/api/", restclient.WithHTTPClient(ts.Client()))
	require.NoError(t, err)

	var text string
	err = client.Do(context.Background(), restclient.Request{
		Method: http.MethodPost,
		Path:   "cart/add",
		Query:  url.Values{"productId": {"1"}, "quantity": {"2"}},
	}, &text)
	require.NoError(t, err)
	require.Equal(t, "Product added to cart", text)
	require.Equal(t, "1", query.Get("productId"))
	require.Equal(t, "2", query.Get("quantity"))
}

func TestClientDecodeFailureIsNotSuccess(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	t.Cleanup(ts.Close)

	client, err := restclient.New(ts.URL, restclient.WithHTTPClient(ts.Client()))
	require.NoError(t, err)

	var out []int
	err = client.Get(context.Background(), "products", nil, &out)
	var rerr *restclient.Error
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, restclient.KindDecode, rerr.Kind)
}

func TestClientHeaderOverridesAndRequestID(t *testing.T) {
	t.Parallel()

	var got http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	t.Cleanup(ts.Close)

	client, err := restclient.New(ts.URL, restclient.WithHTTPClient(ts.Client()), restclient.WithSession(restclient.StaticSession("abc")))
	require.NoError(t, err)

	ctx := requestctx.WithRequestID(context.Background(), "req-42")
	err = client.Do(ctx, restclient.Request{
		Method: http.MethodGet,
		Path:   "products",
		Header: http.Header{"Authorization": {"Bearer override"}},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "Bearer override", got.Get("Authorization"))
	require.Equal(t, "req-42", got.Get("X-Request-Id"))
}

func TestNewRejectsRelativeBase(t *testing.T) {
	t.Parallel()

	_, err := restclient.New("/api")
	require.Error(t, err)
	_, err = restclient.New("")
	require.Error(t, err)
}
