package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pinaka-makhana/storefront/internal/backend"
	"github.com/pinaka-makhana/storefront/internal/coupons"
	"github.com/pinaka-makhana/storefront/internal/payments"
	"github.com/pinaka-makhana/storefront/internal/restclient"
	"github.com/pinaka-makhana/storefront/internal/users"
)

func TestErrorEnvelopeMapping(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "upstream conflict passes through",
			err:    fmt.Errorf("backend: create coupon: %w", &restclient.Error{Kind: restclient.KindHTTP, Status: http.StatusConflict, Message: "Coupon code already exists"}),
			status: http.StatusConflict,
			code:   "conflict",
		},
		{
			name:   "upstream 500 becomes bad gateway",
			err:    &restclient.Error{Kind: restclient.KindHTTP, Status: http.StatusInternalServerError, Message: "HTTP 500: Internal Server Error"},
			status: http.StatusBadGateway,
			code:   "upstream_error",
		},
		{
			name:   "network failure",
			err:    &restclient.Error{Kind: restclient.KindNetwork, Message: "connection refused"},
			status: http.StatusBadGateway,
			code:   "backend_unavailable",
		},
		{
			name:   "decode failure",
			err:    &restclient.Error{Kind: restclient.KindDecode, Status: http.StatusOK, Message: "unexpected response"},
			status: http.StatusBadGateway,
			code:   "upstream_invalid_response",
		},
		{
			name:   "invalid quantity",
			err:    backend.ErrInvalidQuantity,
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name:   "invalid role",
			err:    fmt.Errorf("wrap: %w", users.ErrInvalidRole),
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name:   "coupon rejected",
			err:    &coupons.RejectedError{Code: "OLD", Message: "Coupon has expired"},
			status: http.StatusUnprocessableEntity,
			code:   "coupon_rejected",
		},
		{
			name:   "provider sdk",
			err:    &payments.Failure{Method: payments.MethodRazorpay, Kind: payments.KindProviderSDK, Err: payments.ErrProviderUnavailable},
			status: http.StatusServiceUnavailable,
			code:   "provider_unavailable",
		},
		{
			name:   "provider rejection",
			err:    &payments.Failure{Method: payments.MethodPaytm, Kind: payments.KindProviderRejection, Err: payments.ErrDeclined},
			status: http.StatusPaymentRequired,
			code:   "payment_rejected",
		},
		{
			name:   "deadline",
			err:    fmt.Errorf("backend: list: %w", context.DeadlineExceeded),
			status: http.StatusGatewayTimeout,
			code:   "upstream_timeout",
		},
		{
			name:   "unexpected",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			code:   "internal_error",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			env := errorEnvelope(ctx, tc.err)
			require.Equal(t, tc.status, env.Status)
			require.Equal(t, tc.code, env.Code)
		})
	}
}

func TestErrorEnvelopeKeepsOpMessage(t *testing.T) {
	t.Parallel()

	err := &coupons.OpError{
		Message: "Failed to delete coupon",
		Err:     &restclient.Error{Kind: restclient.KindHTTP, Status: http.StatusNotFound, Message: "Coupon not found"},
	}
	env := errorEnvelope(context.Background(), err)
	require.Equal(t, http.StatusNotFound, env.Status)
	require.Equal(t, "not_found", env.Code)
	require.Equal(t, "Failed to delete coupon", env.Message)
}

func TestRootMessageStripsPackagePrefix(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("users: set role 7: %w", users.ErrInvalidRole)
	require.Equal(t, rootMessage(users.ErrInvalidRole), rootMessage(err))
	require.NotContains(t, rootMessage(err), "users:")
}
