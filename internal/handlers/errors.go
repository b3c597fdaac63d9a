package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pinaka-makhana/storefront/internal/backend"
	"github.com/pinaka-makhana/storefront/internal/coupons"
	"github.com/pinaka-makhana/storefront/internal/payments"
	"github.com/pinaka-makhana/storefront/internal/platform/httpx"
	"github.com/pinaka-makhana/storefront/internal/platform/requestctx"
	"github.com/pinaka-makhana/storefront/internal/restclient"
	"github.com/pinaka-makhana/storefront/internal/users"
)

const defaultBodyLimit = 64 * 1024

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body too large")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeBody reads a JSON body into out and writes the 4xx itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	ctx := r.Context()
	body, err := readLimitedBody(r, defaultBodyLimit)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
			return false
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_json", fmt.Sprintf("request body is not valid JSON: %v", err), http.StatusBadRequest))
		return false
	}
	return true
}

// pathID parses a positive integer URL parameter and writes the 400 itself on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_id", fmt.Sprintf("%s must be a positive integer", name), http.StatusBadRequest))
		return 0, false
	}
	return id, true
}

// upstream hands out backend views bound to the caller's bearer token.
type upstream struct {
	base *backend.Backend
}

func (u upstream) as(ctx context.Context) *backend.Backend {
	return u.base.As(restclient.StaticSession(requestctx.Token(ctx)))
}

// sessionOwner is a stable, non-reversible handle for the caller's session.
func sessionOwner(ctx context.Context) string {
	token := requestctx.Token(ctx)
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:16])
}

// writeServiceError maps errors from the backend, coupon, payment and user layers onto
// the JSON envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	httpx.WriteError(ctx, w, errorEnvelope(ctx, err))
}

func errorEnvelope(ctx context.Context, err error) httpx.Error {
	var (
		opErr       *coupons.OpError
		couponVerr  *coupons.ValidationError
		rejected    *coupons.RejectedError
		paymentVerr *payments.ValidationError
		failure     *payments.Failure
		restErr     *restclient.Error
	)
	switch {
	case errors.As(err, &couponVerr):
		return httpx.NewError("validation_failed", couponVerr.First(), http.StatusUnprocessableEntity).
			WithDetails(map[string]any{"fields": couponVerr.Fields()})
	case errors.As(err, &rejected):
		return httpx.NewError("coupon_rejected", rejected.Message, http.StatusUnprocessableEntity)
	case errors.As(err, &failure):
		return failureEnvelope(failure)
	case errors.As(err, &paymentVerr):
		return httpx.NewError("validation_failed", paymentVerr.Error(), http.StatusUnprocessableEntity).
			WithDetails(map[string]any{"fields": paymentVerr.Fields()})
	case errors.Is(err, backend.ErrInvalidQuantity),
		errors.Is(err, backend.ErrInvalidStatus),
		errors.Is(err, users.ErrInvalidRole),
		errors.Is(err, coupons.ErrUnknownFilter),
		errors.Is(err, payments.ErrUnsupportedMethod):
		return httpx.NewError("invalid_request", rootMessage(err), http.StatusBadRequest)
	case errors.As(err, &opErr):
		env := errorEnvelope(ctx, opErr.Err)
		env.Message = opErr.Message
		return env
	case errors.As(err, &restErr):
		return restEnvelope(restErr)
	case errors.Is(err, context.DeadlineExceeded):
		return httpx.NewError("upstream_timeout", "the storefront backend did not answer in time", http.StatusGatewayTimeout)
	case errors.Is(err, context.Canceled):
		return httpx.NewError("request_cancelled", "request cancelled", 499)
	default:
		requestctx.Logger(ctx).Error("handler.unexpected_error", zap.Error(err))
		return httpx.NewError("internal_error", "something went wrong, please try again", http.StatusInternalServerError)
	}
}

func restEnvelope(e *restclient.Error) httpx.Error {
	switch e.Kind {
	case restclient.KindHTTP:
		status := e.Status
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		return httpx.NewError(upstreamCode(e.Status), e.Message, status).
			WithDetails(map[string]any{"upstream_status": e.Status})
	case restclient.KindDecode:
		return httpx.NewError("upstream_invalid_response", e.Message, http.StatusBadGateway)
	default:
		return httpx.NewError("backend_unavailable", e.Message, http.StatusBadGateway)
	}
}

func upstreamCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	default:
		return "upstream_error"
	}
}

func failureEnvelope(f *payments.Failure) httpx.Error {
	details := map[string]any{"kind": string(f.Kind)}
	if f.Method != "" {
		details["method"] = string(f.Method)
	}
	switch f.Kind {
	case payments.KindValidation:
		var verr *payments.ValidationError
		if errors.As(f.Err, &verr) {
			details["fields"] = verr.Fields()
		}
		return httpx.NewError("validation_failed", f.Message(), http.StatusUnprocessableEntity).WithDetails(details)
	case payments.KindProviderRejection:
		return httpx.NewError("payment_rejected", f.Message(), http.StatusPaymentRequired).WithDetails(details)
	case payments.KindProviderSDK:
		return httpx.NewError("provider_unavailable", f.Message(), http.StatusServiceUnavailable).WithDetails(details)
	case payments.KindHTTP:
		var restErr *restclient.Error
		if errors.As(f.Err, &restErr) {
			env := restEnvelope(restErr)
			merged := make(map[string]any, len(env.Details)+len(details))
			for k, v := range env.Details {
				merged[k] = v
			}
			for k, v := range details {
				merged[k] = v
			}
			return env.WithDetails(merged)
		}
		return httpx.NewError("upstream_error", f.Message(), http.StatusBadGateway).WithDetails(details)
	default:
		return httpx.NewError("backend_unavailable", f.Message(), http.StatusBadGateway).WithDetails(details)
	}
}

// rootMessage returns the innermost wrapped message without its package prefix.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	msg := err.Error()
	if idx := strings.Index(msg, ": "); idx > 0 && !strings.Contains(msg[:idx], " ") {
		msg = msg[idx+2:]
	}
	return msg
}
