package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/pinaka-makhana/storefront/internal/payments"
	"github.com/pinaka-makhana/storefront/internal/payments/bridge"
	"github.com/pinaka-makhana/storefront/internal/platform/auth"
	"github.com/pinaka-makhana/storefront/internal/platform/httpx"
	"github.com/pinaka-makhana/storefront/internal/platform/requestctx"
)

type paymentRequest struct {
	Method string             `json:"method"`
	Order  payments.OrderData `json:"order"`
	payments.Params
}

func (h *CheckoutHandlers) createPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orch == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payments_unavailable", "payments are not configured", http.StatusServiceUnavailable))
		return
	}
	var req paymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	method, err := payments.ParseMethod(req.Method)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	instr, err := payments.InstructionFor(method, req.Params)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	order := req.Order
	if strings.TrimSpace(order.OrderID) == "" {
		order.OrderID = "ORDER_" + ulid.Make().String()
	}
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		if strings.TrimSpace(order.CustomerEmail) == "" {
			order.CustomerEmail = identity.Email
		}
		if strings.TrimSpace(order.CustomerName) == "" {
			order.CustomerName = identity.Name
		}
	}

	attempt := h.broker.Begin(method, order.OrderID, sessionOwner(ctx))
	orch := h.orch.WithGlue(h.up.as(ctx).PaymentGlue())

	// the attempt outlives this request; the browser drives it through callbacks
	runCtx := payments.WithAttempt(context.WithoutCancel(ctx), attempt.ID)
	go func() {
		runCtx, cancel := context.WithTimeout(runCtx, h.broker.TTL())
		defer cancel()
		result, err := orch.Pay(runCtx, order, instr)
		h.broker.Finish(attempt.ID, result, err)
	}()

	requestctx.Logger(ctx).Info("payment.attempt_started",
		zap.String("attempt_id", attempt.ID),
		zap.String("method", string(method)),
		zap.String("order_id", order.OrderID))
	h.respondSettled(w, r, attempt.ID)
}

func (h *CheckoutHandlers) getPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "attemptId")
	snapshot, ok := h.broker.Snapshot(id, sessionOwner(ctx))
	if !ok {
		writeAttemptError(ctx, w, bridge.ErrAttemptNotFound)
		return
	}
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait && !snapshot.Terminal() {
		if next, err := h.await(ctx, id); err == nil {
			snapshot = next
		} else if errors.Is(err, bridge.ErrAttemptNotFound) {
			writeAttemptError(ctx, w, err)
			return
		}
	}
	w.Header().Set("Cache-Control", "no-store")
	httpx.WriteJSON(w, http.StatusOK, snapshot)
}

func (h *CheckoutHandlers) paymentCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "attemptId")
	var cb bridge.Callback
	if !decodeBody(w, r, &cb) {
		return
	}
	cb.Event = strings.TrimSpace(cb.Event)
	if cb.Event == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "event is required", http.StatusBadRequest))
		return
	}
	if err := h.broker.Complete(id, sessionOwner(ctx), cb); err != nil {
		writeAttemptError(ctx, w, err)
		return
	}
	h.respondSettled(w, r, id)
}

func (h *CheckoutHandlers) verifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orch == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payments_unavailable", "payments are not configured", http.StatusServiceUnavailable))
		return
	}
	var req payments.VerifyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	verification, err := h.orch.WithGlue(h.up.as(ctx).PaymentGlue()).Verify(ctx, req)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, verification)
}

func (h *CheckoutHandlers) await(ctx context.Context, id string) (bridge.Attempt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, h.awaitTimeout)
	defer cancel()
	return h.broker.Await(waitCtx, id)
}

// respondSettled waits for the attempt to need the browser or finish. 200 means the
// payment succeeded, 202 that the browser has an action to perform or should poll.
func (h *CheckoutHandlers) respondSettled(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	snapshot, err := h.await(ctx, id)
	if err != nil && errors.Is(err, bridge.ErrAttemptNotFound) {
		writeAttemptError(ctx, w, err)
		return
	}
	switch snapshot.Status {
	case bridge.StatusSucceeded:
		httpx.WriteJSON(w, http.StatusOK, snapshot)
	case bridge.StatusFailed:
		httpx.WriteError(ctx, w, attemptFailure(snapshot))
	default:
		httpx.WriteJSON(w, http.StatusAccepted, snapshot)
	}
}

func attemptFailure(a bridge.Attempt) httpx.Error {
	f := &payments.Failure{Method: a.Method, Kind: payments.KindNetwork}
	if a.Failure != nil {
		f.Kind = a.Failure.Kind
		f.Err = errors.New(a.Failure.Message)
	}
	env := failureEnvelope(f)
	details := make(map[string]any, len(env.Details)+1)
	for k, v := range env.Details {
		details[k] = v
	}
	details["attempt"] = a
	return env.WithDetails(details)
}

func writeAttemptError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bridge.ErrAttemptNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("attempt_not_found", "payment attempt not found", http.StatusNotFound))
	case errors.Is(err, bridge.ErrAttemptFinished):
		httpx.WriteError(ctx, w, httpx.NewError("attempt_finished", "payment attempt already finished", http.StatusConflict))
	case errors.Is(err, bridge.ErrNoPendingAction):
		httpx.WriteError(ctx, w, httpx.NewError("no_pending_action", "payment attempt is not waiting for the browser", http.StatusConflict))
	default:
		writeServiceError(ctx, w, err)
	}
}
