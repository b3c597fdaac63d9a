package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/pinaka-makhana/storefront/internal/backend"
	"github.com/pinaka-makhana/storefront/internal/coupons"
	"github.com/pinaka-makhana/storefront/internal/payments"
	"github.com/pinaka-makhana/storefront/internal/payments/bridge"
	"github.com/pinaka-makhana/storefront/internal/platform/auth"
	"github.com/pinaka-makhana/storefront/internal/platform/httpx"
	"github.com/pinaka-makhana/storefront/internal/platform/money"
)

const defaultAwaitTimeout = 25 * time.Second

// CheckoutHandlers serves the payment method catalog, coupon pricing and payment attempts.
type CheckoutHandlers struct {
	up           upstream
	sessions     *auth.Sessions
	orch         *payments.Orchestrator
	broker       *bridge.Broker
	idempotent   func(http.Handler) http.Handler
	awaitTimeout time.Duration
}

// CheckoutOption customises checkout handler behaviour.
type CheckoutOption func(*CheckoutHandlers)

// WithIdempotency guards attempt creation with the supplied middleware.
func WithIdempotency(mw func(http.Handler) http.Handler) CheckoutOption {
	return func(h *CheckoutHandlers) {
		h.idempotent = mw
	}
}

// WithAwaitTimeout bounds how long a request waits for an attempt to need the browser or finish.
func WithAwaitTimeout(d time.Duration) CheckoutOption {
	return func(h *CheckoutHandlers) {
		if d > 0 {
			h.awaitTimeout = d
		}
	}
}

func NewCheckoutHandlers(b *backend.Backend, sessions *auth.Sessions, orch *payments.Orchestrator, broker *bridge.Broker, opts ...CheckoutOption) *CheckoutHandlers {
	if sessions == nil {
		sessions = auth.NewSessions()
	}
	if broker == nil {
		broker = bridge.NewBroker()
	}
	h := &CheckoutHandlers{
		up:           upstream{base: b},
		sessions:     sessions,
		orch:         orch,
		broker:       broker,
		awaitTimeout: defaultAwaitTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/methods", h.listMethods)
	r.Get("/banks", h.listBanks)
	r.Get("/emi", h.emiPlans)
	r.Get("/summary", h.summary)
	r.Get("/coupons", h.offers)
	r.Post("/coupon", h.applyCoupon)

	r.Group(func(pr chi.Router) {
		pr.Use(h.sessions.RequireSession)
		if h.idempotent != nil {
			pr.With(h.idempotent).Post("/payments", h.createPayment)
		} else {
			pr.Post("/payments", h.createPayment)
		}
		pr.Post("/payments/verify", h.verifyPayment)
		pr.Get("/payments/{attemptId}", h.getPayment)
		pr.Post("/payments/{attemptId}/callback", h.paymentCallback)
	})
}

func (h *CheckoutHandlers) listMethods(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"methods": payments.Catalog()})
}

func (h *CheckoutHandlers) listBanks(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"banks": payments.Banks()})
}

func (h *CheckoutHandlers) emiPlans(w http.ResponseWriter, r *http.Request) {
	amount, ok := queryAmount(w, r)
	if !ok {
		return
	}
	plans := payments.EMIPlans(amount)
	display := make([]map[string]any, 0, len(plans))
	for _, plan := range plans {
		display = append(display, map[string]any{
			"months":  plan.Months,
			"monthly": plan.Monthly,
			"label":   money.FormatINR(plan.Monthly) + "/month for " + strconv.Itoa(plan.Months) + " months",
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"amount": amount, "plans": display})
}

func (h *CheckoutHandlers) summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	method, err := payments.ParseMethod(r.URL.Query().Get("method"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	amount, ok := queryAmount(w, r)
	if !ok {
		return
	}
	s := payments.Summarize(method, amount)
	resp := map[string]any{
		"summary": s,
		"display": map[string]any{
			"subtotal":   money.FormatINR(s.Subtotal),
			"shipping":   money.FormatINR(s.Shipping),
			"codCharges": money.FormatINR(s.CODCharges),
			"total":      money.FormatINR(s.Total),
		},
	}
	if d, ok := payments.Describe(method); ok {
		resp["method"] = d
	}
	if method == payments.MethodEMI {
		resp["emiPlans"] = payments.EMIPlans(s.Total)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *CheckoutHandlers) offers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	remote := h.up.as(ctx).Coupons()
	var (
		list []backend.Coupon
		err  error
	)
	if firstTime, _ := strconv.ParseBool(r.URL.Query().Get("firstTime")); firstTime {
		list, err = remote.FirstTime(ctx)
	} else {
		list, err = remote.Active(ctx)
	}
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"coupons": list, "total": len(list)})
}

type couponRequest struct {
	Code          string          `json:"code"`
	Amount        decimal.Decimal `json:"amount"`
	FirstTimeUser bool            `json:"firstTimeUser"`
}

func (h *CheckoutHandlers) applyCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req couponRequest
	if !decodeBody(w, r, &req) {
		return
	}
	quote, err := coupons.NewEvaluator(h.up.as(ctx).Coupons()).Apply(ctx, coupons.Request{
		Code:          req.Code,
		Amount:        req.Amount,
		FirstTimeUser: req.FirstTimeUser,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"quote": quote,
		"display": map[string]any{
			"amount":   money.FormatINR(quote.Amount),
			"discount": money.FormatINR(quote.Discount),
			"total":    money.FormatINR(quote.Total),
		},
	})
}

func queryAmount(w http.ResponseWriter, r *http.Request) (decimal.Decimal, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("amount"))
	amount, err := decimal.NewFromString(raw)
	if err != nil || !amount.IsPositive() {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "amount must be a positive number", http.StatusBadRequest))
		return decimal.Zero, false
	}
	return amount, true
}
