package handlers

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pinaka-makhana/storefront/internal/backend"
	"github.com/pinaka-makhana/storefront/internal/coupons"
	"github.com/pinaka-makhana/storefront/internal/platform/auth"
	"github.com/pinaka-makhana/storefront/internal/platform/httpx"
	"github.com/pinaka-makhana/storefront/internal/platform/requestctx"
)

// OrderHandlers covers the shopper's orders and the admin order desk.
type OrderHandlers struct {
	up       upstream
	sessions *auth.Sessions
}

func NewOrderHandlers(b *backend.Backend, sessions *auth.Sessions) *OrderHandlers {
	if sessions == nil {
		sessions = auth.NewSessions()
	}
	return &OrderHandlers{up: upstream{base: b}, sessions: sessions}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Use(h.sessions.RequireSession)
	r.Post("/", h.placeOrder)
	r.Get("/", h.history)
	r.Get("/{orderId}", h.getOrder)
}

// AdminRoutes wires order management under the admin group.
func (h *OrderHandlers) AdminRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/orders", h.adminList)
	r.Get("/orders/{orderId}", h.adminGet)
	r.Put("/orders/{orderId}/status", h.adminUpdateStatus)
}

type placeOrderRequest struct {
	CouponCode string `json:"couponCode"`
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req placeOrderRequest
	if r.ContentLength != 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}
	b := h.up.as(ctx)
	msg, err := b.Orders().Place(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	resp := map[string]any{"message": msg}
	if code := coupons.NormalizeCode(req.CouponCode); code != "" {
		// the order already exists; a failed redemption is reported, not fatal
		if err := coupons.NewEvaluator(b.Coupons()).Redeem(ctx, code); err != nil {
			requestctx.Logger(ctx).Warn("coupon.redeem_failed", zap.String("code", code), zap.Error(err))
			resp["couponRedeemed"] = false
		} else {
			resp["couponRedeemed"] = true
		}
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

func (h *OrderHandlers) history(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orders, err := h.up.as(ctx).Orders().History(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	sortNewestFirst(orders)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"orders": orders, "total": len(orders)})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r, "orderId")
	if !ok {
		return
	}
	order, err := h.up.as(ctx).Orders().Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, order)
}

func (h *OrderHandlers) adminList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orders, err := h.up.as(ctx).Orders().AdminAll(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	if status := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))); status != "" && status != "ALL" {
		if !backend.ValidOrderStatus(status) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown order status "+status, http.StatusBadRequest))
			return
		}
		filtered := make([]backend.Order, 0, len(orders))
		for _, o := range orders {
			if strings.EqualFold(o.Status, status) {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}
	if term := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("search"))); term != "" {
		filtered := make([]backend.Order, 0, len(orders))
		for _, o := range orders {
			name := ""
			if o.User != nil {
				name = o.User.Name
			}
			if strings.Contains(strings.ToLower(o.CustomerEmail()), term) || strings.Contains(strings.ToLower(name), term) {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}
	sortNewestFirst(orders)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"orders": orders, "total": len(orders)})
}

func (h *OrderHandlers) adminGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r, "orderId")
	if !ok {
		return
	}
	order, err := h.up.as(ctx).Orders().AdminGet(ctx, id)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, order)
}

type orderStatusRequest struct {
	Status string `json:"status"`
}

func (h *OrderHandlers) adminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r, "orderId")
	if !ok {
		return
	}
	var req orderStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	order, err := h.up.as(ctx).Orders().UpdateStatus(ctx, id, req.Status)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	requestctx.Logger(ctx).Info("order.status_changed", zap.Int64("orderId", id), zap.String("status", order.Status))
	httpx.WriteJSON(w, http.StatusOK, order)
}

func sortNewestFirst(orders []backend.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].PlacedAt().After(orders[j].PlacedAt().Time)
	})
}
