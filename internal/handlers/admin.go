package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pinaka-makhana/storefront/internal/backend"
	"github.com/pinaka-makhana/storefront/internal/coupons"
	"github.com/pinaka-makhana/storefront/internal/platform/httpx"
	"github.com/pinaka-makhana/storefront/internal/users"
)

const (
	defaultExpiringDays = 7
	maxExpiringDays     = 90
)

// AdminHandlers serves the coupon and user back office. Orders and products register
// their own admin routes.
type AdminHandlers struct {
	up  upstream
	now func() time.Time
}

// AdminOption customises admin handler behaviour.
type AdminOption func(*AdminHandlers)

// WithAdminClock overrides the clock used to derive coupon status.
func WithAdminClock(now func() time.Time) AdminOption {
	return func(h *AdminHandlers) {
		if now != nil {
			h.now = now
		}
	}
}

func NewAdminHandlers(b *backend.Backend, opts ...AdminOption) *AdminHandlers {
	h := &AdminHandlers{up: upstream{base: b}, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the admin coupon and user endpoints onto the provided router.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/coupons", func(cr chi.Router) {
		cr.Get("/", h.listCoupons)
		cr.Post("/", h.createCoupon)
		cr.Get("/expiring", h.expiringCoupons)
		cr.Get("/{couponId}", h.getCoupon)
		cr.Get("/{couponId}/draft", h.couponDraft)
		cr.Put("/{couponId}", h.updateCoupon)
		cr.Delete("/{couponId}", h.deleteCoupon)
		cr.Post("/{couponId}/toggle", h.toggleCoupon)
	})
	r.Route("/users", func(ur chi.Router) {
		ur.Get("/", h.listUsers)
		ur.Get("/{userId}", h.getUser)
		ur.Get("/{userId}/stats", h.userStats)
		ur.Put("/{userId}/status", h.setUserStatus)
		ur.Put("/{userId}/role", h.setUserRole)
	})
}

func (h *AdminHandlers) couponAdmin(r *http.Request) *coupons.Admin {
	return coupons.NewAdmin(h.up.as(r.Context()).Coupons(), coupons.WithAdminClock(h.now))
}

func (h *AdminHandlers) directory(r *http.Request) *users.Directory {
	b := h.up.as(r.Context())
	return users.NewDirectory(b.AdminUsers(), b.Orders())
}

func (h *AdminHandlers) listCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()
	status, err := coupons.ParseFilterStatus(query.Get("status"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	list, err := h.couponAdmin(r).List(ctx, coupons.Filter{Search: query.Get("search"), Status: status})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"coupons": list, "total": len(list)})
}

func (h *AdminHandlers) expiringCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	days := defaultExpiringDays
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxExpiringDays {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "days must be between 1 and 90", http.StatusBadRequest))
			return
		}
		days = n
	}
	list, err := h.couponAdmin(r).Expiring(ctx, time.Duration(days)*24*time.Hour)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"coupons": list, "total": len(list), "days": days})
}

func (h *AdminHandlers) getCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r, "couponId")
	if !ok {
		return
	}
	view, err := h.couponAdmin(r).Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view)
}

func (h *AdminHandlers) couponDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r, "couponId")
	if !ok {
		return
	}
	draft, err := h.couponAdmin(r).Draft(ctx, id)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, draft)
}

func (h *AdminHandlers) createCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	draft := coupons.NewDraft()
	if !decodeBody(w, r, &draft) {
		return
	}
	created, err := h.couponAdmin(r).Create(ctx, draft)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, created)
}

func (h *AdminHandlers) updateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r, "couponId")
	if !ok {
		return
	}
	var draft coupons.Draft
	if !decodeBody(w, r, &draft) {
		return
	}
	updated, err := h.couponAdmin(r).Update(ctx, id, draft)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, updated)
}

func (h *AdminHandlers) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r, "couponId")
	if !ok {
		return
	}
	if err := h.couponAdmin(r).Delete(ctx, id); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandlers) toggleCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r, "couponId")
	if !ok {
		return
	}
	updated, err := h.couponAdmin(r).Toggle(ctx, id)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, updated)
}

func (h *AdminHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listing, err := h.directory(r).List(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	accounts := users.Search(listing.Users, r.URL.Query().Get("search"))
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"users":    accounts,
		"strategy": listing.Strategy,
		"total":    len(accounts),
	})
}

func (h *AdminHandlers) getUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	account, err := h.directory(r).Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, account)
}

func (h *AdminHandlers) userStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	stats, err := h.directory(r).Stats(ctx, id)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}

type userStatusRequest struct {
	Active *bool `json:"active"`
}

func (h *AdminHandlers) setUserStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	var req userStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Active == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "active is required", http.StatusBadRequest))
		return
	}
	account, err := h.directory(r).SetActive(ctx, id, *req.Active)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, account)
}

type userRoleRequest struct {
	Role string `json:"role"`
}

func (h *AdminHandlers) setUserRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	var req userRoleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	account, err := h.directory(r).SetRole(ctx, id, req.Role)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, account)
}
