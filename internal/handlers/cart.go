package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/pinaka-makhana/storefront/internal/backend"
	"github.com/pinaka-makhana/storefront/internal/payments"
	"github.com/pinaka-makhana/storefront/internal/platform/auth"
	"github.com/pinaka-makhana/storefront/internal/platform/httpx"
	"github.com/pinaka-makhana/storefront/internal/platform/money"
)

// CartHandlers exposes the caller's backend cart.
type CartHandlers struct {
	up       upstream
	sessions *auth.Sessions
}

func NewCartHandlers(b *backend.Backend, sessions *auth.Sessions) *CartHandlers {
	if sessions == nil {
		sessions = auth.NewSessions()
	}
	return &CartHandlers{up: upstream{base: b}, sessions: sessions}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Use(h.sessions.RequireSession)
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Put("/items/{productId}", h.updateItem)
	r.Delete("/items/{productId}", h.removeItem)
}

type cartLine struct {
	backend.CartItem
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type cartResponse struct {
	Items    []cartLine      `json:"items"`
	Count    int             `json:"count"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
	Display  map[string]any  `json:"display"`
}

func buildCartResponse(items []backend.CartItem) cartResponse {
	resp := cartResponse{Items: make([]cartLine, 0, len(items)), Subtotal: decimal.Zero, Shipping: decimal.Zero}
	for _, item := range items {
		line := decimal.NewFromFloat(item.Product.Price).Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		resp.Items = append(resp.Items, cartLine{CartItem: item, LineTotal: line})
		resp.Subtotal = resp.Subtotal.Add(line)
		resp.Count += item.Quantity
	}
	if len(items) > 0 {
		resp.Shipping = payments.ShippingCharge
	}
	resp.Total = resp.Subtotal.Add(resp.Shipping)
	resp.Display = map[string]any{
		"subtotal": money.FormatINR(resp.Subtotal),
		"shipping": money.FormatINR(resp.Shipping),
		"total":    money.FormatINR(resp.Total),
		"currency": money.Code,
	}
	return resp
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	items, err := h.up.as(ctx).Cart().Get(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httpx.WriteJSON(w, http.StatusOK, buildCartResponse(items))
}

type cartItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req cartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ProductID <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "productId must be a positive integer", http.StatusBadRequest))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	msg, err := h.up.as(ctx).Cart().Add(ctx, req.ProductID, req.Quantity)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": msg})
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r, "productId")
	if !ok {
		return
	}
	var req cartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	msg, err := h.up.as(ctx).Cart().Update(ctx, id, req.Quantity)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": msg})
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r, "productId")
	if !ok {
		return
	}
	msg, err := h.up.as(ctx).Cart().Remove(ctx, id)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": msg})
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	msg, err := h.up.as(ctx).Cart().Clear(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": msg})
}
