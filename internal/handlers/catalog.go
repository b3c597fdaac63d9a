package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pinaka-makhana/storefront/internal/backend"
	"github.com/pinaka-makhana/storefront/internal/platform/httpx"
	"github.com/pinaka-makhana/storefront/internal/platform/requestctx"
)

// CatalogHandlers serves the product catalog and its admin maintenance.
type CatalogHandlers struct {
	up upstream
}

func NewCatalogHandlers(b *backend.Backend) *CatalogHandlers {
	return &CatalogHandlers{up: upstream{base: b}}
}

// Routes wires the public /products endpoints.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listProducts)
	r.Get("/{productId}", h.getProduct)
}

// AdminRoutes wires product maintenance under the admin group.
func (h *CatalogHandlers) AdminRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/products", h.createProduct)
	r.Put("/products/{productId}", h.updateProduct)
	r.Delete("/products/{productId}", h.deleteProduct)
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	products, err := h.up.as(ctx).Products().List(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	if flavor := strings.TrimSpace(r.URL.Query().Get("flavor")); flavor != "" {
		filtered := make([]backend.Product, 0, len(products))
		for _, p := range products {
			if strings.EqualFold(p.Flavor, flavor) {
				filtered = append(filtered, p)
			}
		}
		products = filtered
	}
	if r.URL.Query().Get("available") == "true" {
		filtered := make([]backend.Product, 0, len(products))
		for _, p := range products {
			if p.Available {
				filtered = append(filtered, p)
			}
		}
		products = filtered
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"products": products, "total": len(products)})
}

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r, "productId")
	if !ok {
		return
	}
	product, err := h.up.as(ctx).Products().Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, product)
}

type productRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Flavor      string  `json:"flavor" validate:"max=100"`
	Description string  `json:"description" validate:"max=2000"`
	Price       float64 `json:"price" validate:"gt=0"`
	ImageURL    string  `json:"imageUrl" validate:"omitempty,max=1024"`
	Rating      float64 `json:"rating" validate:"gte=0,lte=5"`
	Available   *bool   `json:"available"`
}

func (p productRequest) product() backend.Product {
	available := true
	if p.Available != nil {
		available = *p.Available
	}
	return backend.Product{
		Name:        strings.TrimSpace(p.Name),
		Flavor:      strings.TrimSpace(p.Flavor),
		Description: strings.TrimSpace(p.Description),
		Price:       p.Price,
		ImageURL:    strings.TrimSpace(p.ImageURL),
		Rating:      p.Rating,
		Available:   available,
	}
}

func (h *CatalogHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req productRequest
	if !decodeBody(w, r, &req) || !validateRequest(w, r, req) {
		return
	}
	created, err := h.up.as(ctx).Products().Create(ctx, req.product())
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	requestctx.Logger(ctx).Info("product.created", zap.Int64("productId", created.ID))
	httpx.WriteJSON(w, http.StatusCreated, created)
}

func (h *CatalogHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r, "productId")
	if !ok {
		return
	}
	var req productRequest
	if !decodeBody(w, r, &req) || !validateRequest(w, r, req) {
		return
	}
	updated, err := h.up.as(ctx).Products().Update(ctx, id, req.product())
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	requestctx.Logger(ctx).Info("product.updated", zap.Int64("productId", id))
	httpx.WriteJSON(w, http.StatusOK, updated)
}

func (h *CatalogHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r, "productId")
	if !ok {
		return
	}
	if err := h.up.as(ctx).Products().Delete(ctx, id); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	requestctx.Logger(ctx).Info("product.deleted", zap.Int64("productId", id))
	w.WriteHeader(http.StatusNoContent)
}
