package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/pinaka-makhana/storefront/internal/backend"
	"github.com/pinaka-makhana/storefront/internal/platform/auth"
	"github.com/pinaka-makhana/storefront/internal/platform/httpx"
	"github.com/pinaka-makhana/storefront/internal/platform/observability"
	"github.com/pinaka-makhana/storefront/internal/platform/requestctx"
)

var (
	requestValidator = validator.New()
	timeNow          = time.Now
)

// AuthHandlers proxies login and registration to the backend.
type AuthHandlers struct {
	up       upstream
	sessions *auth.Sessions
}

func NewAuthHandlers(b *backend.Backend, sessions *auth.Sessions) *AuthHandlers {
	if sessions == nil {
		sessions = auth.NewSessions()
	}
	return &AuthHandlers{up: upstream{base: b}, sessions: sessions}
}

// Routes wires the /auth endpoints onto the provided router.
func (h *AuthHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/login", h.login)
	r.Post("/register", h.register)
	r.With(h.sessions.RequireSession).Get("/me", h.me)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

var authFieldMessages = map[string]string{
	"Name":     "name is required",
	"Email":    "a valid email is required",
	"Password": "password is required",
}

type sessionResponse struct {
	Token   string `json:"token"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	IsAdmin bool   `json:"isAdmin"`
}

func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if !validateRequest(w, r, req) {
		return
	}

	resp, err := h.up.as(ctx).Auth().Login(ctx, backend.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	requestctx.Logger(ctx).Info("auth.login", zap.String("email", observability.MaskEmail(resp.Email)))
	httpx.WriteJSON(w, http.StatusOK, newSessionResponse(resp))
}

func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if !validateRequest(w, r, req) {
		return
	}

	// admin accounts are never self-registered through the storefront
	resp, err := h.up.as(ctx).Auth().Register(ctx, backend.Registration{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	requestctx.Logger(ctx).Info("auth.register", zap.String("email", observability.MaskEmail(resp.Email)))
	httpx.WriteJSON(w, http.StatusCreated, newSessionResponse(resp))
}

func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_token", "token could not be read", http.StatusUnauthorized))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"email":     identity.Email,
		"name":      identity.Name,
		"roles":     identity.Roles,
		"isAdmin":   identity.IsAdmin(),
		"expiresAt": identity.ExpiresAt,
	})
}

func (h *AuthHandlers) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, backend.ErrEmptyToken) {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_credentials", "login failed, no session was issued", http.StatusUnauthorized))
		return
	}
	writeServiceError(r.Context(), w, err)
}

func newSessionResponse(resp *backend.AuthResponse) sessionResponse {
	out := sessionResponse{Token: resp.Token, Name: resp.Name, Email: resp.Email, Role: resp.Role}
	if identity, err := auth.ParseIdentity(resp.Token, timeNow()); err == nil {
		out.IsAdmin = identity.IsAdmin()
		if out.Email == "" {
			out.Email = identity.Email
		}
	}
	if strings.EqualFold(resp.Role, auth.RoleAdmin) {
		out.IsAdmin = true
	}
	return out
}

// validateRequest runs struct tags and writes a 422 listing the failed fields.
func validateRequest(w http.ResponseWriter, r *http.Request, req any) bool {
	err := requestValidator.Struct(req)
	if err == nil {
		return true
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return false
	}
	fields := make(map[string]string, len(fieldErrs))
	first := ""
	for _, fe := range fieldErrs {
		msg, ok := authFieldMessages[fe.StructField()]
		if !ok || (fe.Tag() != "required" && fe.Tag() != "email") {
			msg = strings.ToLower(fe.StructField()) + " is invalid"
		}
		if fe.StructField() == "Password" && fe.Tag() == "min" {
			msg = "password must be at least 6 characters"
		}
		fields[strings.ToLower(fe.StructField()[:1])+fe.StructField()[1:]] = msg
		if first == "" {
			first = msg
		}
	}
	httpx.WriteError(r.Context(), w, httpx.NewError("validation_failed", first, http.StatusUnprocessableEntity).
		WithDetails(map[string]any{"fields": fields}))
	return false
}
