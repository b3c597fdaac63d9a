package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/pinaka-makhana/storefront/internal/platform/httpx"
	"github.com/pinaka-makhana/storefront/internal/platform/requestctx"
)

// Sessions turns the browser's bearer header into the request's backend session.
type Sessions struct {
	clock func() time.Time
}

type Option func(*Sessions)

// WithClock overrides the clock used for expiry checks.
func WithClock(clock func() time.Time) Option {
	return func(s *Sessions) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewSessions(opts ...Option) *Sessions {
	s := &Sessions{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Attach stores any bearer token in the context. Anonymous requests pass through untouched;
// a token that is present but unreadable is still forwarded so the backend can answer for it.
func (s *Sessions) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := extractBearerToken(r.Header.Get("Authorization"))
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		ctx := requestctx.WithToken(r.Context(), token)
		if identity, err := ParseIdentity(token, s.clock()); err == nil {
			ctx = WithIdentity(ctx, identity)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSession rejects requests without a bearer token.
func (s *Sessions) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := extractBearerToken(r.Header.Get("Authorization"))
		if !ok {
			httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authorization header missing or invalid", http.StatusUnauthorized))
			return
		}
		if _, err := ParseIdentity(token, s.clock()); errors.Is(err, ErrTokenExpired) {
			httpx.WriteError(r.Context(), w, httpx.NewError("token_expired", "session expired, please log in again", http.StatusUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin admits only tokens whose role or authorities include ROLE_ADMIN.
func (s *Sessions) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := extractBearerToken(r.Header.Get("Authorization"))
		if !ok {
			httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authorization header missing or invalid", http.StatusUnauthorized))
			return
		}
		identity, err := ParseIdentity(token, s.clock())
		switch {
		case errors.Is(err, ErrTokenExpired):
			httpx.WriteError(r.Context(), w, httpx.NewError("token_expired", "session expired, please log in again", http.StatusUnauthorized))
			return
		case err != nil:
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_token", "token could not be read", http.StatusUnauthorized))
			return
		case !identity.IsAdmin():
			httpx.WriteError(r.Context(), w, httpx.NewError("insufficient_role", "administrator access required", http.StatusForbidden))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" || token == "null" || token == "undefined" {
		return "", false
	}
	return token, true
}
