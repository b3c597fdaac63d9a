package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	// ErrTokenMalformed signals a bearer value that is not a JWT.
	ErrTokenMalformed = errors.New("auth: token malformed")
	// ErrTokenExpired signals a token whose exp claim has passed.
	ErrTokenExpired = errors.New("auth: token expired")
)

// ParseIdentity decodes the token payload without verifying the signature. The HS512
// key lives only in the backend, which rejects forged tokens on every proxied call.
func ParseIdentity(token string, now time.Time) (*Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	identity := &Identity{
		Email: claimAsString(claims, "sub"),
		Name:  claimAsString(claims, "name"),
		Roles: rolesFromClaims(claims),
	}
	if email := claimAsString(claims, "email"); email != "" {
		identity.Email = email
	}
	if exp, ok := claims["exp"].(float64); ok {
		identity.ExpiresAt = time.Unix(int64(exp), 0)
		if !now.IsZero() && now.After(identity.ExpiresAt) {
			return identity, ErrTokenExpired
		}
	}
	if len(identity.Roles) == 0 {
		identity.Roles = []string{RoleUser}
	}
	return identity, nil
}

// rolesFromClaims reads "role" and Spring-style "authorities" (strings or {authority} objects).
func rolesFromClaims(claims jwt.MapClaims) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(value string) {
		role := normaliseRole(value)
		if role == "" {
			return
		}
		if _, ok := seen[role]; ok {
			return
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}

	for _, key := range []string{"role", "roles", "authorities"} {
		switch v := claims[key].(type) {
		case string:
			for _, part := range strings.Split(v, ",") {
				add(part)
			}
		case []interface{}:
			for _, item := range v {
				switch entry := item.(type) {
				case string:
					add(entry)
				case map[string]interface{}:
					if s, ok := entry["authority"].(string); ok {
						add(s)
					}
				}
			}
		}
	}
	return out
}

func claimAsString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
