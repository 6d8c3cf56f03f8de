// Package middleware carries the authentication layer the router composes
// around handlers: token extraction, claim validation, and the admin gate.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/example/storefront/internal/auth"
)

type contextKey string

// UserContextKey is where validated access-token claims live on the
// request context.
const UserContextKey contextKey = "user"

// ExtractToken pulls the access token from the cookie browsers send, or
// from a bearer Authorization header for API clients.
func ExtractToken(r *http.Request) string {
	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// AuthMiddleware rejects requests without a valid access token and puts the
// claims on the context for handlers downstream.
func AuthMiddleware(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				respondError(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := jwtService.ValidateAccessToken(token)
			if err != nil {
				respondError(w, "invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuthMiddleware attaches claims when a valid token is present and
// passes the request through either way. The catalog uses it: anonymous
// visitors browse active products, admins also see inactive ones.
func OptionalAuthMiddleware(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := ExtractToken(r); token != "" {
				if claims, err := jwtService.ValidateAccessToken(token); err == nil {
					r = r.WithContext(withClaims(r.Context(), claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin gates a handler on the admin role. It assumes AuthMiddleware
// already ran; a request with no claims on the context is treated as
// unauthenticated rather than merely forbidden.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetUserFromContext(r.Context())
		if !ok {
			respondError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !claims.IsAdmin() {
			respondError(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserFromContext retrieves the validated claims, if any.
func GetUserFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*auth.Claims)
	return claims, ok
}

func withClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}

func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
