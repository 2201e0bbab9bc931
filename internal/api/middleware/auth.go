package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcoot/gamenight/internal/api/apierr"
	"github.com/mcoot/gamenight/internal/services/auth"
)

type contextKey string

const grantContextKey contextKey = "grant"

// Auth creates middleware that requires the organizer token
func Auth(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authService.Enabled() {
				apierr.WriteError(w, auth.ErrDisabled)
				return
			}

			token := extractToken(r)
			if token == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			grant, err := authService.Authenticate(token)
			if err != nil {
				apierr.WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), grantContextKey, grant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken extracts the bearer token from the request
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// GetGrant returns the verified grant from the request context
func GetGrant(ctx context.Context) *auth.Grant {
	grant, _ := ctx.Value(grantContextKey).(*auth.Grant)
	return grant
}
