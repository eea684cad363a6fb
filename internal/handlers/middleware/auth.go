package middleware

import (
	"context"
	"net/http"

	"github.com/avoytenko/gatekeeper/internal/handlers/render"
	"github.com/avoytenko/gatekeeper/internal/handlers/userctx"
	"github.com/avoytenko/gatekeeper/internal/models"
)

type authService interface {
	AuthenticateRequest(ctx context.Context, r *http.Request) (models.User, error)
}

// AuthMiddleware guards handlers that require a live access token.
// Every failure looks the same from outside: plain 401, no details
func AuthMiddleware(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := as.AuthenticateRequest(r.Context(), r)
			if err != nil {
				render.ServiceError(w, r, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := userctx.New(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
