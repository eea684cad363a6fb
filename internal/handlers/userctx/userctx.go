package userctx

import (
	"context"

	"github.com/avoytenko/gatekeeper/internal/models"
)

type key struct{}

// New returns a copy of ctx carrying the authenticated user
// The auth middleware stores the principal here after the bearer token checks out
func New(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, key{}, u)
}

// FromContext extracts the authenticated user, ok reports whether one is present
func FromContext(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(key{}).(models.User)
	return u, ok
}
