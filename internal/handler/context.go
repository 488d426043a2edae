package handler

import (
	"context"

	"github.com/tidewater/subledger/internal/model"
)

type contextKey string

const userContextKey contextKey = "user"

// WithUser stores the authenticated local user in the context.
func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *model.User {
	u, _ := ctx.Value(userContextKey).(*model.User)
	return u
}
