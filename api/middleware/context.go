package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/humanpalette/palette-backend/pkg/enums"
)

type contextKey string

const (
	ctxProfileID contextKey = "profile_id"
	ctxRole      contextKey = "profile_role"
)

// ProfileIDFromContext returns the authenticated profile id, or uuid.Nil when
// the request is unauthenticated.
func ProfileIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxProfileID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

func RoleFromContext(ctx context.Context) enums.ProfileRole {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.ProfileRole); ok {
		return v
	}
	return ""
}

// WithProfile injects the authenticated identity for downstream handlers.
func WithProfile(ctx context.Context, profileID uuid.UUID, role enums.ProfileRole) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxProfileID, profileID)
	return context.WithValue(ctx, ctxRole, role)
}
