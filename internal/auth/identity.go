package auth

import (
	"context"
	"strings"
)

// AnonymousUser identifies callers that did not send a user id.
const AnonymousUser = "anonymous"

const maxUserIDLength = 128

type userIDKey struct{}

func NormalizeUserID(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return AnonymousUser
	}
	if len(trimmed) > maxUserIDLength {
		trimmed = trimmed[:maxUserIDLength]
	}
	return trimmed
}

// WithUserID stores the caller identity on ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, NormalizeUserID(userID))
}

// UserID returns the caller identity stored on ctx, or AnonymousUser.
func UserID(ctx context.Context) string {
	if ctx == nil {
		return AnonymousUser
	}
	if userID, ok := ctx.Value(userIDKey{}).(string); ok && userID != "" {
		return userID
	}
	return AnonymousUser
}

// IsAuthenticated reports whether ctx carries a non-anonymous identity.
func IsAuthenticated(ctx context.Context) bool {
	return UserID(ctx) != AnonymousUser
}
