package httpx

import (
	"context"

	"github.com/mith/outpass-portal/internal/domain/session"
)

// sessionKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type sessionKey struct{}

// SetSessionInContext returns a child context that carries the given session.
func SetSessionInContext(ctx context.Context, sess session.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFromContext returns the portal session from context and a boolean
// indicating presence. Guarded handlers can rely on presence; the route guard
// put it there.
func SessionFromContext(ctx context.Context) (session.Session, bool) {
	if sess, ok := ctx.Value(sessionKey{}).(session.Session); ok {
		return sess, true
	}
	return session.Session{}, false
}
