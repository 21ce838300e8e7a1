// Package auth answers "who is the current user" for the ledger service.
package auth

import "context"

// Identity reports the authenticated user id, if any.
type Identity interface {
	CurrentUser(ctx context.Context) (userID string, ok bool)
}

// Static always returns the same user. An empty id means nobody is signed in.
type Static string

func (s Static) CurrentUser(context.Context) (string, bool) {
	return string(s), s != ""
}

type ctxKey struct{}

// WithUser returns a context carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// ContextIdentity reads the user placed on the request context by Middleware.
type ContextIdentity struct{}

func (ContextIdentity) CurrentUser(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}
