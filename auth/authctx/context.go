// Package authctx provides type-safe context propagation for the
// authenticated principal.
//
// Middleware stores a *Principal after verifying the bearer token; handlers
// and downstream services read it back without depending on gin.
//
// Usage:
//
//	// Store (typically in middleware)
//	ctx = authctx.Set(ctx, &authctx.Principal{User: payload, UserID: payload.UserID(), AccessToken: token})
//
//	// Retrieve (in handlers)
//	p, ok := authctx.PrincipalFrom(ctx)
//	p := authctx.MustGet[*authctx.Principal](ctx) // panics if missing
package authctx

import (
	"context"
	"errors"

	"github.com/kbukum/nupidentity/auth/oidc"
)

// Principal is the verified caller of a request.
type Principal struct {
	// User holds the verified token claims.
	User *oidc.TokenPayload
	// UserID is the canonical user identifier (userId, then id, then sub).
	UserID string
	// AccessToken is the raw bearer token, for forwarding to the provider.
	AccessToken string
}

// Permissions returns the principal's permission claims, or nil.
func (p *Principal) Permissions() []string {
	if p == nil || p.User == nil {
		return nil
	}
	return p.User.Permissions
}

// contextKey is an unexported type to prevent collisions with other packages.
type contextKey struct{}

// claimsKey is the single key used to store the principal in context.
var claimsKey = contextKey{}

// Set stores a value (normally a *Principal) in the context.
func Set(ctx context.Context, claims any) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// Get retrieves a typed value from the context.
// Returns the value and true if found and of the correct type,
// or zero value and false otherwise.
func Get[T any](ctx context.Context) (T, bool) {
	val := ctx.Value(claimsKey)
	if val == nil {
		var zero T
		return zero, false
	}
	claims, ok := val.(T)
	return claims, ok
}

// MustGet retrieves a typed value from the context.
// Panics if it is missing or of the wrong type.
// Use in handlers where authentication middleware guarantees a principal exists.
func MustGet[T any](ctx context.Context) T {
	claims, ok := Get[T](ctx)
	if !ok {
		panic("authctx: claims not found in context or wrong type")
	}
	return claims
}

// ErrNoClaims is returned when no principal is found in the context.
var ErrNoClaims = errors.New("authctx: no claims in context")

// GetOrError retrieves a typed value from the context.
// Returns ErrNoClaims if it is missing or of the wrong type.
func GetOrError[T any](ctx context.Context) (T, error) {
	claims, ok := Get[T](ctx)
	if !ok {
		var zero T
		return zero, ErrNoClaims
	}
	return claims, nil
}

// WithPrincipal stores p in the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return Set(ctx, p)
}

// PrincipalFrom returns the principal stored by the auth middleware.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := Get[*Principal](ctx)
	return p, ok && p != nil
}
