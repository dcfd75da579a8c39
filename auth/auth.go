package auth

import (
	"context"

	"github.com/kbukum/nupidentity/auth/oidc"
)

// TokenValidator validates a bearer token and returns its claims.
// Middleware depends on this interface rather than on *oidc.Client so
// tests and alternative token sources can be plugged in.
//
// Implementations:
//   - *oidc.Client verifies RS256 tokens against the provider's JWKS
//   - TokenValidatorFunc adapts a plain function
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*oidc.TokenPayload, error)
}

// TokenValidatorFunc adapts an ordinary function to the TokenValidator interface.
//
//	validator := auth.TokenValidatorFunc(func(ctx context.Context, token string) (*oidc.TokenPayload, error) {
//	    return client.VerifyToken(ctx, token)
//	})
type TokenValidatorFunc func(ctx context.Context, token string) (*oidc.TokenPayload, error)

// ValidateToken implements TokenValidator.
func (f TokenValidatorFunc) ValidateToken(ctx context.Context, token string) (*oidc.TokenPayload, error) {
	return f(ctx, token)
}

var _ TokenValidator = (*oidc.Client)(nil)
