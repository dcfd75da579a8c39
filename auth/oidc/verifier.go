package oidc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/nupidentity/logger"
	"github.com/kbukum/nupidentity/observability"
)

// VerifyToken checks an RS256 JWT against the provider's keys and returns
// its claims. Claims are checked before the key is resolved, so an expired
// or foreign token fails without a JWKS fetch. A kid missing from the
// cached key set triggers at most one forced refresh.
func (c *Client) VerifyToken(ctx context.Context, token string) (*TokenPayload, error) {
	ctx, span := c.startSpan(ctx, observability.SpanVerifyToken)
	payload, err := c.verify(ctx, token)
	observability.EndSpan(span, err)
	c.metrics.RecordVerification(ctx, verificationResult(err))
	return payload, err
}

// ValidateToken implements auth.TokenValidator.
func (c *Client) ValidateToken(ctx context.Context, token string) (*TokenPayload, error) {
	return c.VerifyToken(ctx, token)
}

func (c *Client) verify(ctx context.Context, token string) (*TokenPayload, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 parts, got %d", ErrMalformedToken, len(parts))
	}

	parser := jwt.NewParser()
	payload := &TokenPayload{}
	parsed, _, err := parser.ParseUnverified(token, payload)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenUnverifiable) {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedAlgorithm, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}

	if alg := parsed.Method.Alg(); alg != jwt.SigningMethodRS256.Alg() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
	}

	if payload.ExpiresAt != nil && payload.ExpiresAt.Unix() < c.now().Unix() {
		return nil, fmt.Errorf("%w: expired at %s", ErrTokenExpired, payload.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z"))
	}
	if payload.Issuer != "" && payload.Issuer != c.cfg.Issuer {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrIssuerMismatch, payload.Issuer, c.cfg.Issuer)
	}

	kid, _ := parsed.Header["kid"].(string)
	trace.SpanFromContext(ctx).SetAttributes(attribute.String(observability.AttrKeyID, kid))
	key, err := c.resolveKey(ctx, kid)
	if err != nil {
		return nil, err
	}

	sig, err := parser.DecodeSegment(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: signature encoding: %w", ErrMalformedToken, err)
	}
	if err := jwt.SigningMethodRS256.Verify(parts[0]+"."+parts[1], sig, key); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	return payload, nil
}

// resolveKey looks kid up in the current key set, refreshing it once if absent.
func (c *Client) resolveKey(ctx context.Context, kid string) (any, error) {
	cache, err := c.currentKeys(ctx)
	if err != nil {
		return nil, err
	}
	if key, ok := cache.Lookup(kid); ok {
		return key, nil
	}

	c.log.Debug("signing key not cached, refreshing JWKS", logger.Fields(logger.FieldKeyID, kid))
	c.metrics.RecordJWKSRefresh(ctx, "kid_miss")
	cache, err = c.keys.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	if key, ok := cache.Lookup(kid); ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
}

func verificationResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrIssuerMismatch):
		return "issuer_mismatch"
	case errors.Is(err, ErrKeyNotFound):
		return "key_not_found"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrUnsupportedAlgorithm):
		return "unsupported_algorithm"
	case errors.Is(err, ErrMalformedToken):
		return "malformed"
	default:
		return "error"
	}
}
