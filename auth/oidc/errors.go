package oidc

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/oauth2"

	apperrors "github.com/kbukum/nupidentity/errors"
	"github.com/kbukum/nupidentity/httpclient"
)

// Configuration errors.
var (
	ErrInvalidConfig = errors.New("oidc: invalid configuration")
)

// Discovery and network errors. Each wraps the underlying cause.
var (
	ErrDiscovery     = errors.New("oidc: discovery failed")
	ErrJWKSFetch     = errors.New("oidc: JWKS fetch failed")
	ErrTokenRequest  = errors.New("oidc: token request failed")
	ErrUserInfo      = errors.New("oidc: userinfo request failed")
	ErrSystemRequest = errors.New("oidc: system request failed")
)

// Token validation errors.
var (
	ErrMalformedToken       = errors.New("oidc: malformed token")
	ErrUnsupportedAlgorithm = errors.New("oidc: unsupported signing algorithm")
	ErrKeyNotFound          = errors.New("oidc: signing key not found")
	ErrInvalidSignature     = errors.New("oidc: invalid token signature")
	ErrTokenExpired         = errors.New("oidc: token expired")
	ErrIssuerMismatch       = errors.New("oidc: issuer mismatch")
)

// Login flow errors.
var (
	ErrStateMismatch     = errors.New("oidc: state mismatch")
	ErrSessionExpired    = errors.New("oidc: login session expired")
	ErrNonceMismatch     = errors.New("oidc: nonce mismatch")
	ErrDiscoveryRequired = errors.New("oidc: discovery document not loaded, call Discover() first")
	ErrNoEndSession      = errors.New("oidc: provider does not advertise an end_session_endpoint")
)

// IsTokenError reports whether err is a token validation failure.
func IsTokenError(err error) bool {
	for _, target := range []error{
		ErrMalformedToken, ErrUnsupportedAlgorithm, ErrKeyNotFound,
		ErrInvalidSignature, ErrTokenExpired, ErrIssuerMismatch,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// AsAppError maps identity errors onto the AppError taxonomy. Errors that
// already carry an AppError are returned as-is; anything unrecognised
// becomes an internal error.
func AsAppError(err error) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}
	switch {
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrDiscoveryRequired), errors.Is(err, ErrNoEndSession):
		return apperrors.Configuration(err.Error()).WithCause(err)
	case errors.Is(err, ErrTokenExpired):
		return apperrors.TokenExpired().WithCause(err)
	case IsTokenError(err):
		return apperrors.InvalidToken(err.Error()).WithCause(err)
	case errors.Is(err, ErrStateMismatch):
		return apperrors.CSRFDetected().WithCause(err)
	case errors.Is(err, ErrSessionExpired):
		return apperrors.SessionExpired().WithCause(err)
	case errors.Is(err, ErrNonceMismatch):
		return apperrors.ReplayDetected().WithCause(err)
	case errors.Is(err, ErrDiscovery), errors.Is(err, ErrJWKSFetch), errors.Is(err, ErrTokenRequest),
		errors.Is(err, ErrUserInfo), errors.Is(err, ErrSystemRequest):
		appErr := apperrors.ExternalServiceError("identity provider", err)
		appErr.Message = err.Error()
		return appErr
	default:
		return apperrors.Internal(err)
	}
}

// requestError wraps a failed provider call with its category sentinel.
// The *httpclient.Error stays in the chain so callers can inspect the status.
func requestError(sentinel error, op string, err error) error {
	return fmt.Errorf("%w: %s: %w", sentinel, op, err)
}

// StatusCode returns the HTTP status of a failed provider call, or 0.
func StatusCode(err error) int {
	var he *httpclient.Error
	if errors.As(err, &he) {
		return he.StatusCode
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return re.Response.StatusCode
	}
	return 0
}

// tokenError unwraps oauth2's RetrieveError so the provider's error body is surfaced.
func tokenError(grant string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		msg := re.ErrorDescription
		if msg == "" {
			msg = re.ErrorCode
		}
		if msg == "" {
			msg = excerpt(re.Body)
		}
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		return fmt.Errorf("%w: %s grant returned %d: %s: %w", ErrTokenRequest, grant, status, msg, err)
	}
	return fmt.Errorf("%w: %s grant: %w", ErrTokenRequest, grant, err)
}

const maxExcerpt = 200

// excerpt caps body at maxExcerpt bytes without splitting a rune.
func excerpt(body []byte) string {
	if len(body) <= maxExcerpt {
		return string(body)
	}
	cut := maxExcerpt
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return string(body[:cut]) + "..."
}
