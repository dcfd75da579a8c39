package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Connection/Availability errors (retryable)
const (
	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeExternalService indicates an error returned by the identity provider.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// Request errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodeConfiguration indicates the client was constructed with invalid settings.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
)

// Authentication errors
const (
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeTokenExpired ErrorCode = "TOKEN_EXPIRED"
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
)

// OAuth flow errors. These are security relevant and never retryable.
const (
	// ErrCodeCSRF indicates the callback state did not match the stored state.
	ErrCodeCSRF ErrorCode = "CSRF_DETECTED"
	// ErrCodeReplay indicates the ID token nonce did not match the stored nonce.
	ErrCodeReplay ErrorCode = "REPLAY_DETECTED"
	// ErrCodeSessionExpired indicates the transient OAuth state was missing.
	ErrCodeSessionExpired ErrorCode = "SESSION_EXPIRED"
	// ErrCodeAuthorizationDenied indicates the provider reported an error on the callback.
	ErrCodeAuthorizationDenied ErrorCode = "AUTHORIZATION_DENIED"
)

// Authorization errors
const (
	ErrCodeForbidden               ErrorCode = "FORBIDDEN"
	ErrCodeInsufficientScope       ErrorCode = "INSUFFICIENT_SCOPE"
	ErrCodeOrganizationRequired    ErrorCode = "ORGANIZATION_REQUIRED"
	ErrCodeInsufficientPermissions ErrorCode = "INSUFFICIENT_PERMISSIONS"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTimeout:         true,
	ErrCodeExternalService: true,
	ErrCodeInternal:        false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
