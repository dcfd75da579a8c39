package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// AppError is the unified error type surfaced by the identity SDK.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Provider errors ---

// Timeout creates a new AppError for a request that timed out.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The request took too long. Please try again.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// ExternalServiceError creates a new AppError for an error from an external service.
func ExternalServiceError(service string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeExternalService, Message: fmt.Sprintf("The %s service encountered an error. Please try again.", service),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"service": service}, Cause: cause,
	}
}

// --- Request errors ---

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// MissingField creates a new AppError for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("Missing required field: %s", field),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
		Details: map[string]any{"field": field},
	}
}

// Configuration creates a new AppError for invalid client configuration.
func Configuration(reason string) *AppError {
	return &AppError{
		Code: ErrCodeConfiguration, Message: reason,
		HTTPStatus: http.StatusInternalServerError, Retryable: false,
	}
}

// --- Authentication errors ---

// Unauthorized creates a new AppError for unauthorized access.
func Unauthorized(reason string) *AppError {
	if reason == "" {
		reason = "Authentication required."
	}
	return &AppError{
		Code: ErrCodeUnauthorized, Message: reason,
		HTTPStatus: http.StatusUnauthorized, Retryable: false,
	}
}

// TokenExpired creates a new AppError for an expired authentication token.
func TokenExpired() *AppError {
	return &AppError{
		Code: ErrCodeTokenExpired, Message: "Your session has expired. Please log in again.",
		HTTPStatus: http.StatusUnauthorized, Retryable: false,
	}
}

// InvalidToken creates a new AppError for an invalid authentication token.
func InvalidToken(reason string) *AppError {
	if reason == "" {
		reason = "Invalid authentication token. Please log in again."
	}
	return &AppError{
		Code: ErrCodeInvalidToken, Message: reason,
		HTTPStatus: http.StatusUnauthorized, Retryable: false,
	}
}

// --- OAuth flow errors ---

// CSRFDetected creates a new AppError for a callback whose state does not match.
func CSRFDetected() *AppError {
	return &AppError{
		Code: ErrCodeCSRF, Message: "Invalid state parameter. Possible CSRF attack.",
		HTTPStatus: http.StatusForbidden, Retryable: false,
	}
}

// ReplayDetected creates a new AppError for an ID token whose nonce does not match.
func ReplayDetected() *AppError {
	return &AppError{
		Code: ErrCodeReplay, Message: "Invalid nonce in ID token. Possible replay attack.",
		HTTPStatus: http.StatusForbidden, Retryable: false,
	}
}

// SessionExpired creates a new AppError for a callback without stored OAuth state.
func SessionExpired() *AppError {
	return &AppError{
		Code: ErrCodeSessionExpired, Message: "Missing OAuth session data. The login session may have expired.",
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// AuthorizationDenied creates a new AppError for an error reported by the provider on callback.
func AuthorizationDenied(code, description string) *AppError {
	msg := code
	if description != "" {
		msg = code + ": " + description
	}
	return &AppError{
		Code: ErrCodeAuthorizationDenied, Message: msg,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
		Details: map[string]any{"provider_error": code},
	}
}

// --- Authorization errors ---

// Forbidden creates a new AppError for forbidden access.
func Forbidden(reason string) *AppError {
	if reason == "" {
		reason = "You don't have permission to perform this action."
	}
	return &AppError{
		Code: ErrCodeForbidden, Message: reason,
		HTTPStatus: http.StatusForbidden, Retryable: false,
	}
}

// InsufficientScope creates a new AppError listing the scopes the token lacks.
func InsufficientScope(missing []string) *AppError {
	return &AppError{
		Code: ErrCodeInsufficientScope, Message: "Insufficient scope. Missing: " + strings.Join(missing, ", "),
		HTTPStatus: http.StatusForbidden, Retryable: false,
		Details: map[string]any{"missing": missing},
	}
}

// OrganizationRequired creates a new AppError for a user outside the required organization.
func OrganizationRequired(reason string) *AppError {
	return &AppError{
		Code: ErrCodeOrganizationRequired, Message: reason,
		HTTPStatus: http.StatusForbidden, Retryable: false,
	}
}

// InsufficientPermissions creates a new AppError carrying the required and missing permissions.
func InsufficientPermissions(required, missing []string) *AppError {
	return &AppError{
		Code: ErrCodeInsufficientPermissions, Message: "Insufficient permissions",
		HTTPStatus: http.StatusForbidden, Retryable: false,
		Details: map[string]any{"required": required, "missing": missing},
	}
}

// Internal creates a new AppError for an internal server error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred. Please try again or contact support.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}
