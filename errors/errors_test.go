package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_New_Retryable(t *testing.T) {
	err := New(ErrCodeTimeout, "timed out", http.StatusGatewayTimeout)
	if !err.Retryable {
		t.Error("TIMEOUT should be retryable")
	}
	if New(ErrCodeCSRF, "bad state", http.StatusForbidden).Retryable {
		t.Error("CSRF_DETECTED should not be retryable")
	}
}

func TestAppError_Unauthorized(t *testing.T) {
	err := Unauthorized("")
	if err.Code != ErrCodeUnauthorized {
		t.Errorf("expected UNAUTHORIZED, got %s", err.Code)
	}
	if err.Message != "Authentication required." {
		t.Errorf("expected default message, got %q", err.Message)
	}
	if got := Unauthorized("bad token").Message; got != "bad token" {
		t.Errorf("expected custom message, got %q", got)
	}
}

func TestAppError_FlowErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   ErrorCode
		status int
	}{
		{"csrf", CSRFDetected(), ErrCodeCSRF, http.StatusForbidden},
		{"replay", ReplayDetected(), ErrCodeReplay, http.StatusForbidden},
		{"session expired", SessionExpired(), ErrCodeSessionExpired, http.StatusBadRequest},
		{"denied", AuthorizationDenied("access_denied", "user cancelled"), ErrCodeAuthorizationDenied, http.StatusBadRequest},
		{"expired token", TokenExpired(), ErrCodeTokenExpired, http.StatusUnauthorized},
		{"invalid token", InvalidToken(""), ErrCodeInvalidToken, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, tt.err.Code)
			}
			if tt.err.HTTPStatus != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, tt.err.HTTPStatus)
			}
			if tt.err.Retryable {
				t.Error("flow errors must not be retryable")
			}
		})
	}
}

func TestAppError_AuthorizationDenied_Message(t *testing.T) {
	if got := AuthorizationDenied("access_denied", "").Message; got != "access_denied" {
		t.Errorf("expected bare code, got %q", got)
	}
	if got := AuthorizationDenied("access_denied", "nope").Message; got != "access_denied: nope" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestAppError_InsufficientPermissions_Details(t *testing.T) {
	err := InsufficientPermissions([]string{"analysis.edit"}, []string{"analysis.edit"})
	if err.HTTPStatus != http.StatusForbidden {
		t.Errorf("expected 403, got %d", err.HTTPStatus)
	}
	missing, ok := err.Details["missing"].([]string)
	if !ok || len(missing) != 1 || missing[0] != "analysis.edit" {
		t.Errorf("unexpected missing detail: %v", err.Details["missing"])
	}
}

func TestAppError_InsufficientScope_Message(t *testing.T) {
	err := InsufficientScope([]string{"read", "write"})
	if !strings.Contains(err.Message, "read, write") {
		t.Errorf("expected missing scopes in message, got %q", err.Message)
	}
}

func TestAppError_ToAuthResponse(t *testing.T) {
	body := InsufficientPermissions([]string{"a", "b"}, []string{"b"}).ToAuthResponse()
	if body["error"] != "Forbidden" {
		t.Errorf("expected error=Forbidden, got %v", body["error"])
	}
	if body["message"] != "Insufficient permissions" {
		t.Errorf("unexpected message %v", body["message"])
	}
	if body["code"] != ErrCodeInsufficientPermissions {
		t.Errorf("unexpected code %v", body["code"])
	}
	if _, ok := body["required"]; !ok {
		t.Error("expected details merged at top level")
	}

	unauth := Unauthorized("No token provided").ToAuthResponse()
	if unauth["error"] != "Unauthorized" {
		t.Errorf("expected error=Unauthorized, got %v", unauth["error"])
	}
}

func TestAppError_Status_Default(t *testing.T) {
	if got := (&AppError{}).Status(); got != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", got)
	}
}

func TestAppError_ErrorString(t *testing.T) {
	err := ExternalServiceError("identity provider", fmt.Errorf("connection refused"))
	if !strings.Contains(err.Error(), "EXTERNAL_SERVICE_ERROR") {
		t.Errorf("expected code in error string, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected cause in error string, got %q", err.Error())
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root")
	err := Internal(cause)
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

func TestAppError_WithDetail(t *testing.T) {
	err := Forbidden("").WithDetail("org", "acme").WithDetails(map[string]any{"user": "u1"})
	if err.Details["org"] != "acme" || err.Details["user"] != "u1" {
		t.Errorf("unexpected details: %v", err.Details)
	}
}

func TestAsAppError(t *testing.T) {
	wrapped := fmt.Errorf("wrapped: %w", CSRFDetected())
	appErr, ok := AsAppError(wrapped)
	if !ok {
		t.Fatal("expected AsAppError to unwrap")
	}
	if appErr.Code != ErrCodeCSRF {
		t.Errorf("expected CSRF code, got %s", appErr.Code)
	}
	if !HasCode(wrapped, ErrCodeCSRF) {
		t.Error("expected HasCode to match")
	}
	if _, ok := AsAppError(fmt.Errorf("plain")); ok {
		t.Error("plain error is not an AppError")
	}
}

func TestIsRetryableCode(t *testing.T) {
	if !IsRetryableCode(ErrCodeExternalService) {
		t.Error("EXTERNAL_SERVICE_ERROR should be retryable")
	}
	if IsRetryableCode(ErrCodeInvalidToken) {
		t.Error("INVALID_TOKEN should not be retryable")
	}
}
