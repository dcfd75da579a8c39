package errors

import (
	stderrors "errors"
	"net/http"
)

// ErrorResponse is the {"error": {...}} envelope used by the JSON API.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: ErrorBody{
		Code:      e.Code,
		Message:   e.Message,
		Retryable: e.Retryable,
		Details:   e.Details,
	}}
}

// ToAuthResponse is the flat body written by the auth middleware. Details
// are merged at the top level, next to error, message and code:
//
//	{"error":"Forbidden","message":"Insufficient permissions","code":"INSUFFICIENT_PERMISSIONS","required":[...]}
func (e *AppError) ToAuthResponse() map[string]any {
	body := map[string]any{}
	for k, v := range e.Details {
		body[k] = v
	}
	body["error"], body["message"], body["code"] = http.StatusText(e.Status()), e.Message, e.Code
	return body
}

// Status is HTTPStatus, or 500 when unset.
func (e *AppError) Status() int {
	if e.HTTPStatus != 0 {
		return e.HTTPStatus
	}
	return http.StatusInternalServerError
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := stderrors.As(err, &appErr)
	return appErr, ok
}

// HasCode reports whether err wraps an AppError with code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}
