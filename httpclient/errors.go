package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"
)

// Kind says how a request failed.
type Kind string

const (
	KindTimeout    Kind = "timeout"
	KindConnection Kind = "connection"
	KindAuth       Kind = "auth"
	KindNotFound   Kind = "not_found"
	KindRateLimit  Kind = "rate_limit"
	KindBadRequest Kind = "bad_request"
	KindServer     Kind = "server"
	KindUnexpected Kind = "unexpected"
)

// Error is returned for transport failures and non-2xx responses.
// StatusCode is 0 when no response was received.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Body       []byte
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("httpclient: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("httpclient: %s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether sending the same request again may succeed.
func (e *Error) IsRetryable() bool {
	switch e.Kind {
	case KindTimeout, KindConnection, KindRateLimit, KindServer:
		return true
	}
	return false
}

// ProviderMessage is the error_description, message or error member of
// a JSON error body, in that order of preference, else Message.
func (e *Error) ProviderMessage() string {
	if msg := bodyMessage(e.Body); msg != "" {
		return msg
	}
	return e.Message
}

// StatusError classifies a response status. It returns nil for 2xx.
func StatusError(status int, body []byte) *Error {
	var kind Kind
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status == http.StatusTooManyRequests:
		kind = KindRateLimit
	case status >= 400 && status < 500:
		kind = KindBadRequest
	case status >= 500:
		kind = KindServer
	default:
		kind = KindUnexpected
	}
	return &Error{Kind: kind, StatusCode: status, Message: describeStatus(status, body), Body: body}
}

func transportError(timedOut bool, err error) *Error {
	kind := KindConnection
	if timedOut {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

func invalidRequest(op string, err error) *Error {
	return &Error{Kind: KindBadRequest, Message: op + ": " + err.Error(), Err: err}
}

// Is reports whether err carries an *Error of kind k.
func Is(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// IsRetryable reports whether err carries a retryable *Error.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.IsRetryable()
}

const excerptLen = 200

func describeStatus(status int, body []byte) string {
	msg := bodyMessage(body)
	if msg == "" && len(body) > 0 {
		msg = string(body)
		if len(msg) > excerptLen {
			cut := excerptLen
			for cut > 0 && !utf8.RuneStart(msg[cut]) {
				cut--
			}
			msg = msg[:cut] + "..."
		}
	}
	if msg == "" {
		return fmt.Sprintf("HTTP %d", status)
	}
	return fmt.Sprintf("HTTP %d: %s", status, msg)
}

func bodyMessage(body []byte) string {
	var p struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
		Message     string `json:"message"`
	}
	if len(body) == 0 || json.Unmarshal(body, &p) != nil {
		return ""
	}
	for _, s := range []string{p.Description, p.Message, p.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}
