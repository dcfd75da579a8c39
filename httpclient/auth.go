package httpclient

import "net/http"

// DefaultAPIKeyHeader is used by APIKeyAuth.
const DefaultAPIKeyHeader = "X-API-Key"

// AuthConfig is a credential sent as a single request header.
type AuthConfig struct {
	Header string
	Value  string
}

// BearerAuth sends "Authorization: Bearer <token>", as required by the
// userinfo and per-user system endpoints.
func BearerAuth(token string) *AuthConfig {
	return &AuthConfig{Header: "Authorization", Value: "Bearer " + token}
}

func APIKeyAuth(key string) *AuthConfig {
	return APIKeyAuthHeader(key, DefaultAPIKeyHeader)
}

// APIKeyAuthHeader sends key in a named header, e.g. X-System-API-Key for
// system registration.
func APIKeyAuthHeader(key, header string) *AuthConfig {
	return &AuthConfig{Header: header, Value: key}
}

func (a *AuthConfig) apply(req *http.Request) {
	if a == nil || a.Header == "" || a.Value == "" {
		return
	}
	req.Header.Set(a.Header, a.Value)
}
