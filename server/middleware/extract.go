package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// AccessTokenCookie and AccessTokenQuery name where browsers carry the token
// when no Authorization header is sent.
const (
	AccessTokenCookie = "access_token"
	AccessTokenQuery  = "access_token"
)

// TokenExtractor pulls a bearer token from a request. An empty result means
// no token was presented.
type TokenExtractor func(c *gin.Context) string

// ExtractToken checks the Authorization header, then the access_token
// cookie, then the access_token query parameter. The first match wins.
func ExtractToken(c *gin.Context) string {
	if token := BearerToken(c.GetHeader("Authorization")); token != "" {
		return token
	}
	if token, err := c.Cookie(AccessTokenCookie); err == nil && token != "" {
		return token
	}
	return c.Query(AccessTokenQuery)
}

// BearerToken returns the credentials of a "Bearer <token>" header value.
// The scheme is matched case-insensitively.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
