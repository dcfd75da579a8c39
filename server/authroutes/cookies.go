package authroutes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Cookie names. The OAuth cookies live only between /login and /callback.
const (
	StateCookie        = "nupidentity_oauth_state"
	CodeVerifierCookie = "nupidentity_code_verifier"
	NonceCookie        = "nupidentity_nonce"

	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
	IDTokenCookie      = "id_token"
)

const (
	oauthCookieTTL   = 10 * time.Minute
	refreshCookieTTL = 7 * 24 * time.Hour
	defaultTokenTTL  = time.Hour
)

var (
	oauthCookies   = []string{StateCookie, CodeVerifierCookie, NonceCookie}
	sessionCookies = []string{AccessTokenCookie, RefreshTokenCookie, IDTokenCookie}
)

// setCookie writes an httpOnly, SameSite=Lax cookie.
func (h *handler) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, int(ttl/time.Second), h.opts.CookiePath, h.opts.CookieDomain, h.opts.Secure, true)
}

func (h *handler) clearCookies(c *gin.Context, names ...string) {
	c.SetSameSite(http.SameSiteLaxMode)
	for _, name := range names {
		c.SetCookie(name, "", -1, h.opts.CookiePath, h.opts.CookieDomain, h.opts.Secure, true)
	}
}

// takeOAuthCookies reads the login cookies and clears them in the same
// response, so a callback can consume them at most once.
func (h *handler) takeOAuthCookies(c *gin.Context) (state, verifier, nonce string) {
	state, _ = c.Cookie(StateCookie)
	verifier, _ = c.Cookie(CodeVerifierCookie)
	nonce, _ = c.Cookie(NonceCookie)
	h.clearCookies(c, oauthCookies...)
	return state, verifier, nonce
}

// tokenTTL is expires_in, or one hour when the provider omits it.
func tokenTTL(expiresIn int64) time.Duration {
	if expiresIn <= 0 {
		return defaultTokenTTL
	}
	return time.Duration(expiresIn) * time.Second
}
