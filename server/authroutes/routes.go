package authroutes

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/nupidentity/auth/oidc"
	apperrors "github.com/kbukum/nupidentity/errors"
	"github.com/kbukum/nupidentity/logger"
	"github.com/kbukum/nupidentity/observability"
	"github.com/kbukum/nupidentity/server/middleware"
)

// Flow outcomes recorded in the auth decision metric.
const (
	gateLogin    = "login"
	gateCallback = "callback"
	gateRefresh  = "refresh"
)

// IdentityClient is the part of *oidc.Client the routes drive.
type IdentityClient interface {
	Discover(ctx context.Context) (*oidc.DiscoveryDocument, error)
	AuthorizationURL(opts oidc.AuthorizationOptions) (string, error)
	ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*oidc.TokenSet, error)
	RefreshToken(ctx context.Context, refreshToken string) (*oidc.TokenSet, error)
	UserInfo(ctx context.Context, accessToken string) (*oidc.UserInfo, error)
}

var _ IdentityClient = (*oidc.Client)(nil)

// Options configures the mounted routes.
type Options struct {
	// RedirectURI is the absolute URL of the mounted /callback route.
	// Defaults to the identity client's configured RedirectURI.
	RedirectURI string `mapstructure:"redirect_uri"`
	// SuccessRedirect is where /callback sends the browser after login. Defaults to "/".
	SuccessRedirect string `mapstructure:"success_redirect"`
	// FailureRedirect, when set, receives callback failures as ?error=<message>.
	// Otherwise failures are answered with a JSON error body.
	FailureRedirect string `mapstructure:"failure_redirect"`
	// Secure marks every cookie Secure. Enable it behind HTTPS.
	Secure bool `mapstructure:"secure"`
	// CookiePath defaults to "/".
	CookiePath   string `mapstructure:"cookie_path"`
	CookieDomain string `mapstructure:"cookie_domain"`

	Logger *logger.Logger `mapstructure:"-"`
}

// ApplyDefaults fills zero-valued fields.
func (o *Options) ApplyDefaults() {
	if o.SuccessRedirect == "" {
		o.SuccessRedirect = "/"
	}
	if o.CookiePath == "" {
		o.CookiePath = "/"
	}
}

type handler struct {
	auth *middleware.Authenticator
	opts Options
	log  *logger.Logger
}

// Mount registers GET /login, GET /callback, GET /me, POST /logout and
// POST /refresh on r. The routes use the identity client behind a, so a
// cached authenticator initializes the client on the first request.
func Mount(r gin.IRouter, a *middleware.Authenticator, opts Options) {
	opts.ApplyDefaults()
	log := opts.Logger
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	h := &handler{auth: a, opts: opts, log: log.WithComponent("auth-routes")}

	r.GET("/login", h.login)
	r.GET("/callback", h.callback)
	r.GET("/me", a.RequireAuth(middleware.AuthOptions{}), h.me)
	r.POST("/logout", h.logout)
	r.POST("/refresh", h.refresh)
}

func (h *handler) client(ctx context.Context) (IdentityClient, *observability.AuthMetrics, error) {
	v, err := h.auth.Validator(ctx)
	if err != nil {
		return nil, nil, err
	}
	client, ok := v.(IdentityClient)
	if !ok {
		return nil, nil, apperrors.Configuration("auth routes need an OIDC identity client")
	}
	var metrics *observability.AuthMetrics
	if oc, ok := v.(*oidc.Client); ok {
		metrics = oc.Metrics()
	}
	return client, metrics, nil
}

func (h *handler) login(c *gin.Context) {
	ctx := c.Request.Context()
	client, metrics, err := h.client(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	if _, err := client.Discover(ctx); err != nil {
		metrics.RecordDecision(ctx, gateLogin, "error")
		h.fail(c, err)
		return
	}

	params, err := oidc.NewLoginParams()
	if err != nil {
		h.fail(c, apperrors.Internal(err))
		return
	}
	authURL, err := client.AuthorizationURL(oidc.AuthorizationOptions{
		RedirectURI:   h.opts.RedirectURI,
		State:         params.State,
		Nonce:         params.Nonce,
		CodeChallenge: params.CodeChallenge,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	// A second /login from the same browser replaces these; the later
	// attempt wins and the earlier callback fails the state check.
	h.setCookie(c, StateCookie, params.State, oauthCookieTTL)
	h.setCookie(c, CodeVerifierCookie, params.CodeVerifier, oauthCookieTTL)
	h.setCookie(c, NonceCookie, params.Nonce, oauthCookieTTL)

	metrics.RecordDecision(ctx, gateLogin, "redirect")
	c.Redirect(http.StatusFound, authURL)
}

func (h *handler) callback(c *gin.Context) {
	ctx := c.Request.Context()
	storedState, verifier, storedNonce := h.takeOAuthCookies(c)

	if providerErr := c.Query("error"); providerErr != "" {
		h.fail(c, apperrors.AuthorizationDenied(providerErr, c.Query("error_description")))
		return
	}

	code, state := c.Query("code"), c.Query("state")
	if code == "" || state == "" {
		h.fail(c, apperrors.InvalidInput("code", "missing code or state parameter"))
		return
	}
	if storedState == "" || verifier == "" || storedNonce == "" {
		h.fail(c, oidc.ErrSessionExpired)
		return
	}

	client, metrics, err := h.client(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	if state != storedState {
		metrics.RecordDecision(ctx, gateCallback, "csrf")
		h.fail(c, oidc.ErrStateMismatch)
		return
	}

	tokens, err := client.ExchangeCode(ctx, code, h.opts.RedirectURI, verifier)
	if err != nil {
		metrics.RecordDecision(ctx, gateCallback, "exchange_failed")
		h.fail(c, err)
		return
	}

	if tokens.IDToken != "" {
		idToken, err := oidc.DecodeUnverified(tokens.IDToken)
		switch {
		case err != nil:
			h.log.WithContext(ctx).Warn("could not decode id_token for nonce check", logger.ErrorFields("decode_id_token", err))
		case idToken.Nonce != storedNonce:
			metrics.RecordDecision(ctx, gateCallback, "replay")
			h.fail(c, oidc.ErrNonceMismatch)
			return
		}
	}

	h.setSession(c, tokens)
	metrics.RecordDecision(ctx, gateCallback, "success")
	c.Redirect(http.StatusFound, h.opts.SuccessRedirect)
}

func (h *handler) me(c *gin.Context) {
	ctx := c.Request.Context()
	client, _, err := h.client(ctx)
	if err != nil {
		h.respond(c, oidc.AsAppError(err))
		return
	}
	info, err := client.UserInfo(ctx, middleware.AccessTokenFrom(c))
	if err != nil {
		h.log.WithContext(ctx).Warn("userinfo failed", logger.ErrorFields("userinfo", err))
		h.respond(c, oidc.AsAppError(err))
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *handler) logout(c *gin.Context) {
	h.clearCookies(c, sessionCookies...)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handler) refresh(c *gin.Context) {
	ctx := c.Request.Context()
	refreshToken, err := c.Cookie(RefreshTokenCookie)
	if err != nil || refreshToken == "" {
		h.respond(c, apperrors.Unauthorized("No refresh token"))
		return
	}

	client, metrics, err := h.client(ctx)
	if err != nil {
		h.log.WithContext(ctx).Warn("token refresh failed", logger.ErrorFields("refresh", err))
		h.respond(c, apperrors.Unauthorized("Token refresh failed").WithCause(err))
		return
	}
	tokens, err := client.RefreshToken(ctx, refreshToken)
	if err != nil {
		metrics.RecordDecision(ctx, gateRefresh, "failed")
		h.log.WithContext(ctx).Warn("token refresh failed", logger.ErrorFields("refresh", err))
		h.respond(c, apperrors.Unauthorized("Token refresh failed").WithCause(err))
		return
	}

	if tokens.RefreshToken == refreshToken {
		tokens.RefreshToken = ""
	}
	ttl := h.setSession(c, tokens)
	metrics.RecordDecision(ctx, gateRefresh, "success")
	c.JSON(http.StatusOK, gin.H{"success": true, "expires_in": int64(ttl.Seconds())})
}

// setSession writes the session cookies for tokens and returns the access
// token lifetime.
func (h *handler) setSession(c *gin.Context, tokens *oidc.TokenSet) (ttl time.Duration) {
	ttl = tokenTTL(tokens.ExpiresIn)
	h.setCookie(c, AccessTokenCookie, tokens.AccessToken, ttl)
	if tokens.RefreshToken != "" {
		h.setCookie(c, RefreshTokenCookie, tokens.RefreshToken, refreshCookieTTL)
	}
	if tokens.IDToken != "" {
		h.setCookie(c, IDTokenCookie, tokens.IDToken, ttl)
	}
	return ttl
}

// fail ends a browser-facing flow: a redirect to FailureRedirect when
// configured, otherwise a JSON error.
func (h *handler) fail(c *gin.Context, err error) {
	appErr := oidc.AsAppError(err)
	h.log.WithContext(c.Request.Context()).Warn("auth flow failed", logger.Fields(
		"path", c.FullPath(),
		"code", string(appErr.Code),
		logger.FieldError, err.Error(),
	))

	if h.opts.FailureRedirect == "" {
		h.respond(c, appErr)
		return
	}
	target, perr := url.Parse(h.opts.FailureRedirect)
	if perr != nil {
		h.respond(c, appErr)
		return
	}
	q := target.Query()
	q.Set("error", appErr.Message)
	target.RawQuery = q.Encode()
	c.Redirect(http.StatusFound, target.String())
	c.Abort()
}

func (h *handler) respond(c *gin.Context, appErr *apperrors.AppError) {
	c.AbortWithStatusJSON(appErr.Status(), appErr.ToAuthResponse())
}
