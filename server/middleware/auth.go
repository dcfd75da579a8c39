package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/nupidentity/auth"
	"github.com/kbukum/nupidentity/auth/authctx"
	"github.com/kbukum/nupidentity/auth/oidc"
	apperrors "github.com/kbukum/nupidentity/errors"
	"github.com/kbukum/nupidentity/logger"
	"github.com/kbukum/nupidentity/observability"
)

// Gin context keys set by RequireAuth.
const (
	ContextKeyUser        = "user"
	ContextKeyUserID      = "userId"
	ContextKeyAccessToken = "accessToken"
)

// Decision gates recorded in the auth decision metric.
const (
	GateAuth       = "require_auth"
	GatePermission = "permission"
	GateAnyPerm    = "any_permission"
)

// AuthOptions configures a single RequireAuth handler.
type AuthOptions struct {
	// Optional lets unauthenticated or invalid requests through without a user.
	Optional bool
	// OnError replaces the default 401 response for verification failures.
	// The request is aborted after it returns.
	OnError func(c *gin.Context, err error)
}

// Authenticator verifies bearer tokens and gates routes on the verified
// claims. It is safe for concurrent use.
type Authenticator struct {
	resolve func(ctx context.Context) (auth.TokenValidator, error)
	extract TokenExtractor
	log     *logger.Logger
	metrics *observability.AuthMetrics
}

// AuthenticatorOption configures an Authenticator.
type AuthenticatorOption func(*Authenticator)

// WithTokenExtractor overrides ExtractToken.
func WithTokenExtractor(fn TokenExtractor) AuthenticatorOption {
	return func(a *Authenticator) { a.extract = fn }
}

// WithAuthLogger sets the logger. Defaults to the global logger.
func WithAuthLogger(l *logger.Logger) AuthenticatorOption {
	return func(a *Authenticator) { a.log = l }
}

// WithAuthMetrics records gate decisions into m.
func WithAuthMetrics(m *observability.AuthMetrics) AuthenticatorOption {
	return func(a *Authenticator) { a.metrics = m }
}

// NewAuthenticator creates an Authenticator backed by a fixed validator.
// When v is an *oidc.Client its metrics are reused.
func NewAuthenticator(v auth.TokenValidator, opts ...AuthenticatorOption) *Authenticator {
	a := newAuthenticator(func(context.Context) (auth.TokenValidator, error) { return v, nil })
	if client, ok := v.(*oidc.Client); ok {
		a.metrics = client.Metrics()
	}
	return a.apply(opts)
}

// NewCachedAuthenticator creates an Authenticator that resolves its
// identity client from cache on each request. The first request for cfg
// initializes the client; concurrent first requests share that work.
func NewCachedAuthenticator(cache *ClientCache, cfg oidc.Config, opts ...AuthenticatorOption) *Authenticator {
	a := newAuthenticator(func(ctx context.Context) (auth.TokenValidator, error) {
		client, err := cache.Get(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	})
	return a.apply(opts)
}

func newAuthenticator(resolve func(context.Context) (auth.TokenValidator, error)) *Authenticator {
	return &Authenticator{resolve: resolve, extract: ExtractToken}
}

func (a *Authenticator) apply(opts []AuthenticatorOption) *Authenticator {
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.GetGlobalLogger()
	}
	a.log = a.log.WithComponent("auth-middleware")
	return a
}

// RequireAuth verifies the request's token and attaches the user.
//
// A missing token yields 401 unless opts.Optional is set. A token that fails
// verification invokes opts.OnError (default: 401 with the reason) unless
// opts.Optional is set. On success the payload, canonical user ID and raw
// token are stored under ContextKeyUser, ContextKeyUserID and
// ContextKeyAccessToken, and as an authctx.Principal on the request context.
func (a *Authenticator) RequireAuth(opts AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		token := a.extract(c)
		if token == "" {
			if opts.Optional {
				c.Next()
				return
			}
			a.metrics.RecordDecision(ctx, GateAuth, "missing_token")
			abortWith(c, apperrors.Unauthorized("No token provided"))
			return
		}

		payload, err := a.verify(ctx, token)
		if err != nil {
			if opts.Optional {
				a.log.WithContext(ctx).Debug("optional auth: ignoring invalid token", logger.ErrorFields("verify", err))
				c.Next()
				return
			}
			a.metrics.RecordDecision(ctx, GateAuth, "denied")
			if opts.OnError != nil {
				opts.OnError(c, err)
				c.Abort()
				return
			}
			a.log.WithContext(ctx).Warn("token verification failed", logger.ErrorFields("verify", err))
			abortWith(c, unauthorized(err))
			return
		}

		a.metrics.RecordDecision(ctx, GateAuth, "allowed")
		attach(c, payload, token)
		c.Next()
	}
}

// AttachUser is RequireAuth with Optional forced on.
func (a *Authenticator) AttachUser(opts AuthOptions) gin.HandlerFunc {
	opts.Optional = true
	return a.RequireAuth(opts)
}

// EnsurePermission requires authentication and every listed permission.
func (a *Authenticator) EnsurePermission(opts AuthOptions, perms ...string) gin.HandlersChain {
	opts.Optional = false
	return gin.HandlersChain{a.RequireAuth(opts), a.permissionGate(GatePermission, perms, false)}
}

// EnsureAnyPermission requires authentication and at least one listed permission.
func (a *Authenticator) EnsureAnyPermission(opts AuthOptions, perms ...string) gin.HandlersChain {
	opts.Optional = false
	return gin.HandlersChain{a.RequireAuth(opts), a.permissionGate(GateAnyPerm, perms, true)}
}

// Validator returns the token validator, initializing it if needed.
func (a *Authenticator) Validator(ctx context.Context) (auth.TokenValidator, error) {
	return a.resolve(ctx)
}

func (a *Authenticator) verify(ctx context.Context, token string) (*oidc.TokenPayload, error) {
	v, err := a.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return v.ValidateToken(ctx, token)
}

// attach stores the verified principal on both the gin and request contexts.
func attach(c *gin.Context, payload *oidc.TokenPayload, token string) {
	userID := payload.UserID()
	c.Set(ContextKeyUser, payload)
	c.Set(ContextKeyUserID, userID)
	c.Set(ContextKeyAccessToken, token)

	ctx := authctx.WithPrincipal(c.Request.Context(), &authctx.Principal{
		User:        payload,
		UserID:      userID,
		AccessToken: token,
	})
	c.Request = c.Request.WithContext(logger.ContextWithUserID(ctx, userID))
}

// UserFrom returns the payload attached by RequireAuth.
func UserFrom(c *gin.Context) (*oidc.TokenPayload, bool) {
	v, ok := c.Get(ContextKeyUser)
	if !ok {
		return nil, false
	}
	payload, ok := v.(*oidc.TokenPayload)
	return payload, ok && payload != nil
}

// AccessTokenFrom returns the raw token attached by RequireAuth.
func AccessTokenFrom(c *gin.Context) string {
	return c.GetString(ContextKeyAccessToken)
}

// unauthorized keeps token error codes but always answers 401, including
// when the provider could not be reached to check the token.
func unauthorized(err error) *apperrors.AppError {
	appErr := oidc.AsAppError(err)
	if appErr.Status() == http.StatusUnauthorized {
		return appErr
	}
	return apperrors.Unauthorized(err.Error()).WithCause(err)
}

func abortWith(c *gin.Context, appErr *apperrors.AppError) {
	c.AbortWithStatusJSON(appErr.Status(), appErr.ToAuthResponse())
}
