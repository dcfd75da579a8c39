package oidc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/nupidentity/httpclient"
	"github.com/kbukum/nupidentity/logger"
	"github.com/kbukum/nupidentity/observability"
)

// Client is an OIDC relying-party client scoped to one (issuer, client ID)
// pair. It is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *httpclient.Client
	log     *logger.Logger
	tracer  trace.Tracer
	metrics *observability.AuthMetrics
	now     func() time.Time

	discoMu sync.Mutex
	disco   *DiscoveryDocument

	keys *keyStore
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	log            *logger.Logger
	httpClient     *http.Client
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	now            func() time.Time
}

// WithLogger sets the logger. Defaults to the global logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *clientOptions) { o.log = l }
}

// WithHTTPClient replaces the HTTP client used for every provider call.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = hc }
}

// WithTracerProvider sets the tracer provider. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *clientOptions) { o.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider. Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *clientOptions) { o.meterProvider = mp }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *clientOptions) { o.now = now }
}

// New validates cfg and creates a client. No network calls are made.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := clientOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.GetGlobalLogger()
	}

	var hcOpts []httpclient.Option
	if o.httpClient != nil {
		hcOpts = append(hcOpts, httpclient.WithHTTPClient(o.httpClient))
	}
	hc, err := httpclient.New(httpclient.Config{BaseURL: cfg.Issuer, Timeout: cfg.HTTPTimeout, TLS: &cfg.TLS}, hcOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	metrics, err := observability.NewAuthMetrics(observability.Meter(o.meterProvider))
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:     cfg,
		http:    hc,
		log:     o.log.WithComponent("oidc"),
		tracer:  observability.Tracer(o.tracerProvider),
		metrics: metrics,
		now:     o.now,
	}
	c.keys = &keyStore{load: c.fetchJWKS}
	return c, nil
}

// Config returns the normalized configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Issuer returns the normalized issuer URL.
func (c *Client) Issuer() string {
	return c.cfg.Issuer
}

// Metrics exposes the client's instruments so the middleware records into the same set.
func (c *Client) Metrics() *observability.AuthMetrics {
	return c.metrics
}

// HTTPClient returns the instrumented *http.Client used for provider calls.
func (c *Client) HTTPClient() *http.Client {
	return c.http.Unwrap()
}

// Discover fetches and memoizes the provider's OpenID configuration.
// Concurrent callers share one request. Failures are not memoized.
func (c *Client) Discover(ctx context.Context) (*DiscoveryDocument, error) {
	c.discoMu.Lock()
	defer c.discoMu.Unlock()

	if c.disco != nil {
		return c.disco, nil
	}

	ctx, span := c.startSpan(ctx, observability.SpanDiscover)
	start := time.Now()
	resp, err := httpclient.Get[DiscoveryDocument](c.http, ctx, "/.well-known/openid-configuration")
	c.metrics.RecordProviderCall(ctx, "discover", err, time.Since(start))
	if err != nil {
		err = requestError(ErrDiscovery, "GET discovery document", err)
		observability.EndSpan(span, err)
		c.log.WithError(err).Error("discovery failed", logger.Fields(logger.FieldIssuer, c.cfg.Issuer))
		return nil, err
	}
	observability.EndSpan(span, nil)

	doc := resp.Data
	c.disco = &doc
	c.log.Debug("discovery document loaded", logger.Fields(
		logger.FieldIssuer, c.cfg.Issuer,
		"jwks_uri", doc.JWKSURI,
	))
	return c.disco, nil
}

// discovery returns the memoized document without fetching.
func (c *Client) discovery() (*DiscoveryDocument, bool) {
	c.discoMu.Lock()
	defer c.discoMu.Unlock()
	return c.disco, c.disco != nil
}

// GetJWKS returns the cached key set while it is within its TTL, otherwise
// refreshes it.
func (c *Client) GetJWKS(ctx context.Context) (*JWKS, error) {
	cache, err := c.currentKeys(ctx)
	if err != nil {
		return nil, err
	}
	return &cache.Keys, nil
}

func (c *Client) currentKeys(ctx context.Context) (*JWKSCache, error) {
	if cache := c.keys.Current(); !cache.IsExpired(c.now()) {
		return cache, nil
	}
	c.metrics.RecordJWKSRefresh(ctx, "ttl")
	return c.keys.Refresh(ctx)
}

func (c *Client) fetchJWKS(ctx context.Context) (*JWKSCache, error) {
	doc, err := c.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if doc.JWKSURI == "" {
		return nil, fmt.Errorf("%w: discovery document has no jwks_uri", ErrJWKSFetch)
	}

	ctx, span := c.startSpan(ctx, observability.SpanJWKSRefresh)
	start := time.Now()
	resp, err := c.http.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: doc.JWKSURI})
	c.metrics.RecordProviderCall(ctx, "jwks", err, time.Since(start))
	if err != nil {
		err = requestError(ErrJWKSFetch, "GET "+doc.JWKSURI, err)
		observability.EndSpan(span, err)
		return nil, err
	}

	cache, err := parseJWKS(resp.Body, c.now(), c.cfg.JWKSCacheTTL)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrJWKSFetch, err)
		observability.EndSpan(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("oidc.jwks.keys", len(cache.Keys.Keys)))
	observability.EndSpan(span, nil)
	return cache, nil
}

// AuthorizationURL builds the authorization endpoint URL. Discover must
// have succeeded first.
func (c *Client) AuthorizationURL(opts AuthorizationOptions) (string, error) {
	doc, ok := c.discovery()
	if !ok {
		return "", ErrDiscoveryRequired
	}
	if opts.RedirectURI == "" {
		opts.RedirectURI = c.cfg.RedirectURI
	}
	if len(opts.Scopes) == 0 {
		opts.Scopes = c.cfg.Scopes
	}
	if opts.Audience == "" {
		opts.Audience = c.cfg.Audience
	}
	return BuildAuthorizationURL(doc.AuthorizationEndpoint, c.cfg.ClientID, opts)
}

// BuildAuthorizationURL assembles an authorization-code request URL.
// The code challenge method defaults to S256 when a challenge is given.
func BuildAuthorizationURL(endpoint, clientID string, opts AuthorizationOptions) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: authorization endpoint: %w", ErrInvalidConfig, err)
	}
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", clientID)
	if opts.RedirectURI != "" {
		q.Set("redirect_uri", opts.RedirectURI)
	}
	q.Set("scope", strings.Join(opts.Scopes, " "))
	if opts.State != "" {
		q.Set("state", opts.State)
	}
	if opts.Nonce != "" {
		q.Set("nonce", opts.Nonce)
	}
	if opts.CodeChallenge != "" {
		method := opts.CodeChallengeMethod
		if method == "" {
			method = CodeChallengeMethodS256
		}
		q.Set("code_challenge", opts.CodeChallenge)
		q.Set("code_challenge_method", method)
	}
	if opts.Audience != "" {
		q.Set("audience", opts.Audience)
	}
	for k, v := range opts.ExtraParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ExchangeCode trades an authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*TokenSet, error) {
	grants, err := c.grants(ctx)
	if err != nil {
		return nil, err
	}
	if redirectURI == "" {
		redirectURI = c.cfg.RedirectURI
	}

	ctx, span := c.startSpan(ctx, observability.SpanExchangeCode)
	start := time.Now()
	tokens, err := grants.ExchangeCode(ctx, code, redirectURI, codeVerifier)
	c.metrics.RecordProviderCall(ctx, "exchange_code", err, time.Since(start))
	observability.EndSpan(span, err)
	if err != nil {
		c.log.WithError(err).Warn("code exchange failed")
		return nil, err
	}
	return tokens, nil
}

// RefreshToken runs the refresh_token grant.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	grants, err := c.grants(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := c.startSpan(ctx, observability.SpanRefreshToken)
	start := time.Now()
	tokens, err := grants.Refresh(ctx, refreshToken)
	c.metrics.RecordProviderCall(ctx, "refresh_token", err, time.Since(start))
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (c *Client) grants(ctx context.Context) (*GrantClient, error) {
	doc, err := c.Discover(ctx)
	if err != nil {
		return nil, err
	}
	return NewGrantClient(c.cfg.ClientID, c.cfg.ClientSecret, doc.AuthorizationEndpoint, doc.TokenEndpoint, c.http.Unwrap()), nil
}

// UserInfo fetches the userinfo claims for an access token.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	doc, err := c.Discover(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := c.startSpan(ctx, observability.SpanUserInfo)
	start := time.Now()
	resp, err := httpclient.Get[UserInfo](c.http, ctx, doc.UserInfoEndpoint,
		httpclient.WithRequestAuth(httpclient.BearerAuth(accessToken)))
	c.metrics.RecordProviderCall(ctx, "userinfo", err, time.Since(start))
	if err != nil {
		err = requestError(ErrUserInfo, "GET userinfo", err)
		observability.EndSpan(span, err)
		return nil, err
	}
	observability.EndSpan(span, nil)
	info := resp.Data
	return &info, nil
}

// LogoutURL builds the provider's end-session URL. Discover must have
// succeeded first and the provider must advertise end_session_endpoint.
func (c *Client) LogoutURL(opts LogoutOptions) (string, error) {
	doc, ok := c.discovery()
	if !ok {
		return "", ErrDiscoveryRequired
	}
	if doc.EndSessionEndpoint == "" {
		return "", ErrNoEndSession
	}
	if opts.PostLogoutRedirectURI == "" {
		opts.PostLogoutRedirectURI = c.cfg.PostLogoutRedirectURI
	}
	return BuildLogoutURL(doc.EndSessionEndpoint, opts)
}

// BuildLogoutURL assembles an end-session URL.
func BuildLogoutURL(endpoint string, opts LogoutOptions) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: end session endpoint: %w", ErrInvalidConfig, err)
	}
	q := u.Query()
	if opts.IDTokenHint != "" {
		q.Set("id_token_hint", opts.IDTokenHint)
	}
	if opts.PostLogoutRedirectURI != "" {
		q.Set("post_logout_redirect_uri", opts.PostLogoutRedirectURI)
	}
	if opts.State != "" {
		q.Set("state", opts.State)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String(observability.AttrIssuer, c.cfg.Issuer),
		attribute.String(observability.AttrClientID, c.cfg.ClientID),
	))
}
