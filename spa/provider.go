package spa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/nupidentity/auth/oidc"
	apperrors "github.com/kbukum/nupidentity/errors"
	"github.com/kbukum/nupidentity/httpclient"
	"github.com/kbukum/nupidentity/logger"
	"github.com/kbukum/nupidentity/validation"
)

const defaultHTTPTimeout = 10 * time.Second

// oauthParams are stripped from the location once a callback is handled.
var oauthParams = []string{"code", "state", "error", "error_description", "session_state", "iss"}

// Endpoints overrides provider endpoints. Empty fields are resolved from
// discovery, then from the fallback paths under the issuer.
type Endpoints struct {
	Authorization string `mapstructure:"authorization"`
	Token         string `mapstructure:"token"`
	UserInfo      string `mapstructure:"userinfo"`
	EndSession    string `mapstructure:"end_session"`
}

func (e Endpoints) complete() bool {
	return e.Authorization != "" && e.Token != "" && e.UserInfo != "" && e.EndSession != ""
}

// merge fills empty fields of e from other.
func (e Endpoints) merge(other Endpoints) Endpoints {
	if e.Authorization == "" {
		e.Authorization = other.Authorization
	}
	if e.Token == "" {
		e.Token = other.Token
	}
	if e.UserInfo == "" {
		e.UserInfo = other.UserInfo
	}
	if e.EndSession == "" {
		e.EndSession = other.EndSession
	}
	return e
}

func fallbackEndpoints(issuer string) Endpoints {
	return Endpoints{
		Authorization: issuer + "/oauth/authorize",
		Token:         issuer + "/oauth/token",
		UserInfo:      issuer + "/oauth/userinfo",
		EndSession:    issuer + "/oauth/logout",
	}
}

// Config configures a Provider. The provider is a public client: no
// client secret is ever sent.
type Config struct {
	Issuer                string    `mapstructure:"issuer" validate:"required,url"`
	ClientID              string    `mapstructure:"client_id" validate:"required"`
	RedirectURI           string    `mapstructure:"redirect_uri" validate:"required,url"`
	PostLogoutRedirectURI string    `mapstructure:"post_logout_redirect_uri" validate:"omitempty,url"`
	Scopes                []string  `mapstructure:"scopes"`
	Audience              string    `mapstructure:"audience"`
	Endpoints             Endpoints `mapstructure:"endpoints"`

	// HTTPTimeout bounds discovery, token and userinfo calls. Defaults to 10s.
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`

	OnLoginSuccess  func(*oidc.UserInfo) `mapstructure:"-"`
	OnLogoutSuccess func()               `mapstructure:"-"`
	OnError         func(error)          `mapstructure:"-"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	c.Issuer = strings.TrimRight(strings.TrimSpace(c.Issuer), "/")
	if len(c.Scopes) == 0 {
		c.Scopes = append([]string(nil), oidc.DefaultScopes...)
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
}

// Validate checks required fields. The error wraps oidc.ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", oidc.ErrInvalidConfig, err)
	}
	return nil
}

// State is the provider's observable authentication state.
type State struct {
	IsAuthenticated bool
	IsLoading       bool
	User            *oidc.UserInfo
	Error           error
}

// Option configures a Provider.
type Option func(*Provider)

// WithStorage replaces the default MemoryStorage.
func WithStorage(s Storage) Option {
	return func(p *Provider) { p.storage = s }
}

// WithNavigator replaces the default SystemNavigator.
func WithNavigator(n Navigator) Option {
	return func(p *Provider) { p.nav = n }
}

// WithLogger sets the logger. Defaults to the global logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *Provider) { p.log = l }
}

// WithHTTPClient replaces the *http.Client used for provider calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Provider) { p.hc = hc }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// Provider drives the browser side of the authorization code flow with
// PKCE. Stored tokens are decoded without verification to restore UI
// state; authorization decisions belong to the server that verifies them.
type Provider struct {
	cfg     Config
	storage Storage
	nav     Navigator
	hc      *http.Client
	http    *httpclient.Client
	log     *logger.Logger
	now     func() time.Time

	mu          sync.RWMutex
	state       State
	accessToken string
	subs        map[int]func(State)
	nextSub     int
}

// New validates cfg and creates a provider in the loading state. Call
// Mount to resolve it.
func New(cfg Config, opts ...Option) (*Provider, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		cfg:   cfg,
		now:   time.Now,
		state: State{IsLoading: true},
		subs:  make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.GetGlobalLogger()
	}
	p.log = p.log.WithComponent("spa")
	if p.storage == nil {
		p.storage = NewMemoryStorage()
	}
	if p.nav == nil {
		nav, err := NewSystemNavigator(cfg.RedirectURI)
		if err != nil {
			return nil, fmt.Errorf("%w: redirect uri: %w", oidc.ErrInvalidConfig, err)
		}
		p.nav = nav
	}

	var hcOpts []httpclient.Option
	if p.hc != nil {
		hcOpts = append(hcOpts, httpclient.WithHTTPClient(p.hc))
	}
	client, err := httpclient.New(httpclient.Config{BaseURL: cfg.Issuer, Timeout: cfg.HTTPTimeout}, hcOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", oidc.ErrInvalidConfig, err)
	}
	p.http = client
	return p, nil
}

// State returns a snapshot of the current state.
func (p *Provider) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Subscribe registers fn to receive every state change. The returned
// function removes the subscription.
func (p *Provider) Subscribe(fn func(State)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

func (p *Provider) setState(s State, accessToken string) {
	p.mu.Lock()
	p.state = s
	p.accessToken = accessToken
	subs := make([]func(State), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

// Mount resolves the initial state. A location carrying code and state,
// or an error, is handled as the login callback. Otherwise the session is
// restored from a stored, unexpired access token that the userinfo
// endpoint still accepts. Callback failures are returned and passed to
// OnError; a session that cannot be restored is cleared silently.
func (p *Provider) Mount(ctx context.Context) error {
	loc := p.nav.Location()
	q := loc.Query()
	if q.Get("error") != "" || (q.Get("code") != "" && q.Get("state") != "") {
		return p.handleCallback(ctx, loc)
	}
	p.restore(ctx)
	return nil
}

func (p *Provider) restore(ctx context.Context) {
	token, ok := p.storage.Get(KeyAccessToken)
	if !ok || token == "" {
		p.setState(State{}, "")
		return
	}

	claims, err := oidc.DecodeUnverified(token)
	if err != nil || claims.ExpiresAt == nil || !claims.ExpiresAt.After(p.now()) {
		p.log.Debug("stored access token unusable, clearing session")
		p.clearSession()
		return
	}

	user, err := p.fetchUser(ctx, token)
	if err != nil {
		p.log.Info("stored session rejected by provider", logger.ErrorFields("restore_session", err))
		p.clearSession()
		return
	}
	p.setState(State{IsAuthenticated: true, User: user}, token)
}

// Login starts the authorization code flow. The state, nonce and PKCE
// verifier are stored for the callback, overwriting those of any earlier
// attempt, and the navigator is sent to the authorization endpoint.
func (p *Provider) Login(ctx context.Context) error {
	ep := p.endpoints(ctx)

	params, err := oidc.NewLoginParams()
	if err != nil {
		return p.fail(apperrors.Internal(err))
	}
	authURL, err := oidc.BuildAuthorizationURL(ep.Authorization, p.cfg.ClientID, oidc.AuthorizationOptions{
		RedirectURI:   p.cfg.RedirectURI,
		Scopes:        p.cfg.Scopes,
		State:         params.State,
		Nonce:         params.Nonce,
		CodeChallenge: params.CodeChallenge,
		Audience:      p.cfg.Audience,
	})
	if err != nil {
		return p.fail(err)
	}

	p.storage.Set(KeyState, params.State, transientTTL)
	p.storage.Set(KeyNonce, params.Nonce, transientTTL)
	p.storage.Set(KeyCodeVerifier, params.CodeVerifier, transientTTL)

	p.log.Debug("redirecting to authorization endpoint", logger.Fields(logger.FieldIssuer, p.cfg.Issuer))
	if err := p.nav.Assign(authURL); err != nil {
		return p.fail(fmt.Errorf("open authorization url: %w", err))
	}
	return nil
}

func (p *Provider) handleCallback(ctx context.Context, loc *url.URL) error {
	q := loc.Query()
	storedState, storedNonce, verifier := p.takeTransient()
	// Whatever the outcome, a later Mount must not see this callback again.
	defer p.dropOAuthParams(loc)

	if code := q.Get("error"); code != "" {
		return p.fail(apperrors.AuthorizationDenied(code, q.Get("error_description")))
	}
	if storedState == "" || storedNonce == "" || verifier == "" {
		return p.fail(oidc.ErrSessionExpired)
	}
	if q.Get("state") != storedState {
		return p.fail(oidc.ErrStateMismatch)
	}

	ep := p.endpoints(ctx)
	grants := oidc.NewGrantClient(p.cfg.ClientID, "", ep.Authorization, ep.Token, p.http.Unwrap())
	tokens, err := grants.ExchangeCode(ctx, q.Get("code"), p.cfg.RedirectURI, verifier)
	if err != nil {
		return p.fail(err)
	}

	if tokens.IDToken != "" {
		idToken, err := oidc.DecodeUnverified(tokens.IDToken)
		switch {
		case err != nil:
			p.log.Warn("could not decode id_token for nonce check", logger.ErrorFields("decode_id_token", err))
		case idToken.Nonce != storedNonce:
			return p.fail(oidc.ErrNonceMismatch)
		}
	}

	p.storeTokens(tokens)

	user, err := p.fetchUser(ctx, tokens.AccessToken)
	if err != nil {
		removeAll(p.storage, tokenKeys)
		return p.fail(err)
	}
	p.setState(State{IsAuthenticated: true, User: user}, tokens.AccessToken)
	p.log.Info("login completed", logger.Fields(logger.FieldUserID, user.Subject))
	if p.cfg.OnLoginSuccess != nil {
		p.cfg.OnLoginSuccess(user)
	}
	return nil
}

// takeTransient reads and removes the stored login triplet.
func (p *Provider) takeTransient() (state, nonce, verifier string) {
	state, _ = p.storage.Get(KeyState)
	nonce, _ = p.storage.Get(KeyNonce)
	verifier, _ = p.storage.Get(KeyCodeVerifier)
	removeAll(p.storage, transientKeys)
	return state, nonce, verifier
}

func (p *Provider) dropOAuthParams(loc *url.URL) {
	clean := *loc
	q := clean.Query()
	for _, k := range oauthParams {
		q.Del(k)
	}
	clean.RawQuery = q.Encode()
	p.nav.ReplaceState(&clean)
}

func (p *Provider) storeTokens(tokens *oidc.TokenSet) {
	p.storage.Set(KeyAccessToken, tokens.AccessToken, 0)
	if tokens.RefreshToken != "" {
		p.storage.Set(KeyRefreshToken, tokens.RefreshToken, 0)
	}
	if tokens.IDToken != "" {
		p.storage.Set(KeyIDToken, tokens.IDToken, 0)
	}
}

// Logout clears the local session and, when an id_token was stored,
// navigates to the provider's end-session endpoint.
func (p *Provider) Logout(ctx context.Context) error {
	idToken, _ := p.storage.Get(KeyIDToken)
	p.clearSession()
	if p.cfg.OnLogoutSuccess != nil {
		p.cfg.OnLogoutSuccess()
	}
	if idToken == "" {
		return nil
	}

	ep := p.endpoints(ctx)
	logoutURL, err := oidc.BuildLogoutURL(ep.EndSession, oidc.LogoutOptions{
		IDTokenHint:           idToken,
		PostLogoutRedirectURI: p.postLogoutRedirect(),
	})
	if err != nil {
		return err
	}
	return p.nav.Assign(logoutURL)
}

func (p *Provider) postLogoutRedirect() string {
	if p.cfg.PostLogoutRedirectURI != "" {
		return p.cfg.PostLogoutRedirectURI
	}
	loc := p.nav.Location()
	return (&url.URL{Scheme: loc.Scheme, Host: loc.Host}).String()
}

// RefreshSession runs the refresh grant with the stored refresh token and
// reports whether it succeeded. It never returns an error.
func (p *Provider) RefreshSession(ctx context.Context) bool {
	refreshToken, ok := p.storage.Get(KeyRefreshToken)
	if !ok || refreshToken == "" {
		return false
	}

	ep := p.endpoints(ctx)
	grants := oidc.NewGrantClient(p.cfg.ClientID, "", ep.Authorization, ep.Token, p.http.Unwrap())
	tokens, err := grants.Refresh(ctx, refreshToken)
	if err != nil {
		p.log.Info("session refresh failed", logger.ErrorFields("refresh_session", err))
		return false
	}

	p.storeTokens(tokens)
	state := p.State()
	p.setState(state, tokens.AccessToken)
	return true
}

func (p *Provider) clearSession() {
	removeAll(p.storage, tokenKeys)
	p.setState(State{}, "")
}

func (p *Provider) fail(err error) error {
	p.log.Warn("authentication failed", logger.ErrorFields("spa", err))
	p.setState(State{Error: err}, "")
	if p.cfg.OnError != nil {
		p.cfg.OnError(err)
	}
	return err
}

func (p *Provider) fetchUser(ctx context.Context, accessToken string) (*oidc.UserInfo, error) {
	ep := p.endpoints(ctx)
	resp, err := httpclient.Get[oidc.UserInfo](p.http, ctx, ep.UserInfo,
		httpclient.WithRequestAuth(httpclient.BearerAuth(accessToken)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", oidc.ErrUserInfo, err)
	}
	info := resp.Data
	return &info, nil
}

// endpoints resolves each endpoint from the explicit override, then the
// cached discovery document, then the fallback paths.
func (p *Provider) endpoints(ctx context.Context) Endpoints {
	ep := p.cfg.Endpoints
	if ep.complete() {
		return ep
	}
	if doc := p.discovery(ctx); doc != nil {
		ep = ep.merge(Endpoints{
			Authorization: doc.AuthorizationEndpoint,
			Token:         doc.TokenEndpoint,
			UserInfo:      doc.UserInfoEndpoint,
			EndSession:    doc.EndSessionEndpoint,
		})
	}
	return ep.merge(fallbackEndpoints(p.cfg.Issuer))
}

func (p *Provider) discovery(ctx context.Context) *oidc.DiscoveryDocument {
	if raw, ok := p.storage.Get(KeyDiscovery); ok {
		var doc oidc.DiscoveryDocument
		if err := json.Unmarshal([]byte(raw), &doc); err == nil {
			return &doc
		}
		p.storage.Remove(KeyDiscovery)
	}

	resp, err := httpclient.Get[oidc.DiscoveryDocument](p.http, ctx, "/.well-known/openid-configuration")
	if err != nil {
		p.log.Warn("discovery failed, using fallback endpoints", logger.ErrorFields("discover", err))
		return nil
	}
	doc := resp.Data
	if raw, err := json.Marshal(doc); err == nil {
		p.storage.Set(KeyDiscovery, string(raw), discoveryTTL)
	}
	return &doc
}
