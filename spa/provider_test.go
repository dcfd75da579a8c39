package spa_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/nupidentity/auth/oidc"
	oidctest "github.com/kbukum/nupidentity/auth/oidc/testutil"
	apperrors "github.com/kbukum/nupidentity/errors"
	"github.com/kbukum/nupidentity/logger"
	"github.com/kbukum/nupidentity/spa"
)

const redirectURI = "http://app.test/callback"

type fakeNavigator struct {
	mu       sync.Mutex
	location *url.URL
	assigned []string
}

func newNavigator(t *testing.T, raw string) *fakeNavigator {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return &fakeNavigator{location: u}
}

func (n *fakeNavigator) Location() *url.URL {
	n.mu.Lock()
	defer n.mu.Unlock()
	u := *n.location
	return &u
}

func (n *fakeNavigator) Assign(rawURL string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.assigned = append(n.assigned, rawURL)
	return nil
}

func (n *fakeNavigator) ReplaceState(u *url.URL) {
	n.mu.Lock()
	defer n.mu.Unlock()
	cp := *u
	n.location = &cp
}

func (n *fakeNavigator) set(t *testing.T, raw string) {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	n.ReplaceState(u)
}

func (n *fakeNavigator) last(t *testing.T) *url.URL {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.assigned) == 0 {
		t.Fatal("navigator was never assigned")
	}
	u, err := url.Parse(n.assigned[len(n.assigned)-1])
	if err != nil {
		t.Fatalf("parse assigned url: %v", err)
	}
	return u
}

type fixture struct {
	provider *oidctest.Provider
	nav      *fakeNavigator
	storage  *spa.MemoryStorage
	spa      *spa.Provider

	errs      []error
	logins    []*oidc.UserInfo
	logouts   int
	callbacks sync.Mutex
}

func newFixture(t *testing.T, mutate ...func(*spa.Config)) *fixture {
	t.Helper()
	f := &fixture{
		provider: oidctest.NewProvider(t),
		nav:      newNavigator(t, "http://app.test/"),
		storage:  spa.NewMemoryStorage(),
	}
	cfg := spa.Config{
		Issuer:      f.provider.Issuer(),
		ClientID:    f.provider.ClientID,
		RedirectURI: redirectURI,
		OnError: func(err error) {
			f.callbacks.Lock()
			f.errs = append(f.errs, err)
			f.callbacks.Unlock()
		},
		OnLoginSuccess: func(u *oidc.UserInfo) {
			f.callbacks.Lock()
			f.logins = append(f.logins, u)
			f.callbacks.Unlock()
		},
		OnLogoutSuccess: func() {
			f.callbacks.Lock()
			f.logouts++
			f.callbacks.Unlock()
		},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	p, err := spa.New(cfg,
		spa.WithStorage(f.storage),
		spa.WithNavigator(f.nav),
		spa.WithHTTPClient(f.provider.Client()),
		spa.WithLogger(logger.Nop()),
	)
	if err != nil {
		t.Fatalf("spa.New: %v", err)
	}
	f.spa = p
	return f
}

// authorize follows the authorization URL the provider was sent to and
// lands the navigator on the callback URL.
func (f *fixture) authorize(t *testing.T) {
	t.Helper()
	hc := f.provider.Client()
	hc.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, f.nav.last(t).String(), http.NoBody)
	resp, err := hc.Do(req)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("authorize status = %d", resp.StatusCode)
	}
	f.nav.set(t, resp.Header.Get("Location"))
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if err := f.spa.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}
	f.authorize(t)
	if err := f.spa.Mount(ctx); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if !f.spa.IsAuthenticated() {
		t.Fatal("expected an authenticated session after login")
	}
}

func (f *fixture) stored(key string) string {
	v, _ := f.storage.Get(key)
	return v
}

func TestProvider_LoginFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if !f.spa.State().IsLoading {
		t.Error("a new provider should be loading")
	}
	if err := f.spa.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}

	authURL := f.nav.last(t)
	q := authURL.Query()
	verifier := f.stored(spa.KeyCodeVerifier)
	switch {
	case !strings.HasPrefix(authURL.String(), f.provider.URL("/oauth/authorize")):
		t.Errorf("unexpected authorization url %s", authURL)
	case q.Get("client_id") != f.provider.ClientID || q.Get("redirect_uri") != redirectURI:
		t.Errorf("unexpected client parameters %v", q)
	case q.Get("state") != f.stored(spa.KeyState) || q.Get("nonce") != f.stored(spa.KeyNonce):
		t.Error("state and nonce should match the stored values")
	case q.Get("code_challenge") != oidc.GenerateCodeChallenge(verifier):
		t.Error("code challenge should be derived from the stored verifier")
	case q.Get("scope") != "openid profile email":
		t.Errorf("scope = %q", q.Get("scope"))
	}

	f.authorize(t)
	if err := f.spa.Mount(ctx); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	state := f.spa.State()
	if !state.IsAuthenticated || state.IsLoading || state.Error != nil {
		t.Fatalf("unexpected state %+v", state)
	}
	if state.User == nil || state.User.Subject != "user-1" {
		t.Fatalf("unexpected user %+v", state.User)
	}
	if f.spa.AccessToken() == "" || f.spa.AccessToken() != f.stored(spa.KeyAccessToken) {
		t.Error("access token should be held in memory and storage")
	}
	if f.stored(spa.KeyRefreshToken) == "" || f.stored(spa.KeyIDToken) == "" {
		t.Error("refresh and id tokens should be stored")
	}
	for _, k := range []string{spa.KeyState, spa.KeyNonce, spa.KeyCodeVerifier} {
		if _, ok := f.storage.Get(k); ok {
			t.Errorf("%s should be cleared after the callback", k)
		}
	}
	if loc := f.nav.Location(); loc.Query().Has("code") || loc.Query().Has("state") {
		t.Errorf("OAuth parameters left in location %s", loc)
	}

	form := f.provider.LastTokenForm()
	if form.Has("client_secret") {
		t.Error("a public client must not send a client secret")
	}
	if form.Get("code_verifier") != verifier {
		t.Error("the stored verifier should be sent with the code")
	}
	if len(f.logins) != 1 || len(f.errs) != 0 {
		t.Errorf("callbacks: %d logins, errors %v", len(f.logins), f.errs)
	}
}

func TestProvider_Hooks(t *testing.T) {
	f := newFixture(t)
	if got := f.spa.Permissions(); got == nil || len(got) != 0 {
		t.Errorf("Permissions without a token = %#v, want empty", got)
	}

	f.provider.Permissions = []string{"analysis.view", "analysis.edit"}
	f.login(t)

	if f.spa.User().Subject != "user-1" {
		t.Errorf("User() = %+v", f.spa.User())
	}
	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{"has view", f.spa.HasPermission("analysis.view"), true},
		{"has admin", f.spa.HasPermission("admin"), false},
		{"all granted", f.spa.HasAllPermissions("analysis.view", "analysis.edit"), true},
		{"all with one missing", f.spa.HasAllPermissions("analysis.view", "admin"), false},
		{"any with one granted", f.spa.HasAnyPermission("admin", "analysis.edit"), true},
		{"any with none granted", f.spa.HasAnyPermission("admin", "billing"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestProvider_CallbackFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, f *fixture)
		check func(err error) bool
	}{
		{
			name: "state mismatch",
			setup: func(t *testing.T, f *fixture) {
				if err := f.spa.Login(context.Background()); err != nil {
					t.Fatalf("Login: %v", err)
				}
				f.authorize(t)
				loc := f.nav.Location()
				q := loc.Query()
				q.Set("state", "forged")
				loc.RawQuery = q.Encode()
				f.nav.ReplaceState(loc)
			},
			check: func(err error) bool { return errors.Is(err, oidc.ErrStateMismatch) },
		},
		{
			name: "no stored login",
			setup: func(t *testing.T, f *fixture) {
				f.nav.set(t, redirectURI+"?code=abc&state=xyz")
			},
			check: func(err error) bool { return errors.Is(err, oidc.ErrSessionExpired) },
		},
		{
			name: "provider error",
			setup: func(t *testing.T, f *fixture) {
				if err := f.spa.Login(context.Background()); err != nil {
					t.Fatalf("Login: %v", err)
				}
				f.nav.set(t, redirectURI+"?error=access_denied&error_description=user+cancelled")
			},
			check: func(err error) bool { return apperrors.HasCode(err, apperrors.ErrCodeAuthorizationDenied) },
		},
		{
			name: "nonce mismatch",
			setup: func(t *testing.T, f *fixture) {
				if err := f.spa.Login(context.Background()); err != nil {
					t.Fatalf("Login: %v", err)
				}
				challenge := oidc.GenerateCodeChallenge(f.stored(spa.KeyCodeVerifier))
				code := f.provider.IssueCode(redirectURI, challenge, "someone-elses-nonce")
				f.nav.set(t, redirectURI+"?code="+code+"&state="+url.QueryEscape(f.stored(spa.KeyState)))
			},
			check: func(err error) bool { return errors.Is(err, oidc.ErrNonceMismatch) },
		},
		{
			name: "code rejected",
			setup: func(t *testing.T, f *fixture) {
				if err := f.spa.Login(context.Background()); err != nil {
					t.Fatalf("Login: %v", err)
				}
				f.nav.set(t, redirectURI+"?code=unknown&state="+url.QueryEscape(f.stored(spa.KeyState)))
			},
			check: func(err error) bool { return errors.Is(err, oidc.ErrTokenRequest) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(t, f)

			err := f.spa.Mount(context.Background())
			if err == nil || !tt.check(err) {
				t.Fatalf("Mount error = %v", err)
			}
			if len(f.errs) != 1 || f.errs[0] != err {
				t.Errorf("OnError calls = %v", f.errs)
			}

			state := f.spa.State()
			if state.IsAuthenticated || state.IsLoading || state.Error == nil {
				t.Errorf("unexpected state %+v", state)
			}
			if f.spa.AccessToken() != "" {
				t.Error("no access token should be held after a failed callback")
			}
			for _, k := range []string{spa.KeyAccessToken, spa.KeyState, spa.KeyNonce, spa.KeyCodeVerifier} {
				if _, ok := f.storage.Get(k); ok {
					t.Errorf("%s should not be stored after a failed callback", k)
				}
			}
			if len(f.logins) != 0 {
				t.Error("OnLoginSuccess must not run")
			}

			q := f.nav.Location().Query()
			for _, k := range []string{"code", "state", "error"} {
				if q.Has(k) {
					t.Errorf("%s should be removed from the location, got %s", k, f.nav.Location())
				}
			}
			// The next mount restores a stored session instead of retrying the callback.
			token := f.provider.AccessToken(nil)
			f.storage.Set(spa.KeyAccessToken, token, 0)
			if err := f.spa.Mount(context.Background()); err != nil {
				t.Fatalf("second Mount: %v", err)
			}
			if !f.spa.IsAuthenticated() || f.spa.AccessToken() != token {
				t.Errorf("expected the stored session to be restored, got %+v", f.spa.State())
			}
		})
	}
}

func TestProvider_RestoreSession(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		f := newFixture(t)
		token := f.provider.AccessToken(nil)
		f.storage.Set(spa.KeyAccessToken, token, 0)

		if err := f.spa.Mount(context.Background()); err != nil {
			t.Fatalf("Mount: %v", err)
		}
		if !f.spa.IsAuthenticated() || f.spa.AccessToken() != token {
			t.Fatalf("expected restored session, got %+v", f.spa.State())
		}
		if f.provider.UserInfoHits() != 1 {
			t.Errorf("userinfo hits = %d, want 1", f.provider.UserInfoHits())
		}
	})

	t.Run("expired token", func(t *testing.T) {
		f := newFixture(t)
		f.storage.Set(spa.KeyAccessToken, f.provider.AccessToken(map[string]any{"exp": time.Now().Add(-time.Minute).Unix()}), 0)
		f.storage.Set(spa.KeyRefreshToken, "rt", 0)

		if err := f.spa.Mount(context.Background()); err != nil {
			t.Fatalf("Mount: %v", err)
		}
		if f.spa.IsAuthenticated() {
			t.Fatal("expired token must not restore a session")
		}
		if f.provider.UserInfoHits() != 0 {
			t.Error("an expired token should be rejected locally")
		}
		if _, ok := f.storage.Get(spa.KeyRefreshToken); ok {
			t.Error("stored tokens should be cleared")
		}
	})

	t.Run("rejected by provider", func(t *testing.T) {
		f := newFixture(t)
		token, err := f.provider.Sign(oidctest.DefaultKeyID, f.provider.Claims(nil))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		f.storage.Set(spa.KeyAccessToken, token, 0)

		if err := f.spa.Mount(context.Background()); err != nil {
			t.Fatalf("Mount: %v", err)
		}
		if f.spa.IsAuthenticated() {
			t.Fatal("a token the provider rejects must not restore a session")
		}
		if _, ok := f.storage.Get(spa.KeyAccessToken); ok {
			t.Error("stored tokens should be cleared")
		}
		if len(f.errs) != 0 {
			t.Errorf("restore failures are not reported, got %v", f.errs)
		}
	})

	t.Run("no token", func(t *testing.T) {
		f := newFixture(t)
		if err := f.spa.Mount(context.Background()); err != nil {
			t.Fatalf("Mount: %v", err)
		}
		if state := f.spa.State(); state.IsAuthenticated || state.IsLoading {
			t.Errorf("unexpected state %+v", state)
		}
	})
}

func TestProvider_Logout(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	idToken := f.stored(spa.KeyIDToken)
	assigned := len(f.nav.assigned)

	if err := f.spa.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if f.spa.IsAuthenticated() || f.spa.AccessToken() != "" {
		t.Error("expected an unauthenticated state")
	}
	for _, k := range []string{spa.KeyAccessToken, spa.KeyRefreshToken, spa.KeyIDToken} {
		if _, ok := f.storage.Get(k); ok {
			t.Errorf("%s should be cleared", k)
		}
	}
	if f.logouts != 1 {
		t.Errorf("OnLogoutSuccess calls = %d", f.logouts)
	}

	if len(f.nav.assigned) != assigned+1 {
		t.Fatal("expected navigation to the end-session endpoint")
	}
	end := f.nav.last(t)
	if !strings.HasPrefix(end.String(), f.provider.URL("/oauth/logout")) {
		t.Errorf("unexpected logout url %s", end)
	}
	if end.Query().Get("id_token_hint") != idToken {
		t.Error("id_token_hint should carry the stored id token")
	}
	if got := end.Query().Get("post_logout_redirect_uri"); got != "http://app.test" {
		t.Errorf("post_logout_redirect_uri = %q", got)
	}

	if err := f.spa.Logout(context.Background()); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
	if len(f.nav.assigned) != assigned+1 {
		t.Error("without an id token there is nothing to end at the provider")
	}
}

func TestProvider_RefreshSession(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		f.login(t)
		refresh := f.stored(spa.KeyRefreshToken)
		hits := f.provider.TokenHits()

		if !f.spa.RefreshSession(context.Background()) {
			t.Fatal("RefreshSession should succeed")
		}
		if f.provider.TokenHits() != hits+1 || f.provider.LastTokenForm().Get("grant_type") != "refresh_token" {
			t.Error("expected one refresh grant")
		}
		if f.stored(spa.KeyRefreshToken) != refresh {
			t.Error("an unrotated refresh token should be kept")
		}
		if f.spa.AccessToken() != f.stored(spa.KeyAccessToken) {
			t.Error("in-memory and stored access tokens should agree")
		}
	})

	t.Run("rotation", func(t *testing.T) {
		f := newFixture(t)
		f.provider.RotateRefreshTokens = true
		f.login(t)
		refresh := f.stored(spa.KeyRefreshToken)

		if !f.spa.RefreshSession(context.Background()) {
			t.Fatal("RefreshSession should succeed")
		}
		if got := f.stored(spa.KeyRefreshToken); got == "" || got == refresh {
			t.Error("the rotated refresh token should be stored")
		}
	})

	t.Run("no refresh token", func(t *testing.T) {
		f := newFixture(t)
		if f.spa.RefreshSession(context.Background()) {
			t.Error("RefreshSession without a stored token should fail")
		}
		if f.provider.TokenHits() != 0 {
			t.Error("no grant should be attempted")
		}
	})

	t.Run("revoked", func(t *testing.T) {
		f := newFixture(t)
		f.storage.Set(spa.KeyRefreshToken, "revoked", 0)
		if f.spa.RefreshSession(context.Background()) {
			t.Error("RefreshSession with a revoked token should fail")
		}
	})
}

func TestProvider_EndpointResolution(t *testing.T) {
	t.Run("discovery is cached", func(t *testing.T) {
		f := newFixture(t)
		for i := 0; i < 2; i++ {
			if err := f.spa.Login(context.Background()); err != nil {
				t.Fatalf("Login: %v", err)
			}
		}
		if f.provider.DiscoveryHits() != 1 {
			t.Errorf("discovery hits = %d, want 1", f.provider.DiscoveryHits())
		}
		if _, ok := f.storage.Get(spa.KeyDiscovery); !ok {
			t.Error("discovery document should be cached in storage")
		}
	})

	t.Run("override skips discovery", func(t *testing.T) {
		f := newFixture(t, func(c *spa.Config) {
			c.Endpoints = spa.Endpoints{
				Authorization: "https://login.example.com/authorize",
				Token:         "https://login.example.com/token",
				UserInfo:      "https://login.example.com/userinfo",
				EndSession:    "https://login.example.com/logout",
			}
		})
		if err := f.spa.Login(context.Background()); err != nil {
			t.Fatalf("Login: %v", err)
		}
		if got := f.nav.last(t); got.Host != "login.example.com" || got.Path != "/authorize" {
			t.Errorf("unexpected authorization url %s", got)
		}
		if f.provider.DiscoveryHits() != 0 {
			t.Error("a complete override should not fetch discovery")
		}
	})

	t.Run("fallback when discovery fails", func(t *testing.T) {
		f := newFixture(t)
		f.provider.FailDiscovery(1)
		if err := f.spa.Login(context.Background()); err != nil {
			t.Fatalf("Login: %v", err)
		}
		if got := f.nav.last(t); !strings.HasPrefix(got.String(), f.provider.Issuer()+"/oauth/authorize?") {
			t.Errorf("unexpected authorization url %s", got)
		}
		if _, ok := f.storage.Get(spa.KeyDiscovery); ok {
			t.Error("a failed discovery must not be cached")
		}
	})
}

func TestProvider_Subscribe(t *testing.T) {
	f := newFixture(t)
	var seen []spa.State
	unsubscribe := f.spa.Subscribe(func(s spa.State) { seen = append(seen, s) })

	f.login(t)
	if len(seen) == 0 || !seen[len(seen)-1].IsAuthenticated {
		t.Fatalf("subscriber should observe the authenticated state, saw %+v", seen)
	}

	unsubscribe()
	n := len(seen)
	if err := f.spa.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(seen) != n {
		t.Error("an unsubscribed listener should not be called")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  spa.Config
	}{
		{"missing issuer", spa.Config{ClientID: "c", RedirectURI: redirectURI}},
		{"missing client", spa.Config{Issuer: "https://id.example.com", RedirectURI: redirectURI}},
		{"missing redirect", spa.Config{Issuer: "https://id.example.com", ClientID: "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := spa.New(tt.cfg, spa.WithLogger(logger.Nop()))
			if !errors.Is(err, oidc.ErrInvalidConfig) {
				t.Errorf("New() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
