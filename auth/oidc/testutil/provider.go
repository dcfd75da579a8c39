// Package testutil provides a stub identity provider for tests.
//
// Provider serves discovery, JWKS, authorize, token, userinfo, end-session
// and the system registration endpoints from an httptest.Server. It signs
// RS256 tokens with key "k1", re-derives PKCE challenges on code exchange
// and counts hits per endpoint so tests can assert caching behaviour.
//
//	p := testutil.NewProvider(t)
//	client, _ := oidc.New(oidc.Config{Issuer: p.Issuer(), ClientID: p.ClientID})
//	token := p.AccessToken(nil)
package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// DefaultKeyID is the kid of the key every provider starts with.
const DefaultKeyID = "k1"

// Provider is a stub OIDC provider.
type Provider struct {
	// ClientID is the only client the token endpoint accepts. Defaults to "test-client".
	ClientID string
	// ClientSecret, when set, must be sent in the token request body.
	ClientSecret string
	// APIKey is the expected X-System-API-Key for registration.
	APIKey string
	// Subject is the sub claim of issued tokens. Defaults to "user-1".
	Subject string
	// Permissions are put in issued access tokens and userinfo.
	Permissions []string
	// OrganizationID is put in issued access tokens and userinfo.
	OrganizationID string
	// TokenTTL is the lifetime of issued access tokens. Defaults to one hour.
	TokenTTL time.Duration
	// RotateRefreshTokens issues a new refresh token on every refresh grant.
	RotateRefreshTokens bool

	server *httptest.Server

	mu             sync.Mutex
	keys           map[string]*rsa.PrivateKey
	published      []string
	codes          map[string]authRequest
	refreshTokens  map[string]bool
	accessTokens   map[string]bool
	registrations  []json.RawMessage
	lastTokenForm  url.Values
	failDiscovery  int
	failRegister   int
	omitEndSession bool

	discoveryHits atomic.Int64
	jwksHits      atomic.Int64
	tokenHits     atomic.Int64
	userInfoHits  atomic.Int64
	registerHits  atomic.Int64
}

type authRequest struct {
	clientID      string
	redirectURI   string
	challenge     string
	challengeMeth string
	nonce         string
	scope         string
}

// NewProvider starts a provider that is closed when the test ends.
func NewProvider(t testing.TB) *Provider {
	t.Helper()
	p := &Provider{
		ClientID:       "test-client",
		APIKey:         "test-api-key",
		Subject:        "user-1",
		OrganizationID: "org-1",
		Permissions:    []string{"impact:read"},
		TokenTTL:       time.Hour,
		keys:           make(map[string]*rsa.PrivateKey),
		codes:          make(map[string]authRequest),
		refreshTokens:  make(map[string]bool),
		accessTokens:   make(map[string]bool),
	}
	if _, err := p.AddKey(DefaultKeyID, true); err != nil {
		t.Fatalf("generate signing key: %v", err)
	}
	p.server = httptest.NewServer(p.routes())
	t.Cleanup(p.server.Close)
	return p
}

// Issuer returns the provider's base URL.
func (p *Provider) Issuer() string { return p.server.URL }

// URL joins path onto the issuer.
func (p *Provider) URL(path string) string { return p.server.URL + path }

// Client returns an HTTP client for the provider's server.
func (p *Provider) Client() *http.Client { return p.server.Client() }

// AddKey generates an RSA key under kid. Unpublished keys can sign tokens
// but are absent from the JWKS until Publish is called.
func (p *Provider) AddKey(kid string, publish bool) (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys[kid] = key
	if publish {
		p.published = append(p.published, kid)
	}
	return key, nil
}

// Publish adds kid to the served JWKS.
func (p *Provider) Publish(kid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, kid)
}

// FailDiscovery makes the next n discovery requests return 500.
func (p *Provider) FailDiscovery(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failDiscovery = n
}

// FailRegistrations makes the next n registration requests return 503.
func (p *Provider) FailRegistrations(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failRegister = n
}

// OmitEndSession removes end_session_endpoint from discovery.
func (p *Provider) OmitEndSession() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitEndSession = true
}

// DiscoveryHits returns the number of discovery requests served.
func (p *Provider) DiscoveryHits() int { return int(p.discoveryHits.Load()) }

// JWKSHits returns the number of JWKS requests served.
func (p *Provider) JWKSHits() int { return int(p.jwksHits.Load()) }

// TokenHits returns the number of token endpoint requests served.
func (p *Provider) TokenHits() int { return int(p.tokenHits.Load()) }

// UserInfoHits returns the number of userinfo requests served.
func (p *Provider) UserInfoHits() int { return int(p.userInfoHits.Load()) }

// RegisterHits returns the number of registration requests served.
func (p *Provider) RegisterHits() int { return int(p.registerHits.Load()) }

// LastTokenForm returns the form of the most recent token request.
func (p *Provider) LastTokenForm() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTokenForm
}

// Registrations returns the raw manifests received by the register endpoint.
func (p *Provider) Registrations() []json.RawMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]json.RawMessage(nil), p.registrations...)
}

// Sign signs claims with the key registered under kid.
func (p *Provider) Sign(kid string, claims jwt.MapClaims) (string, error) {
	p.mu.Lock()
	key, ok := p.keys[kid]
	p.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("testutil: unknown key %q", kid)
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	return tok.SignedString(key)
}

// Claims returns the default access token claims merged with overrides.
// An override with a nil value removes the claim.
func (p *Provider) Claims(overrides map[string]any) jwt.MapClaims {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":            p.Issuer(),
		"sub":            p.Subject,
		"aud":            p.ClientID,
		"iat":            now.Unix(),
		"exp":            now.Add(p.TokenTTL).Unix(),
		"email":          p.Subject + "@example.com",
		"name":           "Test User",
		"organizationId": p.OrganizationID,
		"scope":          "openid profile email",
		"permissions":    p.Permissions,
	}
	for k, v := range overrides {
		if v == nil {
			delete(claims, k)
			continue
		}
		claims[k] = v
	}
	return claims
}

// AccessToken signs the default claims merged with overrides using k1.
// It panics on signing failure, which only happens with a broken key.
func (p *Provider) AccessToken(overrides map[string]any) string {
	tok, err := p.Sign(DefaultKeyID, p.Claims(overrides))
	if err != nil {
		panic(err)
	}
	p.mu.Lock()
	p.accessTokens[tok] = true
	p.mu.Unlock()
	return tok
}

// IssueCode registers an authorization code as if the user had approved a
// login. challenge may be empty for clients that do not use PKCE.
func (p *Provider) IssueCode(redirectURI, challenge, nonce string) string {
	code := randomID()
	p.mu.Lock()
	p.codes[code] = authRequest{
		clientID:      p.ClientID,
		redirectURI:   redirectURI,
		challenge:     challenge,
		challengeMeth: "S256",
		nonce:         nonce,
		scope:         "openid profile email",
	}
	p.mu.Unlock()
	return code
}

// IssueRefreshToken registers a refresh token the token endpoint will accept.
func (p *Provider) IssueRefreshToken() string {
	rt := randomID()
	p.mu.Lock()
	p.refreshTokens[rt] = true
	p.mu.Unlock()
	return rt
}

func (p *Provider) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", p.handleDiscovery)
	mux.HandleFunc("GET /.well-known/jwks.json", p.handleJWKS)
	mux.HandleFunc("GET /oauth/authorize", p.handleAuthorize)
	mux.HandleFunc("POST /oauth/token", p.handleToken)
	mux.HandleFunc("GET /oauth/userinfo", p.handleUserInfo)
	mux.HandleFunc("GET /oauth/logout", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/systems/register", p.handleRegister)
	mux.HandleFunc("POST /api/systems/{systemId}/sync-functions", p.handleSyncFunctions)
	mux.HandleFunc("GET /api/validate/users/{userId}/systems/{systemId}/permissions", p.handlePermissions)
	return mux
}

func (p *Provider) handleDiscovery(w http.ResponseWriter, _ *http.Request) {
	p.discoveryHits.Add(1)
	p.mu.Lock()
	fail := p.failDiscovery > 0
	if fail {
		p.failDiscovery--
	}
	omitEndSession := p.omitEndSession
	p.mu.Unlock()
	if fail {
		http.Error(w, "discovery unavailable", http.StatusInternalServerError)
		return
	}

	doc := map[string]any{
		"issuer":                                p.Issuer(),
		"authorization_endpoint":                p.URL("/oauth/authorize"),
		"token_endpoint":                        p.URL("/oauth/token"),
		"userinfo_endpoint":                     p.URL("/oauth/userinfo"),
		"jwks_uri":                              p.URL("/.well-known/jwks.json"),
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"scopes_supported":                      []string{"openid", "profile", "email", "offline_access"},
		"response_types_supported":              []string{"code"},
		"grant_types_supported":                 []string{"authorization_code", "refresh_token"},
		"code_challenge_methods_supported":      []string{"S256"},
	}
	if !omitEndSession {
		doc["end_session_endpoint"] = p.URL("/oauth/logout")
	}
	writeJSON(w, http.StatusOK, doc)
}

func (p *Provider) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	p.jwksHits.Add(1)
	set := jwk.NewSet()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, kid := range p.published {
		key, err := jwk.Import(&p.keys[kid].PublicKey)
		if err == nil {
			err = key.Set(jwk.KeyIDKey, kid)
		}
		if err == nil {
			err = key.Set(jwk.AlgorithmKey, "RS256")
		}
		if err == nil {
			err = key.Set(jwk.KeyUsageKey, "sig")
		}
		if err == nil {
			err = set.AddKey(key)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	writeJSON(w, http.StatusOK, set)
}

// handleAuthorize approves every request and redirects back with a code.
func (p *Provider) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	redirectURI := q.Get("redirect_uri")
	target, err := url.Parse(redirectURI)
	if err != nil || redirectURI == "" {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}
	back := target.Query()
	if q.Get("client_id") != p.ClientID {
		back.Set("error", "unauthorized_client")
		back.Set("error_description", "unknown client")
	} else {
		code := randomID()
		p.mu.Lock()
		p.codes[code] = authRequest{
			clientID:      q.Get("client_id"),
			redirectURI:   redirectURI,
			challenge:     q.Get("code_challenge"),
			challengeMeth: q.Get("code_challenge_method"),
			nonce:         q.Get("nonce"),
			scope:         q.Get("scope"),
		}
		p.mu.Unlock()
		back.Set("code", code)
	}
	if state := q.Get("state"); state != "" {
		back.Set("state", state)
	}
	target.RawQuery = back.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (p *Provider) handleToken(w http.ResponseWriter, r *http.Request) {
	p.tokenHits.Add(1)
	if err := r.ParseForm(); err != nil {
		tokenFailure(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	p.mu.Lock()
	p.lastTokenForm = r.PostForm
	p.mu.Unlock()

	if r.PostForm.Get("client_id") != p.ClientID {
		tokenFailure(w, http.StatusUnauthorized, "invalid_client", "unknown client")
		return
	}
	if p.ClientSecret != "" && r.PostForm.Get("client_secret") != p.ClientSecret {
		tokenFailure(w, http.StatusUnauthorized, "invalid_client", "bad client secret")
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		p.exchangeCode(w, r.PostForm)
	case "refresh_token":
		p.refresh(w, r.PostForm)
	default:
		tokenFailure(w, http.StatusBadRequest, "unsupported_grant_type", r.PostForm.Get("grant_type"))
	}
}

func (p *Provider) exchangeCode(w http.ResponseWriter, form url.Values) {
	code := form.Get("code")
	p.mu.Lock()
	req, ok := p.codes[code]
	delete(p.codes, code)
	p.mu.Unlock()

	switch {
	case !ok:
		tokenFailure(w, http.StatusBadRequest, "invalid_grant", "unknown or used authorization code")
		return
	case req.redirectURI != "" && form.Get("redirect_uri") != req.redirectURI:
		tokenFailure(w, http.StatusBadRequest, "invalid_grant", "redirect_uri mismatch")
		return
	case req.challenge != "" && challengeOf(form.Get("code_verifier")) != req.challenge:
		tokenFailure(w, http.StatusBadRequest, "invalid_grant", "PKCE verification failed")
		return
	}
	p.issueTokens(w, req.nonce, randomID())
}

func (p *Provider) refresh(w http.ResponseWriter, form url.Values) {
	rt := form.Get("refresh_token")
	p.mu.Lock()
	ok := p.refreshTokens[rt]
	if ok && p.RotateRefreshTokens {
		delete(p.refreshTokens, rt)
	}
	p.mu.Unlock()
	if !ok {
		tokenFailure(w, http.StatusBadRequest, "invalid_grant", "refresh token revoked")
		return
	}
	next := ""
	if p.RotateRefreshTokens {
		next = randomID()
	}
	p.issueTokens(w, "", next)
}

func (p *Provider) issueTokens(w http.ResponseWriter, nonce, refreshToken string) {
	access := p.AccessToken(nil)
	idClaims := p.Claims(map[string]any{"permissions": nil, "scope": nil})
	if nonce != "" {
		idClaims["nonce"] = nonce
	}
	idToken, err := p.Sign(DefaultKeyID, idClaims)
	if err != nil {
		tokenFailure(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	body := map[string]any{
		"access_token": access,
		"token_type":   "Bearer",
		"expires_in":   int(p.TokenTTL.Seconds()),
		"id_token":     idToken,
		"scope":        "openid profile email",
	}
	if refreshToken != "" {
		p.mu.Lock()
		p.refreshTokens[refreshToken] = true
		p.mu.Unlock()
		body["refresh_token"] = refreshToken
	}
	writeJSON(w, http.StatusOK, body)
}

func (p *Provider) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	p.userInfoHits.Add(1)
	if !p.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_token", "error_description": "unknown access token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sub":            p.Subject,
		"email":          p.Subject + "@example.com",
		"email_verified": true,
		"name":           "Test User",
		"given_name":     "Test",
		"family_name":    "User",
		"organizationId": p.OrganizationID,
		"permissions":    p.Permissions,
		"locale":         "en",
	})
}

func (p *Provider) handleRegister(w http.ResponseWriter, r *http.Request) {
	p.registerHits.Add(1)
	p.mu.Lock()
	fail := p.failRegister > 0
	if fail {
		p.failRegister--
	}
	p.mu.Unlock()
	if fail {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "registry unavailable"})
		return
	}
	if r.Header.Get("X-System-API-Key") != p.APIKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid system API key"})
		return
	}
	p.recordManifest(w, r, "registered")
}

func (p *Provider) handleSyncFunctions(w http.ResponseWriter, r *http.Request) {
	if !p.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
		return
	}
	p.recordManifest(w, r, "synced")
}

func (p *Provider) recordManifest(w http.ResponseWriter, r *http.Request, verb string) {
	var manifest struct {
		System struct {
			ID string `json:"id"`
		} `json:"system"`
		Functions []json.RawMessage `json:"functions"`
	}
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	if err := json.Unmarshal(raw, &manifest); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	systemID := manifest.System.ID
	if id := r.PathValue("systemId"); id != "" {
		systemID = id
	}
	p.mu.Lock()
	p.registrations = append(p.registrations, raw)
	p.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"systemId":         systemID,
		"message":          "system " + verb,
		"functionsCreated": len(manifest.Functions),
		"functionsUpdated": 0,
		"functionsRemoved": 0,
	})
}

func (p *Provider) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if !p.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"userId":      r.PathValue("userId"),
		"systemId":    r.PathValue("systemId"),
		"permissions": p.Permissions,
		"roles":       []string{"member"},
	})
}

func (p *Provider) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accessTokens[token]
}

func challengeOf(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func tokenFailure(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{"error": code, "error_description": description})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func randomID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
