package oidc

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/kbukum/nupidentity/httpclient"
	"github.com/kbukum/nupidentity/validation"
)

// DefaultEnvPrefix is the environment variable prefix used by ConfigFromEnv callers.
const DefaultEnvPrefix = "NUPIDENTITY_"

const (
	defaultHTTPTimeout  = 10 * time.Second
	defaultJWKSCacheTTL = 5 * time.Minute
)

// DefaultScopes are requested when Config.Scopes is empty.
var DefaultScopes = []string{"openid", "profile", "email"}

// Config configures an identity client. Loadable from YAML via mapstructure
// tags or from the environment via env tags.
type Config struct {
	// Issuer is the provider base URL. A trailing slash is trimmed.
	Issuer string `mapstructure:"issuer" env:"ISSUER" validate:"required,url"`

	// ClientID is the OAuth2 client identifier.
	ClientID string `mapstructure:"client_id" env:"CLIENT_ID" validate:"required"`

	// ClientSecret is sent in the token request body when set. Leave empty for public clients.
	ClientSecret string `mapstructure:"client_secret" env:"CLIENT_SECRET"`

	// RedirectURI is the default callback URL.
	RedirectURI string `mapstructure:"redirect_uri" env:"REDIRECT_URI" validate:"omitempty,url"`

	// Scopes requested during login. Defaults to DefaultScopes.
	Scopes []string `mapstructure:"scopes" env:"SCOPES" envSeparator:" "`

	// Audience is forwarded as the "audience" authorization parameter when set.
	Audience string `mapstructure:"audience" env:"AUDIENCE"`

	// PostLogoutRedirectURI is the default target after provider logout.
	PostLogoutRedirectURI string `mapstructure:"post_logout_redirect_uri" env:"POST_LOGOUT_REDIRECT_URI" validate:"omitempty,url"`

	// HTTPTimeout bounds every outbound call. Defaults to 10s.
	HTTPTimeout time.Duration `mapstructure:"http_timeout" env:"HTTP_TIMEOUT"`

	// JWKSCacheTTL is how long fetched signing keys are trusted. Defaults to 5m.
	JWKSCacheTTL time.Duration `mapstructure:"jwks_cache_ttl" env:"JWKS_CACHE_TTL"`

	// TLS configures trust for providers behind a private CA or requiring mTLS.
	TLS httpclient.TLSConfig `mapstructure:"tls" envPrefix:"TLS_"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields and normalizes the issuer.
func (c *Config) ApplyDefaults() {
	c.Issuer = strings.TrimRight(strings.TrimSpace(c.Issuer), "/")
	if len(c.Scopes) == 0 {
		c.Scopes = append([]string(nil), DefaultScopes...)
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
	if c.JWKSCacheTTL == 0 {
		c.JWKSCacheTTL = defaultJWKSCacheTTL
	}
}

// Validate checks required fields. The error wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// CacheKey identifies the (issuer, client) pair a client instance is scoped to.
func (c Config) CacheKey() string {
	return strings.TrimRight(c.Issuer, "/") + "|" + c.ClientID
}

// ConfigFromEnv reads a Config from environment variables named
// prefix+ISSUER, prefix+CLIENT_ID, and so on. Scopes are space separated.
func ConfigFromEnv(prefix string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: prefix}); err != nil {
		return Config{}, fmt.Errorf("%w: parse env: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}
