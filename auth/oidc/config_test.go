package oidc

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{Issuer: " https://id.example.com/ ", ClientID: "web"}
	cfg.ApplyDefaults()

	if cfg.Issuer != "https://id.example.com" {
		t.Errorf("Issuer = %q", cfg.Issuer)
	}
	if !reflect.DeepEqual(cfg.Scopes, []string{"openid", "profile", "email"}) {
		t.Errorf("Scopes = %v", cfg.Scopes)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("HTTPTimeout = %v", cfg.HTTPTimeout)
	}
	if cfg.JWKSCacheTTL != 5*time.Minute {
		t.Errorf("JWKSCacheTTL = %v", cfg.JWKSCacheTTL)
	}

	cfg.Scopes[0] = "changed"
	if DefaultScopes[0] != "openid" {
		t.Error("ApplyDefaults must copy DefaultScopes")
	}
}

func TestNew_ValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"missing issuer", Config{ClientID: "web"}, "issuer is required"},
		{"missing client id", Config{Issuer: "https://id.example.com"}, "client_id is required"},
		{"both missing", Config{}, "issuer is required; client_id is required"},
		{"issuer not a url", Config{Issuer: "not a url", ClientID: "web"}, "issuer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should contain %q", err, tt.want)
			}
		})
	}
}

func TestConfig_CacheKey(t *testing.T) {
	a := Config{Issuer: "https://id.example.com/", ClientID: "web"}
	b := Config{Issuer: "https://id.example.com", ClientID: "web"}
	if a.CacheKey() != b.CacheKey() {
		t.Errorf("trailing slash should not change the key: %q vs %q", a.CacheKey(), b.CacheKey())
	}
	c := Config{Issuer: "https://id.example.com", ClientID: "mobile"}
	if a.CacheKey() == c.CacheKey() {
		t.Error("different clients must not share a key")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("NUPIDENTITY_ISSUER", "https://id.example.com")
	t.Setenv("NUPIDENTITY_CLIENT_ID", "web")
	t.Setenv("NUPIDENTITY_CLIENT_SECRET", "s3cret")
	t.Setenv("NUPIDENTITY_SCOPES", "openid email")
	t.Setenv("NUPIDENTITY_HTTP_TIMEOUT", "5s")
	t.Setenv("NUPIDENTITY_TLS_CA_FILE", "/etc/nupidentity/ca.pem")

	cfg, err := ConfigFromEnv(DefaultEnvPrefix)
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.Issuer != "https://id.example.com" || cfg.ClientID != "web" || cfg.ClientSecret != "s3cret" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Scopes, []string{"openid", "email"}) {
		t.Errorf("Scopes = %v", cfg.Scopes)
	}
	if cfg.HTTPTimeout != 5*time.Second {
		t.Errorf("HTTPTimeout = %v", cfg.HTTPTimeout)
	}
	if cfg.TLS.CAFile != "/etc/nupidentity/ca.pem" {
		t.Errorf("TLS.CAFile = %q", cfg.TLS.CAFile)
	}
}

func TestConfigFromEnv_BadDuration(t *testing.T) {
	t.Setenv("NUPIDENTITY_HTTP_TIMEOUT", "soon")
	if _, err := ConfigFromEnv(DefaultEnvPrefix); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
