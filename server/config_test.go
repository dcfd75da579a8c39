package server

import (
	"testing"
	"time"

	"github.com/kbukum/nupidentity/server/middleware"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{CORS: middleware.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}}}
	cfg.ApplyDefaults()

	if cfg.Port != 8080 || cfg.ReadTimeout != 15*time.Second || cfg.IdleTimeout != time.Minute {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 {
		t.Errorf("explicit origins were replaced: %v", cfg.CORS.AllowedOrigins)
	}
	if len(cfg.CORS.ExposedHeaders) != 1 || cfg.CORS.ExposedHeaders[0] != middleware.RequestIDHeader {
		t.Errorf("ExposedHeaders = %v", cfg.CORS.ExposedHeaders)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"port too large", func(c *Config) { c.Port = 70000 }, true},
		{"negative timeout", func(c *Config) { c.WriteTimeout = -time.Second }, true},
		{"credentials with wildcard", func(c *Config) { c.CORS.AllowCredentials = true }, true},
		{"credentials with explicit origin", func(c *Config) {
			c.CORS.AllowCredentials = true
			c.CORS.AllowedOrigins = []string{"https://app.example.com"}
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{}
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
