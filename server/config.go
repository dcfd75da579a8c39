package server

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/kbukum/nupidentity/server/middleware"
	"github.com/kbukum/nupidentity/validation"
)

// Config configures the HTTP listener that serves the auth routes, the
// protected API and the probe endpoints.
type Config struct {
	Host string `yaml:"host" mapstructure:"host"`
	// Port 0 means 8080. Tests that need an ephemeral port use
	// server/testutil.
	Port         int                   `yaml:"port" mapstructure:"port" validate:"min=0,max=65535"`
	ReadTimeout  time.Duration         `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration         `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration         `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	CORS         middleware.CORSConfig `yaml:"cors" mapstructure:"cors"`
	// Tracing wraps the handler in an otelhttp server span.
	Tracing bool `yaml:"tracing" mapstructure:"tracing"`
}

var defaultCORSHeaders = []string{"Origin", "Accept", "Content-Type", "Authorization", middleware.RequestIDHeader}

func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	setDuration(&c.ReadTimeout, 15*time.Second)
	setDuration(&c.WriteTimeout, 15*time.Second)
	setDuration(&c.IdleTimeout, time.Minute)

	cors := &c.CORS
	if cors.AllowedOrigins == nil {
		cors.AllowedOrigins = []string{"*"}
	}
	if cors.AllowedMethods == nil {
		cors.AllowedMethods = []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		}
	}
	if cors.AllowedHeaders == nil {
		cors.AllowedHeaders = slices.Clone(defaultCORSHeaders)
	}
	if cors.ExposedHeaders == nil {
		cors.ExposedHeaders = []string{middleware.RequestIDHeader}
	}
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d == 0 {
		*d = def
	}
}

func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	for name, d := range map[string]time.Duration{
		"read_timeout":  c.ReadTimeout,
		"write_timeout": c.WriteTimeout,
		"idle_timeout":  c.IdleTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("server: %s must not be negative (got %s)", name, d)
		}
	}
	if c.CORS.AllowCredentials && slices.Contains(c.CORS.AllowedOrigins, "*") {
		return errors.New("server: cors.allowed_origins must list explicit origins when allow_credentials is set")
	}
	return nil
}
