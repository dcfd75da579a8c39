package main

import (
	"fmt"

	"github.com/kbukum/nupidentity/auth/oidc"
	"github.com/kbukum/nupidentity/config"
	"github.com/kbukum/nupidentity/observability"
	"github.com/kbukum/nupidentity/server"
	"github.com/kbukum/nupidentity/server/authroutes"
	"github.com/kbukum/nupidentity/version"
)

const serviceName = "nupidentity-example"

// AppConfig is the example service configuration. Every field can be set
// from config.yml or overridden by environment, e.g. IDENTITY_ISSUER.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Identity      oidc.Config         `yaml:"identity" mapstructure:"identity"`
	Server        server.Config       `yaml:"server" mapstructure:"server"`
	Routes        authroutes.Options  `yaml:"routes" mapstructure:"routes"`
	Sync          SyncConfig          `yaml:"sync" mapstructure:"sync"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

// SyncConfig controls startup registration of the system manifest.
type SyncConfig struct {
	oidc.SyncOptions `yaml:",inline" mapstructure:",squash"`

	SystemID   string `yaml:"system_id" mapstructure:"system_id"`
	SystemName string `yaml:"system_name" mapstructure:"system_name"`
}

// Enabled reports whether a registration key was configured.
func (s SyncConfig) Enabled() bool {
	return s.APIKey != ""
}

// ObservabilityConfig selects tracing and metrics exporters.
type ObservabilityConfig struct {
	Tracing bool                       `yaml:"tracing" mapstructure:"tracing"`
	Tracer  observability.TracerConfig `yaml:"tracer" mapstructure:"tracer"`
	Meter   observability.MeterConfig  `yaml:"meter" mapstructure:"meter"`
}

func (c *AppConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	if c.Name == "" {
		c.Name = serviceName
	}
	if c.Version == "" {
		c.Version = version.Get().String()
	}
	c.Identity.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Routes.ApplyDefaults()
	c.Routes.Secure = c.Routes.Secure || c.IsProduction()
	if c.Sync.SystemID == "" {
		c.Sync.SystemID = c.Name
	}
	if c.Sync.SystemName == "" {
		c.Sync.SystemName = c.Name
	}

	tracer := observability.DefaultTracerConfig(c.Name)
	if c.Observability.Tracer.Endpoint == "" {
		c.Observability.Tracer.Endpoint = tracer.Endpoint
		c.Observability.Tracer.Insecure = tracer.Insecure
	}
	if c.Observability.Tracer.SampleRate == 0 {
		c.Observability.Tracer.SampleRate = tracer.SampleRate
	}
	c.Observability.Tracer.ServiceName = c.Name
	c.Observability.Tracer.ServiceVersion = c.Version
	c.Observability.Tracer.Environment = c.Environment

	meter := observability.DefaultMeterConfig(c.Name)
	if c.Observability.Meter.Exporter == "" {
		c.Observability.Meter.Exporter = meter.Exporter
	}
	if c.Observability.Meter.Endpoint == "" {
		c.Observability.Meter.Endpoint = meter.Endpoint
		c.Observability.Meter.Insecure = meter.Insecure
	}
	if c.Observability.Meter.Interval == 0 {
		c.Observability.Meter.Interval = meter.Interval
	}
	c.Observability.Meter.ServiceName = c.Name
	c.Observability.Meter.ServiceVersion = c.Version
	c.Observability.Meter.Environment = c.Environment

	c.Server.Tracing = c.Server.Tracing || c.Observability.Tracing
}

func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Identity.Validate(); err != nil {
		return fmt.Errorf("identity: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	return nil
}

// manifest describes the functions this service guards with permissions.
func (c *AppConfig) manifest() oidc.SystemManifest {
	return oidc.SystemManifest{
		System: oidc.SystemInfo{
			ID:          c.Sync.SystemID,
			Name:        c.Sync.SystemName,
			Description: "Example service protected by nupidentity",
		},
		Functions: []oidc.SystemFunction{
			{Key: permReportsRead, Name: "View reports", Category: "reports"},
			{Key: permReportsWrite, Name: "Create reports", Category: "reports"},
		},
	}
}

func loadConfig(configFile, envFile string) (*AppConfig, error) {
	var opts []config.LoaderOption
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	if envFile != "" {
		opts = append(opts, config.WithEnvFile(envFile))
	}
	var cfg AppConfig
	if err := config.LoadConfig(serviceName, &cfg, opts...); err != nil {
		return nil, err
	}
	return &cfg, nil
}
