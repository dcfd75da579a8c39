package config

import (
	"fmt"

	"github.com/kbukum/nupidentity/logger"
	"github.com/kbukum/nupidentity/validation"
)

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// ServiceConfig is the part of the config every service has. Embed it with
// squash so its keys sit at the top level of the file:
//
//	type AppConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Identity oidc.Config `yaml:"identity" mapstructure:"identity"`
//	}
type ServiceConfig struct {
	Name        string        `yaml:"name" mapstructure:"name" validate:"required"`
	Environment string        `yaml:"environment" mapstructure:"environment" validate:"oneof=development staging production"`
	Version     string        `yaml:"version" mapstructure:"version"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`
}

func (c *ServiceConfig) GetServiceConfig() *ServiceConfig { return c }

// ApplyDefaults selects development when no environment is set, which also
// turns on Debug.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = EnvDevelopment
	}
	c.Debug = c.Debug || c.Environment == EnvDevelopment
	c.Logging.ApplyDefaults()
}

func (c *ServiceConfig) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// IsProduction decides whether session cookies are issued Secure.
func (c *ServiceConfig) IsProduction() bool {
	return c.Environment == EnvProduction
}
