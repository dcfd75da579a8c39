package bootstrap

import "github.com/kbukum/nupidentity/config"

// Config is what NewApp needs from an application's config type. Embedding
// config.ServiceConfig provides all three methods; types that add sections
// override ApplyDefaults and Validate and call the embedded ones first.
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
