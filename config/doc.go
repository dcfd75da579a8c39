// Package config loads service configuration with Viper.
//
// A config.yml provides the base, a .env file (godotenv) and the process
// environment override it. Nested keys are addressed from the environment with
// underscores, so IDENTITY_ISSUER sets identity.issuer.
//
// # Usage
//
//	var cfg AppConfig
//	if err := config.LoadConfig("impact-api", &cfg); err != nil { ... }
//	cfg.ApplyDefaults()
package config
