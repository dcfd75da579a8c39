// Package logger provides structured logging using zerolog.
//
// Loggers carry the service name and may be tagged per component; fields are
// passed as maps so call sites stay independent of zerolog's event API.
//
// # Usage
//
//	log := logger.NewDefault("impact-api").WithComponent("oidc")
//	log.Info("discovery loaded", logger.Fields(logger.FieldIssuer, issuer))
package logger
