// Package component defines the lifecycle contract shared by the HTTP server,
// the identity client cache and the telemetry providers, plus a Registry
// that starts them in order and stops them in reverse.
package component
