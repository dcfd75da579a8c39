// Package server runs the Gin engine that hosts the auth routes and the
// protected API. The Server is a component.Component, so bootstrap starts
// it after the OIDC client cache and stops it first.
//
// ApplyMiddleware installs, outermost first, Recovery, RequestID, CORS and
// GinRequestLogger from server/middleware. Token checks and permission
// gates are added per route through middleware.Authenticator, and the
// cookie login flow is mounted with server/authroutes.
//
// RegisterDefaultEndpoints adds /health, /alive, /ready and /metrics from
// server/endpoint. Readiness only fails when a component is down.
package server
