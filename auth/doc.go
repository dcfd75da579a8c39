// Package auth provides authentication building blocks for a NuPIdentity
// relying party.
//
// Subpackages:
//
//   - auth/oidc: identity client: discovery, JWKS verification, PKCE, grants, system registration
//   - auth/oidc/testutil: stub identity provider for tests
//   - auth/authctx: request context propagation for the authenticated principal
//
// The top-level package holds TokenValidator, the contract the server
// middleware depends on for bearer token validation.
//
// For permission and scope checks, see github.com/kbukum/nupidentity/authz.
package auth
