// Package authz provides the permission checks used by the auth middleware
// and the browser-side provider.
//
// Permissions are opaque strings carried in the token's "permissions"
// claim. Matching is flat string equality: there are no wildcards, roles
// or hierarchies. Scope checks split the space-delimited "scope" claim.
//
// This module has zero external dependencies (standard library only).
//
// Usage:
//
//	granted := payload.Permissions
//	authz.HasAll(granted, "impact:read", "impact:write")
//	authz.HasAny(granted, "admin", "impact:approve")
//	authz.Missing(granted, "impact:write") // ["impact:write"] when absent
//	authz.MissingScopes(payload.Scope, "openid", "email")
package authz
