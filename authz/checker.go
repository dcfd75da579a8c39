package authz

// Set is a permission list with flat membership checks.
//
//	perms := authz.Set(payload.Permissions)
//	if !perms.HasAll("impact:read", "impact:write") { ... }
type Set []string

// Has reports whether the set contains p.
func (s Set) Has(p string) bool { return HasPermission(s, p) }

// HasAll reports whether the set contains every permission.
func (s Set) HasAll(perms ...string) bool { return HasAll(s, perms...) }

// HasAny reports whether the set contains at least one permission.
func (s Set) HasAny(perms ...string) bool { return HasAny(s, perms...) }

// Missing returns the permissions absent from the set.
func (s Set) Missing(perms ...string) []string { return Missing(s, perms...) }
