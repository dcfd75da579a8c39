package authz

import "strings"

// HasPermission reports whether granted contains required exactly.
// Matching is flat: no wildcards, no hierarchy.
func HasPermission(granted []string, required string) bool {
	for _, g := range granted {
		if g == required {
			return true
		}
	}
	return false
}

// HasAll reports whether granted contains every required permission.
// An empty required list is always satisfied.
func HasAll(granted []string, required ...string) bool {
	return len(Missing(granted, required...)) == 0
}

// HasAny reports whether granted contains at least one required permission.
// An empty required list is never satisfied.
func HasAny(granted []string, required ...string) bool {
	set := toSet(granted)
	for _, r := range required {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}

// Missing returns the required permissions absent from granted, in the
// order they were required. The result is non-nil so it encodes as [].
func Missing(granted []string, required ...string) []string {
	set := toSet(granted)
	missing := []string{}
	for _, r := range required {
		if _, ok := set[r]; !ok {
			missing = append(missing, r)
		}
	}
	return missing
}

// MissingScopes returns the required scopes absent from a space-delimited
// scope claim.
func MissingScopes(scopeClaim string, required ...string) []string {
	return Missing(strings.Fields(scopeClaim), required...)
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
