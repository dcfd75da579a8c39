package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/nupidentity/authz"
	apperrors "github.com/kbukum/nupidentity/errors"
)

// EnsureScope requires every scope in the token's scope claim. Mount it
// after RequireAuth: without an attached user it answers 401.
func EnsureScope(scopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := UserFrom(c)
		if !ok {
			abortWith(c, apperrors.Unauthorized(""))
			return
		}
		if missing := authz.MissingScopes(user.Scope, scopes...); len(missing) > 0 {
			abortWith(c, apperrors.InsufficientScope(missing))
			return
		}
		c.Next()
	}
}

// EnsureOrganization requires the user to belong to an organization and,
// when orgID is non-empty, to that one.
func EnsureOrganization(orgID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := UserFrom(c)
		if !ok {
			abortWith(c, apperrors.Unauthorized(""))
			return
		}
		switch {
		case user.OrganizationID == "":
			abortWith(c, apperrors.OrganizationRequired("User is not a member of any organization"))
			return
		case orgID != "" && user.OrganizationID != orgID:
			abortWith(c, apperrors.OrganizationRequired("Access denied for this organization").
				WithDetail("required", orgID))
			return
		}
		c.Next()
	}
}

func (a *Authenticator) permissionGate(gate string, required []string, anyOf bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		user, ok := UserFrom(c)
		if !ok {
			abortWith(c, apperrors.Unauthorized(""))
			return
		}

		allowed := authz.HasAll(user.Permissions, required...)
		if anyOf {
			allowed = authz.HasAny(user.Permissions, required...)
		}
		if !allowed {
			a.metrics.RecordDecision(ctx, gate, "denied")
			abortWith(c, apperrors.InsufficientPermissions(required, authz.Missing(user.Permissions, required...)))
			return
		}
		a.metrics.RecordDecision(ctx, gate, "allowed")
		c.Next()
	}
}
