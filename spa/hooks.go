package spa

import (
	"github.com/kbukum/nupidentity/auth/oidc"
	"github.com/kbukum/nupidentity/authz"
)

// User returns the authenticated user, or nil.
func (p *Provider) User() *oidc.UserInfo {
	return p.State().User
}

// IsAuthenticated reports whether a session is established.
func (p *Provider) IsAuthenticated() bool {
	return p.State().IsAuthenticated
}

// AccessToken returns the in-memory access token, or "".
func (p *Provider) AccessToken() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.accessToken
}

// Permissions decodes the permissions claim of the current access token.
// The result is empty, never nil, when there is no token or no claim.
func (p *Provider) Permissions() []string {
	token := p.AccessToken()
	if token == "" {
		return []string{}
	}
	claims, err := oidc.DecodeUnverified(token)
	if err != nil {
		return []string{}
	}
	return claims.Permissions
}

func (p *Provider) HasPermission(perm string) bool {
	return authz.HasPermission(p.Permissions(), perm)
}

func (p *Provider) HasAllPermissions(perms ...string) bool {
	return authz.HasAll(p.Permissions(), perms...)
}

func (p *Provider) HasAnyPermission(perms ...string) bool {
	return authz.HasAny(p.Permissions(), perms...)
}
