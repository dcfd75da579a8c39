package oidc

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPayload holds the claims of an access or ID token. Absent
// permissions decode as an empty slice.
type TokenPayload struct {
	jwt.RegisteredClaims

	// UserIDClaim is the provider's "userId" claim.
	UserIDClaim string `json:"userId,omitempty"`
	// LegacyID is the older "id" claim.
	LegacyID       string   `json:"id,omitempty"`
	Email          string   `json:"email,omitempty"`
	Name           string   `json:"name,omitempty"`
	OrganizationID string   `json:"organizationId,omitempty"`
	Nonce          string   `json:"nonce,omitempty"`
	Scope          string   `json:"scope,omitempty"`
	Permissions    []string `json:"permissions"`

	// Claims holds every claim in the token, including the ones above.
	Claims map[string]any `json:"-"`
}

// UnmarshalJSON decodes the typed claims and keeps the raw claim map.
func (p *TokenPayload) UnmarshalJSON(data []byte) error {
	type plain TokenPayload
	var tp plain
	if err := json.Unmarshal(data, &tp); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &tp.Claims); err != nil {
		return err
	}
	if tp.Permissions == nil {
		tp.Permissions = []string{}
	}
	*p = TokenPayload(tp)
	return nil
}

// UserID returns the canonical user identifier: userId, then id, then sub.
func (p *TokenPayload) UserID() string {
	switch {
	case p.UserIDClaim != "":
		return p.UserIDClaim
	case p.LegacyID != "":
		return p.LegacyID
	default:
		return p.Subject
	}
}

// Scopes splits the space-delimited scope claim.
func (p *TokenPayload) Scopes() []string {
	return strings.Fields(p.Scope)
}

// HasScope reports whether the scope claim contains s.
func (p *TokenPayload) HasScope(s string) bool {
	for _, have := range p.Scopes() {
		if have == s {
			return true
		}
	}
	return false
}

// DecodeUnverified parses a JWT's claims without checking its signature or
// expiry. Use it only for data the caller already trusts, such as a nonce
// in an ID token just received over TLS or a browser's own stored token.
func DecodeUnverified(token string) (*TokenPayload, error) {
	if strings.Count(token, ".") != 2 {
		return nil, fmt.Errorf("%w: expected 3 parts", ErrMalformedToken)
	}
	payload := &TokenPayload{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	return payload, nil
}
