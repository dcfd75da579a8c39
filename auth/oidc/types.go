package oidc

import (
	"encoding/json"
)

// DiscoveryDocument is the provider's OpenID configuration.
type DiscoveryDocument struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	UserInfoEndpoint                  string   `json:"userinfo_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	EndSessionEndpoint                string   `json:"end_session_endpoint,omitempty"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported,omitempty"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
}

// JWK is a single public key from the provider's key set.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Kid string `json:"kid"`
	Alg string `json:"alg,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

// JWKS is the provider's published key set.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// TokenSet is the token endpoint response.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// UserInfo is the userinfo endpoint response. Raw holds every returned claim.
type UserInfo struct {
	Subject        string         `json:"sub"`
	Email          string         `json:"email,omitempty"`
	EmailVerified  bool           `json:"email_verified,omitempty"`
	Name           string         `json:"name,omitempty"`
	GivenName      string         `json:"given_name,omitempty"`
	FamilyName     string         `json:"family_name,omitempty"`
	Picture        string         `json:"picture,omitempty"`
	OrganizationID string         `json:"organizationId,omitempty"`
	Permissions    []string       `json:"permissions,omitempty"`
	Raw            map[string]any `json:"-"`
}

// UnmarshalJSON decodes the standard claims and keeps the full claim set in Raw.
func (u *UserInfo) UnmarshalJSON(data []byte) error {
	type plain UserInfo
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &p.Raw); err != nil {
		return err
	}
	*u = UserInfo(p)
	return nil
}

// MarshalJSON emits Raw merged with the typed fields.
func (u UserInfo) MarshalJSON() ([]byte, error) {
	type plain UserInfo
	typed, err := json.Marshal(plain(u))
	if err != nil {
		return nil, err
	}
	if len(u.Raw) == 0 {
		return typed, nil
	}
	merged := make(map[string]any, len(u.Raw))
	for k, v := range u.Raw {
		merged[k] = v
	}
	var fields map[string]any
	if err := json.Unmarshal(typed, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// AuthorizationOptions customise the authorization URL. Empty fields fall
// back to the client configuration.
type AuthorizationOptions struct {
	RedirectURI         string
	Scopes              []string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
	Audience            string
	ExtraParams         map[string]string
}

// LogoutOptions customise the end-session URL.
type LogoutOptions struct {
	IDTokenHint           string
	PostLogoutRedirectURI string
	State                 string
}

// SystemManifest describes a system and the functions it exposes for permission assignment.
type SystemManifest struct {
	System    SystemInfo       `json:"system" validate:"required"`
	Functions []SystemFunction `json:"functions" validate:"dive"`
}

// SystemInfo identifies a registered system.
type SystemInfo struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
	BaseURL     string `json:"baseUrl,omitempty" validate:"omitempty,url"`
}

// SystemFunction is a permission-bearing capability of a system.
type SystemFunction struct {
	Key         string `json:"key" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}

// SystemRegistrationResult is returned by register and sync calls.
type SystemRegistrationResult struct {
	Success          bool   `json:"success"`
	SystemID         string `json:"systemId"`
	Message          string `json:"message,omitempty"`
	FunctionsCreated int    `json:"functionsCreated"`
	FunctionsUpdated int    `json:"functionsUpdated"`
	FunctionsRemoved int    `json:"functionsRemoved"`
}

// UserSystemPermissions lists what a user may do in a system.
type UserSystemPermissions struct {
	UserID      string   `json:"userId"`
	SystemID    string   `json:"systemId"`
	Permissions []string `json:"permissions"`
	Roles       []string `json:"roles,omitempty"`
}
