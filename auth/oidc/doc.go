// Package oidc is the NuPIdentity relying-party client.
//
// A Client is scoped to one (issuer, client ID) pair and covers the whole
// relying-party surface:
//
//   - Discover memoizes the provider's OpenID configuration
//   - GetJWKS caches the signing keys for Config.JWKSCacheTTL
//   - VerifyToken checks RS256 tokens: structure, alg, exp, iss, then the
//     signature against the key named by kid, refreshing the key set at
//     most once per call when kid is unknown
//   - AuthorizationURL, ExchangeCode, RefreshToken, UserInfo and LogoutURL
//     drive the authorization-code flow with PKCE
//   - RegisterSystem, SyncFunctions and UserPermissions talk to the
//     provider's system registry
//
// Errors wrap the package sentinels (ErrTokenExpired, ErrDiscovery, ...)
// so callers use errors.Is; AsAppError maps them to HTTP-ready AppErrors.
//
// Usage:
//
//	client, err := oidc.New(oidc.Config{
//	    Issuer:   "https://id.example.com",
//	    ClientID: "impact-web",
//	})
//	payload, err := client.VerifyToken(ctx, bearer)
//
//	// Login
//	if _, err := client.Discover(ctx); err != nil { ... }
//	lp, _ := oidc.NewLoginParams()
//	authURL, _ := client.AuthorizationURL(oidc.AuthorizationOptions{
//	    State: lp.State, Nonce: lp.Nonce, CodeChallenge: lp.CodeChallenge,
//	})
//
//	// Callback
//	tokens, err := client.ExchangeCode(ctx, code, "", lp.CodeVerifier)
package oidc
