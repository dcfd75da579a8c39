// Package httpclient is the outbound HTTP layer used to talk to an identity
// provider: discovery, JWKS, userinfo and the system management endpoints.
//
// Requests carry JSON or form bodies, optional bearer or API key auth, and
// are traced through an otelhttp transport. Non-2xx responses are returned
// together with a classified *Error whose ProviderMessage surfaces the
// provider's error_description when present.
//
//	c, _ := httpclient.New(httpclient.Config{BaseURL: issuer})
//	resp, err := httpclient.Get[Discovery](c, ctx, "/.well-known/openid-configuration")
//
// Retries are opt-in via Config.Retry and use resilience.Retry.
package httpclient
