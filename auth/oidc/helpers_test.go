package oidc

import (
	"testing"

	"github.com/kbukum/nupidentity/auth/oidc/testutil"
	"github.com/kbukum/nupidentity/logger"
)

const testRedirectURI = "http://app.test/auth/callback"

func newTestClient(t *testing.T, p *testutil.Provider, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithLogger(logger.Nop())}, opts...)
	c, err := New(Config{
		Issuer:       p.Issuer() + "/",
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURI:  testRedirectURI,
	}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}
