package oidc

import (
	"context"
	"math"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// GrantClient runs the authorization_code and refresh_token grants against
// a token endpoint. Credentials are sent in the form body.
type GrantClient struct {
	conf oauth2.Config
	hc   *http.Client
}

// NewGrantClient creates a grant client. clientSecret may be empty for public clients.
func NewGrantClient(clientID, clientSecret, authURL, tokenURL string, hc *http.Client) *GrantClient {
	return &GrantClient{
		conf: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		hc: hc,
	}
}

// ExchangeCode redeems an authorization code. codeVerifier is sent when non-empty.
func (g *GrantClient) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*TokenSet, error) {
	conf := g.conf
	conf.RedirectURL = redirectURI

	var opts []oauth2.AuthCodeOption
	if codeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(codeVerifier))
	}

	tok, err := conf.Exchange(g.context(ctx), code, opts...)
	if err != nil {
		return nil, tokenError("authorization_code", err)
	}
	return tokenSet(tok), nil
}

// Refresh redeems a refresh token. When the provider does not rotate the
// refresh token, the returned set carries the one passed in.
func (g *GrantClient) Refresh(ctx context.Context, refreshToken string) (*TokenSet, error) {
	tok, err := g.conf.TokenSource(g.context(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, tokenError("refresh_token", err)
	}
	return tokenSet(tok), nil
}

func (g *GrantClient) context(ctx context.Context) context.Context {
	if g.hc == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, g.hc)
}

func tokenSet(tok *oauth2.Token) *TokenSet {
	ts := &TokenSet{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		ts.ExpiresIn = int64(math.Round(time.Until(tok.Expiry).Seconds()))
	}
	if v, ok := tok.Extra("id_token").(string); ok {
		ts.IDToken = v
	}
	if v, ok := tok.Extra("scope").(string); ok {
		ts.Scope = v
	}
	return ts
}
