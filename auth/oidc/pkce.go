package oidc

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// CodeChallengeMethodS256 is the only PKCE method this package generates.
const CodeChallengeMethodS256 = "S256"

// GenerateCodeVerifier returns 32 random bytes, base64url-encoded without padding.
func GenerateCodeVerifier() (string, error) {
	return randomString(32)
}

// GenerateCodeChallenge derives the S256 challenge: base64url(SHA256(verifier)).
func GenerateCodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// GenerateState returns 16 random bytes, base64url-encoded, for CSRF protection.
func GenerateState() (string, error) {
	return randomString(16)
}

// GenerateNonce returns 16 random bytes, base64url-encoded, for ID token replay protection.
func GenerateNonce() (string, error) {
	return randomString(16)
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// LoginParams is the state, nonce and PKCE pair generated for one login attempt.
type LoginParams struct {
	State         string
	Nonce         string
	CodeVerifier  string
	CodeChallenge string
}

// NewLoginParams generates fresh login parameters.
func NewLoginParams() (*LoginParams, error) {
	state, err := GenerateState()
	if err != nil {
		return nil, err
	}
	nonce, err := GenerateNonce()
	if err != nil {
		return nil, err
	}
	verifier, err := GenerateCodeVerifier()
	if err != nil {
		return nil, err
	}
	return &LoginParams{
		State:         state,
		Nonce:         nonce,
		CodeVerifier:  verifier,
		CodeChallenge: GenerateCodeChallenge(verifier),
	}, nil
}
