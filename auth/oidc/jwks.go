package oidc

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
)

// JWKSCache is a fetched key set and the time it was fetched.
type JWKSCache struct {
	Keys      JWKS
	FetchedAt time.Time
	TTL       time.Duration

	set jwk.Set
}

// IsExpired reports whether the cached set is older than its TTL at now.
// A nil cache is always expired.
func (c *JWKSCache) IsExpired(now time.Time) bool {
	return c == nil || !now.Before(c.FetchedAt.Add(c.TTL))
}

// Lookup returns the RSA public key with the given kid.
func (c *JWKSCache) Lookup(kid string) (*rsa.PublicKey, bool) {
	if c == nil || c.set == nil {
		return nil, false
	}
	key, ok := c.set.LookupKeyID(kid)
	if !ok {
		return nil, false
	}
	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return nil, false
	}
	pub, ok := raw.(*rsa.PublicKey)
	return pub, ok
}

// parseJWKS builds a cache entry from a JWKS document. Keys that cannot be
// decoded are dropped so one unsupported entry does not hide the rest;
// tokens are only ever resolved by kid.
func parseJWKS(body []byte, fetchedAt time.Time, ttl time.Duration) (*JWKSCache, error) {
	set, err := jwk.Parse(body, jwk.WithIgnoreParseError(true))
	if err != nil {
		return nil, fmt.Errorf("parse key set: %w", err)
	}
	var keys JWKS
	if err := json.Unmarshal(body, &keys); err != nil {
		return nil, fmt.Errorf("decode key set: %w", err)
	}
	return &JWKSCache{Keys: keys, FetchedAt: fetchedAt, TTL: ttl, set: set}, nil
}

// keyStore holds the current JWKSCache. Refresh is the only way it changes.
type keyStore struct {
	mu    sync.RWMutex
	cache *JWKSCache
	load  func(ctx context.Context) (*JWKSCache, error)
}

// Current returns the cached key set, which may be nil or expired.
func (s *keyStore) Current() *JWKSCache {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache
}

// Refresh fetches the key set and replaces the cache. On failure the
// previous cache is kept.
func (s *keyStore) Refresh(ctx context.Context) (*JWKSCache, error) {
	fresh, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cache = fresh
	s.mu.Unlock()
	return fresh, nil
}
