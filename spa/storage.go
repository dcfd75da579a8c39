package spa

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Session storage keys.
const (
	KeyAccessToken  = "nupidentity_access_token"
	KeyRefreshToken = "nupidentity_refresh_token"
	KeyIDToken      = "nupidentity_id_token"
	KeyState        = "nupidentity_state"
	KeyCodeVerifier = "nupidentity_code_verifier"
	KeyNonce        = "nupidentity_nonce"
	KeyDiscovery    = "nupidentity_discovery"
)

const (
	discoveryTTL = 5 * time.Minute
	transientTTL = 10 * time.Minute
)

var (
	tokenKeys     = []string{KeyAccessToken, KeyRefreshToken, KeyIDToken}
	transientKeys = []string{KeyState, KeyCodeVerifier, KeyNonce}
)

// Storage is the provider's session storage.
type Storage interface {
	Get(key string) (string, bool)
	// Set stores value. A ttl <= 0 keeps the entry until it is removed.
	Set(key, value string, ttl time.Duration)
	Remove(key string)
}

// MemoryStorage is an in-process Storage with per-entry expiry.
type MemoryStorage struct {
	c *gocache.Cache
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{c: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (s *MemoryStorage) Get(key string) (string, bool) {
	v, ok := s.c.Get(key)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

func (s *MemoryStorage) Set(key, value string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	s.c.Set(key, value, ttl)
}

func (s *MemoryStorage) Remove(key string) {
	s.c.Delete(key)
}

// Len returns the number of unexpired entries.
func (s *MemoryStorage) Len() int {
	return len(s.c.Items())
}

func removeAll(s Storage, keys []string) {
	for _, k := range keys {
		s.Remove(k)
	}
}
