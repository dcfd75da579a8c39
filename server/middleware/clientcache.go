package middleware

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/kbukum/nupidentity/auth/oidc"
	"github.com/kbukum/nupidentity/component"
	"github.com/kbukum/nupidentity/logger"
)

const clientCacheName = "oidc-client-cache"

var _ component.Component = (*ClientCache)(nil)

// ClientCache shares one discovered *oidc.Client per (issuer, client ID)
// across requests. Initialization runs at most once per key at a time:
// concurrent first requests wait on the same discovery call. Failed
// initializations are not cached.
type ClientCache struct {
	clients sync.Map // CacheKey -> *oidc.Client
	group   singleflight.Group
	opts    []oidc.Option
	warm    []oidc.Config
	log     *logger.Logger
}

// NewClientCache creates an empty cache. opts are passed to every oidc.New call.
func NewClientCache(log *logger.Logger, opts ...oidc.Option) *ClientCache {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &ClientCache{
		opts: opts,
		log:  log.WithComponent("client-cache"),
	}
}

// Warm registers configurations that Start initializes eagerly.
func (cc *ClientCache) Warm(cfgs ...oidc.Config) *ClientCache {
	cc.warm = append(cc.warm, cfgs...)
	return cc
}

// Get returns the client for cfg, creating and discovering it on first use.
func (cc *ClientCache) Get(ctx context.Context, cfg oidc.Config) (*oidc.Client, error) {
	key := cfg.CacheKey()
	if v, ok := cc.clients.Load(key); ok {
		return v.(*oidc.Client), nil
	}

	v, err, shared := cc.group.Do(key, func() (any, error) {
		if v, ok := cc.clients.Load(key); ok {
			return v, nil
		}
		client, err := oidc.New(cfg, cc.opts...)
		if err != nil {
			return nil, err
		}
		// Shared by every waiter on key, so detached from this caller's
		// cancellation. The client's HTTP timeout bounds it.
		if _, err := client.Discover(context.WithoutCancel(ctx)); err != nil {
			return nil, err
		}
		cc.clients.Store(key, client)
		cc.log.Info("identity client initialized", logger.Fields(
			logger.FieldIssuer, client.Issuer(),
			logger.FieldClientID, cfg.ClientID,
		))
		return client, nil
	})
	if err != nil {
		cc.log.WithContext(ctx).Error("identity client initialization failed", logger.Fields(
			logger.FieldIssuer, cfg.Issuer,
			logger.FieldError, err.Error(),
			"shared", shared,
		))
		return nil, err
	}
	return v.(*oidc.Client), nil
}

// Len returns the number of initialized clients.
func (cc *ClientCache) Len() int {
	n := 0
	cc.clients.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Name implements component.Component.
func (cc *ClientCache) Name() string { return clientCacheName }

// Start initializes every warm configuration. The first failure aborts startup.
func (cc *ClientCache) Start(ctx context.Context) error {
	for _, cfg := range cc.warm {
		if _, err := cc.Get(ctx, cfg); err != nil {
			return fmt.Errorf("warm identity client %s: %w", cfg.CacheKey(), err)
		}
	}
	return nil
}

// Stop drops every cached client.
func (cc *ClientCache) Stop(_ context.Context) error {
	cc.clients.Range(func(key, _ any) bool {
		cc.clients.Delete(key)
		return true
	})
	return nil
}

// Health reports degraded while a warm configuration has no client yet.
func (cc *ClientCache) Health(_ context.Context) component.Health {
	n := cc.Len()
	h := component.Health{
		Name:    clientCacheName,
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d client(s) initialized", n),
	}
	for _, cfg := range cc.warm {
		if _, ok := cc.clients.Load(cfg.CacheKey()); !ok {
			h.Status = component.StatusDegraded
			break
		}
	}
	return h
}
