package testutil

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/nupidentity/component"
	"github.com/kbukum/nupidentity/logger"
	"github.com/kbukum/nupidentity/server"
	"github.com/kbukum/nupidentity/server/endpoint"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var _ component.Component = (*Component)(nil)

// Component serves a fully configured server.Server (middleware stack and
// default endpoints) from an httptest.Server on a loopback port. Routes
// added to GinEngine, before or after Start, run behind the middleware.
type Component struct {
	checker endpoint.HealthChecker

	mu  sync.RWMutex
	srv *server.Server
	ts  *httptest.Server
}

// NewComponent creates a stopped component. checker feeds /health and
// /ready and may be nil.
func NewComponent(checker endpoint.HealthChecker) *Component {
	c := &Component{checker: checker}
	c.srv = c.build()
	return c
}

func (c *Component) build() *server.Server {
	cfg := server.Config{Host: "127.0.0.1"}
	cfg.ApplyDefaults()
	srv := server.New(cfg, logger.Nop())
	srv.ApplyDefaults(c.Name(), c.checker, nil)
	return srv
}

// GinEngine returns the engine of the current server.
func (c *Component) GinEngine() *gin.Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.srv.GinEngine()
}

// Server returns the current *server.Server.
func (c *Component) Server() *server.Server {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.srv
}

// BaseURL returns "http://127.0.0.1:PORT", or "" before Start.
func (c *Component) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.ts == nil {
		return ""
	}
	return c.ts.URL
}

// Name implements component.Component.
func (c *Component) Name() string { return "server-test" }

// Start implements component.Component. Starting twice is an error.
func (c *Component) Start(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ts != nil {
		return errors.New("server-test: already started")
	}
	c.ts = httptest.NewServer(c.srv.Handler())
	return nil
}

// Stop implements component.Component. Stopping a stopped component is a no-op.
func (c *Component) Stop(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ts != nil {
		c.ts.Close()
		c.ts = nil
	}
	return nil
}

// Health implements component.Component.
func (c *Component) Health(context.Context) component.Health {
	if c.BaseURL() == "" {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy, Message: c.BaseURL()}
}

// Reset swaps in a fresh server, dropping every route registered since
// NewComponent. The component must be running; it gets a new port.
func (c *Component) Reset(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ts == nil {
		return errors.New("server-test: not started")
	}
	c.ts.Close()
	c.srv = c.build()
	c.ts = httptest.NewServer(c.srv.Handler())
	return nil
}
