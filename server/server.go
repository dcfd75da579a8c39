package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/nupidentity/component"
	"github.com/kbukum/nupidentity/logger"
	"github.com/kbukum/nupidentity/server/endpoint"
	"github.com/kbukum/nupidentity/server/middleware"
)

const (
	componentName   = "http-server"
	shutdownTimeout = 5 * time.Second
)

var _ component.Component = (*Server)(nil)

// Server is the gin HTTP server that hosts the auth routes and the
// protected API. It is a component.Component: register it last so the
// identity client cache is warm before the port opens.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	handler    http.Handler
	config     Config
	log        *logger.Logger
	serving    atomic.Bool
}

// New builds the server. No middleware or routes are installed; call
// ApplyDefaults (or ApplyMiddleware) before mounting routes.
func New(cfg Config, log *logger.Logger) *Server {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	var handler http.Handler = engine
	if cfg.Tracing {
		handler = otelhttp.NewHandler(handler, "http.server",
			otelhttp.WithFilter(func(r *http.Request) bool { return !endpoint.IsProbe(r.URL.Path) }))
	}
	handler = h2c.NewHandler(handler, &http2.Server{MaxConcurrentStreams: 250, IdleTimeout: 2 * time.Minute})

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		engine:  engine,
		handler: handler,
		config:  cfg,
		log:     log.WithComponent("server"),
	}
}

// GinEngine returns the engine for route registration.
func (s *Server) GinEngine() *gin.Engine {
	return s.engine
}

// Handler returns the root handler including the h2c and tracing wrappers.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the listen address; after Start it is the bound address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ApplyMiddleware installs recovery, request ID, CORS and request logging.
func (s *Server) ApplyMiddleware() {
	s.engine.Use(
		middleware.Recovery(s.log),
		middleware.RequestID(),
		middleware.GinCORS(&s.config.CORS),
		middleware.GinRequestLogger(s.log),
	)
}

// RegisterDefaultEndpoints mounts /health, /alive, /ready and /metrics. A
// nil metrics handler serves the default Prometheus registry.
func (s *Server) RegisterDefaultEndpoints(serviceName string, checker endpoint.HealthChecker, metrics http.Handler) {
	s.engine.GET("/health", endpoint.Health(serviceName, checker))
	s.engine.GET("/alive", endpoint.Liveness(serviceName))
	s.engine.GET("/ready", endpoint.Readiness(serviceName, checker))
	s.engine.GET("/metrics", endpoint.Metrics(metrics))
}

// ApplyDefaults is ApplyMiddleware followed by RegisterDefaultEndpoints.
func (s *Server) ApplyDefaults(serviceName string, checker endpoint.HealthChecker, metrics http.Handler) {
	s.ApplyMiddleware()
	s.RegisterDefaultEndpoints(serviceName, checker, metrics)
}

// Name implements component.Component.
func (s *Server) Name() string { return componentName }

// Start binds the port and serves in the background. It returns once the
// listener is bound, so a failure to bind aborts application startup.
func (s *Server) Start(_ context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to bind %s: %w", s.httpServer.Addr, err)
	}
	s.httpServer.Addr = listener.Addr().String()
	s.serving.Store(true)

	go func() {
		defer s.serving.Store(false)
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server stopped unexpectedly", logger.ErrorFields("serve", err))
		}
	}()

	s.log.Info("HTTP server listening", logger.Fields("addr", s.httpServer.Addr))
	return nil
}

// Stop drains in-flight requests for up to five seconds.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}

// Health reports healthy while the listener is serving.
func (s *Server) Health(_ context.Context) component.Health {
	if !s.serving.Load() {
		return component.Health{Name: componentName, Status: component.StatusUnhealthy, Message: "not serving"}
	}
	return component.Health{Name: componentName, Status: component.StatusHealthy, Message: s.httpServer.Addr}
}
