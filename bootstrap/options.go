package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/nupidentity/logger"
)

// Option overrides an App setting that would otherwise come from config.
type Option func(*settings)

type settings struct {
	log             *logger.Logger
	gracefulTimeout time.Duration
}

func newSettings(opts []Option) settings {
	s := settings{gracefulTimeout: defaultGracefulTimeout}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithLogger replaces the logger built from the Logging config section.
func WithLogger(l *logger.Logger) Option {
	return func(s *settings) { s.log = l }
}

// WithGracefulTimeout bounds OnStop hooks plus component shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.gracefulTimeout = d
		}
	}
}

// Hook runs at a fixed point of the lifecycle. A failing start or ready
// hook aborts startup.
type Hook func(ctx context.Context) error

// OnStart runs after components start and before the configure phase.
// Registering the system manifest with the identity provider goes here.
func (a *App[C]) OnStart(hooks ...Hook) { a.onStart = append(a.onStart, hooks...) }

// OnReady runs once startup has finished.
func (a *App[C]) OnReady(hooks ...Hook) { a.onReady = append(a.onReady, hooks...) }

// OnStop runs at shutdown before components stop.
func (a *App[C]) OnStop(hooks ...Hook) { a.onStop = append(a.onStop, hooks...) }

func runHooks(ctx context.Context, phase string, hooks []Hook) error {
	for i, h := range hooks {
		if err := h(ctx); err != nil {
			return fmt.Errorf("%s hook #%d: %w", phase, i+1, err)
		}
	}
	return nil
}
