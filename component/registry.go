package component

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/kbukum/nupidentity/logger"
)

// stopTimeout bounds each component's Stop.
const stopTimeout = 10 * time.Second

type slot struct {
	Component
	running bool
}

// Registry starts components in registration order and stops the ones
// that started in reverse order.
type Registry struct {
	mu    sync.RWMutex
	slots []*slot
	log   *logger.Logger
}

// NewRegistry returns an empty registry. A nil logger uses the global one.
func NewRegistry(log *logger.Logger) *Registry {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Registry{log: log.WithComponent("lifecycle")}
}

// Register appends c. Register a component after the ones it depends on.
func (r *Registry) Register(c Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.find(c.Name()) != nil {
		return fmt.Errorf("component %q is already registered", c.Name())
	}
	r.slots = append(r.slots, &slot{Component: c})
	return nil
}

// Get returns the component registered under name, or nil.
func (r *Registry) Get(name string) Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s := r.find(name); s != nil {
		return s.Component
	}
	return nil
}

func (r *Registry) find(name string) *slot {
	i := slices.IndexFunc(r.slots, func(s *slot) bool { return s.Name() == name })
	if i < 0 {
		return nil
	}
	return r.slots[i]
}

// StartAll starts components in order and returns the first failure.
// Components started before the failure are left running for StopAll.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.slots {
		if err := s.Start(ctx); err != nil {
			r.log.Error("Component failed to start", logger.ErrorFields(s.Name(), err))
			return fmt.Errorf("start %s: %w", s.Name(), err)
		}
		s.running = true
		r.log.Debug("Component started", logger.Fields(logger.FieldComponent, s.Name()))
	}
	r.log.Info("Components started", logger.Fields("count", len(r.slots)))
	return nil
}

// StopAll stops running components in reverse order and joins their errors.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, s := range slices.Backward(r.slots) {
		if !s.running {
			continue
		}
		stopCtx, cancel := context.WithTimeout(ctx, stopTimeout)
		err := s.Stop(stopCtx)
		cancel()
		s.running = false
		if err != nil {
			r.log.Error("Component failed to stop", logger.ErrorFields(s.Name(), err))
			errs = append(errs, fmt.Errorf("stop %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// HealthAll returns every component's health in registration order.
func (r *Registry) HealthAll(ctx context.Context) []Health {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Health, 0, len(r.slots))
	for _, s := range r.slots {
		out = append(out, s.Health(ctx))
	}
	return out
}
