package component

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/kbukum/nupidentity/logger"
)

type mockComponent struct {
	name     string
	startErr error
	stopErr  error
	health   Health
	order    *[]string
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(ctx context.Context) error {
	if m.order != nil {
		*m.order = append(*m.order, "start:"+m.name)
	}
	return m.startErr
}
func (m *mockComponent) Stop(ctx context.Context) error {
	if m.order != nil {
		*m.order = append(*m.order, "stop:"+m.name)
	}
	return m.stopErr
}
func (m *mockComponent) Health(ctx context.Context) Health {
	return m.health
}

func newTestRegistry() *Registry {
	return NewRegistry(logger.Nop())
}

func TestRegisterDuplicate(t *testing.T) {
	r := newTestRegistry()
	if err := r.Register(&mockComponent{name: "identity-clients"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(&mockComponent{name: "identity-clients"}); err == nil {
		t.Error("expected error for duplicate registration")
	}
}

func TestGet(t *testing.T) {
	r := newTestRegistry()
	c := &mockComponent{name: "http-server"}
	_ = r.Register(c)

	if got := r.Get("http-server"); got != c {
		t.Errorf("expected registered component, got %v", got)
	}
	if r.Get("missing") != nil {
		t.Error("expected nil for unknown component")
	}
}

func TestStartStopOrder(t *testing.T) {
	var order []string
	r := newTestRegistry()
	_ = r.Register(&mockComponent{name: "telemetry", order: &order})
	_ = r.Register(&mockComponent{name: "identity-clients", order: &order})
	_ = r.Register(&mockComponent{name: "http-server", order: &order})

	ctx := context.Background()
	if err := r.StartAll(ctx); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	if err := r.StopAll(ctx); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}

	want := []string{
		"start:telemetry", "start:identity-clients", "start:http-server",
		"stop:http-server", "stop:identity-clients", "stop:telemetry",
	}
	if !slices.Equal(order, want) {
		t.Errorf("unexpected order:\n got %v\nwant %v", order, want)
	}
}

func TestStartAllErrorStopsOnlyStarted(t *testing.T) {
	var order []string
	r := newTestRegistry()
	_ = r.Register(&mockComponent{name: "a", order: &order})
	_ = r.Register(&mockComponent{name: "b", order: &order, startErr: errors.New("discovery failed")})
	_ = r.Register(&mockComponent{name: "c", order: &order})

	if err := r.StartAll(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	order = order[:0]
	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	if !slices.Equal(order, []string{"stop:a"}) {
		t.Errorf("expected only started components stopped, got %v", order)
	}
}

func TestStopAllJoinsErrors(t *testing.T) {
	r := newTestRegistry()
	_ = r.Register(&mockComponent{name: "a", stopErr: errors.New("a failed")})
	_ = r.Register(&mockComponent{name: "b", stopErr: errors.New("b failed")})
	_ = r.StartAll(context.Background())

	err := r.StopAll(context.Background())
	if err == nil {
		t.Fatal("expected joined stop errors")
	}
	if got := err.Error(); !strings.Contains(got, "a failed") || !strings.Contains(got, "b failed") {
		t.Errorf("expected both errors, got %q", got)
	}
}

func TestHealthAll(t *testing.T) {
	r := newTestRegistry()
	_ = r.Register(&mockComponent{name: "a", health: Health{Name: "a", Status: StatusHealthy}})
	_ = r.Register(&mockComponent{name: "b", health: Health{Name: "b", Status: StatusDegraded, Message: "no clients"}})

	got := r.HealthAll(context.Background())
	if len(got) != 2 {
		t.Fatalf("expected 2 health entries, got %d", len(got))
	}
	if got[1].Status != StatusDegraded || got[1].Message != "no clients" {
		t.Errorf("unexpected health: %+v", got[1])
	}
}
