package collector

import (
	"context"
	"testing"
)

// mockSource for testing
type mockSource struct {
	name string
}

func (m *mockSource) Name() string          { return m.name }
func (m *mockSource) Init(cfg Config) error { return nil }
func (m *mockSource) FetchTable(ctx context.Context, ds Dataset) (*Table, error) {
	return NewTable(ds, nil, nil), nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	mock := &mockSource{name: "mock"}
	r.Register(mock)

	s, ok := r.Get("mock")
	if !ok {
		t.Fatal("expected to find registered source")
	}

	if s.Name() != "mock" {
		t.Errorf("expected name 'mock', got '%s'", s.Name())
	}
}

func TestRegistry_GetMissing(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Get("nope"); ok {
		t.Error("expected miss for unregistered source")
	}
}

func TestRegistry_GetAll(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockSource{name: "a"})
	r.Register(&mockSource{name: "b"})

	all := r.GetAll()
	if len(all) != 2 {
		t.Errorf("expected 2 sources, got %d", len(all))
	}
}
