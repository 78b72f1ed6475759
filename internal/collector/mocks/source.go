// Package mocks provides an in-memory collector.TableSource for tests.
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/newthinker/stock-mcp/internal/collector"
	"github.com/newthinker/stock-mcp/internal/core"
)

// MockSource serves canned tables by dataset name and counts calls.
type MockSource struct {
	mu sync.Mutex

	tables map[string][]collector.Row
	errs   map[string]error
	// failures left before a dataset starts succeeding; -1 fails forever
	failures map[string]int
	calls    map[string]int
	delays   map[string]time.Duration
}

// New creates an empty MockSource.
func New() *MockSource {
	return &MockSource{
		tables:   make(map[string][]collector.Row),
		errs:     make(map[string]error),
		failures: make(map[string]int),
		calls:    make(map[string]int),
		delays:   make(map[string]time.Duration),
	}
}

// Name returns the source identifier.
func (m *MockSource) Name() string {
	return "mock"
}

// Init accepts any configuration.
func (m *MockSource) Init(cfg collector.Config) error {
	return nil
}

// SetRows sets the rows returned for a dataset name.
func (m *MockSource) SetRows(dataset string, rows ...collector.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[dataset] = rows
}

// FailWith makes the next n calls for dataset return err. n < 0 fails forever.
func (m *MockSource) FailWith(dataset string, n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[dataset] = err
	m.failures[dataset] = n
}

// SetDelay makes every call for dataset take d, or less if ctx ends first.
func (m *MockSource) SetDelay(dataset string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[dataset] = d
}

// Calls returns how many times dataset was fetched.
func (m *MockSource) Calls(dataset string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[dataset]
}

// FetchTable returns the canned rows for ds.Name.
func (m *MockSource) FetchTable(ctx context.Context, ds collector.Dataset) (*collector.Table, error) {
	m.mu.Lock()
	m.calls[ds.Name]++
	delay := m.delays[ds.Name]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if n := m.failures[ds.Name]; n != 0 {
		if n > 0 {
			m.failures[ds.Name] = n - 1
		}
		return nil, m.errs[ds.Name]
	}

	rows, ok := m.tables[ds.Name]
	if !ok || len(rows) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("%s has no rows", ds))
	}

	copied := make([]collector.Row, len(rows))
	for i, r := range rows {
		c := make(collector.Row, len(r))
		for k, v := range r {
			c[k] = v
		}
		copied[i] = c
	}
	return collector.NewTable(ds, nil, copied), nil
}
