package collector

import "sync"

// Registry manages table sources
type Registry struct {
	mu      sync.RWMutex
	sources map[string]TableSource
}

// NewRegistry creates a new source registry
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]TableSource),
	}
}

// Register adds a source to the registry
func (r *Registry) Register(s TableSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.Name()] = s
}

// Get retrieves a source by name
func (r *Registry) Get(name string) (TableSource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[name]
	return s, ok
}

// GetAll returns all registered sources
func (r *Registry) GetAll() []TableSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]TableSource, 0, len(r.sources))
	for _, s := range r.sources {
		result = append(result, s)
	}
	return result
}
