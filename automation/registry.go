package automation

import (
	"fmt"
	"sync"
)

// Registry manages named Orchestrator implementations so deployments can
// select an engine (standard, noop, or a substitute) by configuration.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Orchestrator
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]Orchestrator)}
}

// Register adds an engine under name.
// Returns an error if an engine with the same name is already registered.
func (r *Registry) Register(name string, o Orchestrator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.engines[name]; exists {
		return fmt.Errorf("engine %q already registered", name)
	}
	r.engines[name] = o
	return nil
}

// Get returns an engine by name.
func (r *Registry) Get(name string) (Orchestrator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.engines[name]
	return o, ok
}

// Names returns the registered engine names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]string, 0, len(r.engines))
	for name := range r.engines {
		result = append(result, name)
	}
	return result
}

// Unregister removes an engine by name.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.engines[name]; !exists {
		return fmt.Errorf("engine %q not found", name)
	}
	delete(r.engines, name)
	return nil
}
