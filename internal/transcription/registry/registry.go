// Package registry holds named transcription backend factories and caches
// the engines they create.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/voicetyped/voicequery/internal/transcription/engine"
)

// ErrUnknownBackend is returned by Create for unregistered names.
var ErrUnknownBackend = errors.New("unknown transcription backend")

// Factory builds an engine from a flat config map. The "model" key carries
// the requested model; the other keys are backend specific.
type Factory func(config map[string]string) (engine.Engine, error)

// Registry maps backend names to factories. Backends register themselves
// from init, so the zero registry is never used directly.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// ASR is the process-wide registry the backend packages register into.
var ASR = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. It panics on a nil factory or a duplicate name,
// both of which are programming errors in a backend's init.
func (r *Registry) Register(name string, factory Factory) {
	if factory == nil {
		panic("registry: nil factory for " + name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[name]; dup {
		panic("registry: backend registered twice: " + name)
	}
	r.factories[name] = factory
}

// Create builds an engine with the named factory.
func (r *Registry) Create(name string, config map[string]string) (engine.Engine, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownBackend, name, strings.Join(r.List(), ", "))
	}
	e, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("create %s engine: %w", name, err)
	}
	return e, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// List returns the registered names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
