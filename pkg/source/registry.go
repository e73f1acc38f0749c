package source

import (
	"log/slog"
	"sort"
	"sync"
)

// Factory builds a Source from already-validated configuration.
type Factory func() (Source, error)

// Registry maps source names to factories so the entry point can select the
// configured source by name.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *slog.Logger
}

// NewRegistry creates a new source registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		factories: make(map[string]Factory),
		logger:    logger,
	}
}

// RegisterFactory adds a factory under name.
// Returns an error if the name is already taken.
func (r *Registry) RegisterFactory(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return ErrDuplicateSource(name)
	}
	r.factories[name] = factory

	r.logger.Debug("registered source factory", slog.String("source", name))
	return nil
}

// Create builds the source registered under name.
func (r *Registry) Create(name string) (Source, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrSourceNotFound(name)
	}
	return factory()
}

// Names returns the registered source names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
