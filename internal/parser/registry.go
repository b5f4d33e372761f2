package parser

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Factory builds an extractor bound to logger.
type Factory func(logger *slog.Logger) Extractor

// Registry maps case-insensitive names to extractor factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(strings.TrimSpace(name))] = f
}

// Lookup returns a fresh extractor for name. Unknown and empty names report
// false; they are not errors.
func (r *Registry) Lookup(name string, logger *slog.Logger) (Extractor, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, false
	}

	r.mu.RLock()
	f, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return f(logger), true
}

// Names lists registered extractor names in sorted order.
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

var defaultRegistry = func() *Registry {
	r := NewRegistry()
	r.Register(DellOutletName, func(logger *slog.Logger) Extractor {
		return NewDellOutletExtractor(logger)
	})
	return r
}()

// Default returns the registry holding the built-in extractors.
func Default() *Registry {
	return defaultRegistry
}

// Lookup resolves name against the built-in extractors.
func Lookup(name string, logger *slog.Logger) (Extractor, bool) {
	return defaultRegistry.Lookup(name, logger)
}
