package strategy

import (
	"sort"
	"strings"
	"sync"

	"github.com/quantfold/cta/errs"
)

// Registry maps strategy class names to factories. It is populated by an
// explicit registration step at process startup; the dispatch core never
// loads code dynamically.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty strategy class registry.
func NewRegistry() *Registry {
	return &Registry{
		mu:        sync.RWMutex{},
		factories: make(map[string]Factory),
	}
}

// Register adds a strategy class under the given name.
func (r *Registry) Register(className string, factory Factory) error {
	name := strings.TrimSpace(className)
	if name == "" {
		return errs.New("strategy/registry", errs.CodeInvalid, errs.WithMessage("class name required"))
	}
	if factory == nil {
		return errs.New("strategy/registry", errs.CodeInvalid, errs.WithMessage("factory required for class "+name))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return errs.New("strategy/registry", errs.CodeConflict, errs.WithMessage("class already registered: "+name))
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates a registered class for the given instance.
func (r *Registry) Create(className string, trader Trader, name, symbol string, setting map[string]any) (Strategy, bool) {
	r.mu.RLock()
	factory, ok := r.factories[strings.TrimSpace(className)]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return factory(trader, name, symbol, setting), true
}

// Names returns the registered class names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// DefaultParameters returns the default parameter values of a class by
// instantiating a throwaway unbound instance.
func (r *Registry) DefaultParameters(className string) (map[string]any, bool) {
	s, ok := r.Create(className, nil, "", "", nil)
	if !ok || s == nil {
		return nil, false
	}
	return s.Parameters(), true
}
