package tracking

import (
	"strings"
	"sync"
)

// Registry maps handler identifiers to declared module classifications.
// It replaces runtime annotation reflection with an explicit table
// populated at startup, before any request is classified. Lookup resolves
// the exact "Controller@method" entry first, then falls back to a
// controller-level (group) entry covering every method of that handler.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Classification
	groups   map[string]Classification
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Classification),
		groups:   make(map[string]Classification),
	}
}

// RegisterHandler declares a mapping for one handler, identified as
// "Controller@method". The mapping format is "module[.submodule][|label]".
func (r *Registry) RegisterHandler(handlerID, mapping string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[handlerID] = ParseMapping(mapping)
}

// RegisterGroup declares a mapping for every method of a controller.
func (r *Registry) RegisterGroup(controller, mapping string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[controller] = ParseMapping(mapping)
}

// Lookup resolves a controller action against the registry.
func (r *Registry) Lookup(controllerAction string) (Classification, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.handlers[controllerAction]; ok {
		return c, true
	}

	controller := controllerAction
	if i := strings.Index(controllerAction, "@"); i >= 0 {
		controller = controllerAction[:i]
	}
	c, ok := r.groups[controller]
	return c, ok
}
