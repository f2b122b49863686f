package hydrate

import (
	"fmt"

	"github.com/strata-dev/strata/pkg/tree"
)

// Instance is live behavior attached to one placeholder node.
type Instance interface {
	// Dispose releases the instance. Called when its node is removed
	// or replaced.
	Dispose()
}

// ActivatorFunc constructs live behavior for a placeholder node from
// the constructor arguments captured at render time.
type ActivatorFunc func(node *tree.Node, args map[string]any) (Instance, error)

// ActivatorRegistry maps bundle locators to activators.
type ActivatorRegistry struct {
	activators map[string]ActivatorFunc
}

// NewActivatorRegistry creates an empty registry.
func NewActivatorRegistry() *ActivatorRegistry {
	return &ActivatorRegistry{activators: make(map[string]ActivatorFunc)}
}

// Register binds an activator to a bundle locator.
func (r *ActivatorRegistry) Register(bundle string, fn ActivatorFunc) error {
	if bundle == "" {
		return fmt.Errorf("hydrate: empty bundle locator")
	}
	if _, exists := r.activators[bundle]; exists {
		return fmt.Errorf("hydrate: bundle %q already registered", bundle)
	}
	r.activators[bundle] = fn
	return nil
}

// Lookup returns the activator for a bundle locator.
func (r *ActivatorRegistry) Lookup(bundle string) (ActivatorFunc, bool) {
	fn, ok := r.activators[bundle]
	return fn, ok
}
