package fallback

import (
	"fmt"
	"sync"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
)

// Registry is an explicitly constructed map of named chains. There is no
// package-level instance; callers create a registry and pass it to whoever
// needs one so tests can run isolated instances.
type Registry struct {
	mu     sync.RWMutex
	chains map[string]*Chain
	logger logging.Logger
}

// RegistryOptions holds configuration overrides passed to NewRegistry.
type RegistryOptions struct {
	// Logger is handed to chains created through Register.
	Logger logging.Logger
}

// NewRegistry constructs an empty chain registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{chains: make(map[string]*Chain), logger: opts.Logger}
}

// Register creates a chain under the given name, or returns the existing one:
// duplicate registration is a no-op yielding the same instance, so concurrent
// components can race to create a shared chain safely. The strategy argument
// is ignored when the chain already exists.
func (r *Registry) Register(name string, strategy Strategy) *Chain {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.chains[name]; ok {
		return existing
	}
	logger := r.logger
	chain := NewChain(name, strategy, func(o *ChainOptions) { o.Logger = logger })
	r.chains[name] = chain
	r.logger.Debug("fallback chain registered", "chain", name, "strategy", strategy)
	return chain
}

// Get returns the chain registered under name, or an error wrapping
// core.ErrNotFound. Executing against a name that was never registered is a
// programming error at the call site.
func (r *Registry) Get(name string) (*Chain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain, ok := r.chains[name]
	if !ok {
		return nil, fmt.Errorf("fallback chain %s: %w", name, core.ErrNotFound)
	}
	return chain, nil
}

// Names returns the registered chain names in unspecified order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.chains))
	for name := range r.chains {
		names = append(names, name)
	}
	return names
}
