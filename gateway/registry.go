package gateway

import (
	"sync"

	"github.com/tarungka/streamcore/compile"
	"github.com/tarungka/streamcore/stream"
)

// Registry holds named, compiled-and-instantiated pipelines. It does
// not implement any engine semantics itself; it only looks operators
// up by name for the HTTP routes to adapt into process/flush/reset/
// snapshot calls.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]stream.Operator
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]stream.Operator)}
}

// Register compiles descriptor and instantiates it under name,
// replacing any pipeline already registered there.
func (r *Registry) Register(name string, descriptor any) error {
	op, err := compile.Instantiate(descriptor, stream.CreateOptions{})
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.ops[name] = op
	r.mu.Unlock()
	return nil
}

// Lookup returns the named pipeline, if registered.
func (r *Registry) Lookup(name string) (stream.Operator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[name]
	return op, ok
}
