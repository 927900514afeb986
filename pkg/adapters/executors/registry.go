package executors

import (
	"context"
	"fmt"
	"sync"

	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/ports"
)

// Registry maps executor refs to executors. It implements
// ports.ExecutorRegistry; registration is explicit and caller-owned, never
// process-global.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]ports.NodeExecutor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[string]ports.NodeExecutor),
	}
}

// Register binds ref to executor, replacing any previous binding.
func (r *Registry) Register(ref string, executor ports.NodeExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[ref] = executor
}

// Resolve returns the executor bound to ref.
func (r *Registry) Resolve(ref string) (ports.NodeExecutor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executor, ok := r.executors[ref]
	if !ok {
		return nil, fmt.Errorf("no executor registered for ref %q", ref)
	}
	return executor, nil
}

// Refs returns the registered refs, for validation and introspection.
func (r *Registry) Refs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	refs := make([]string, 0, len(r.executors))
	for ref := range r.executors {
		refs = append(refs, ref)
	}
	return refs
}

// Func adapts a plain function to ports.NodeExecutor.
type Func func(ctx context.Context, input ports.NodeInput) (ports.NodeResult, error)

// Execute implements ports.NodeExecutor.
func (f Func) Execute(ctx context.Context, input ports.NodeInput) (ports.NodeResult, error) {
	return f(ctx, input)
}
