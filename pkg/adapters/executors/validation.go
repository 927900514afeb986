package executors

import (
	"context"
	"fmt"

	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/ports"
)

// Validator is the external check behind a validation-gate node.
type Validator interface {
	Check(ctx context.Context, input ports.NodeInput) (passed bool, details map[string]interface{}, err error)
}

// ValidatorFunc adapts a plain function to Validator.
type ValidatorFunc func(ctx context.Context, input ports.NodeInput) (bool, map[string]interface{}, error)

// Check implements Validator.
func (f ValidatorFunc) Check(ctx context.Context, input ports.NodeInput) (bool, map[string]interface{}, error) {
	return f(ctx, input)
}

// ValidationGate runs a validator and maps its boolean result onto the
// standard success/failure path. With fail_on_error set in the node config,
// a failed check fails the node, which blocks dependents through the normal
// failure mechanism; without it, the node completes with passed=false in
// its output and dependents keep running.
type ValidationGate struct {
	validator Validator
}

// NewValidationGate wraps validator as a node executor.
func NewValidationGate(validator Validator) *ValidationGate {
	return &ValidationGate{validator: validator}
}

// Execute implements ports.NodeExecutor.
func (g *ValidationGate) Execute(ctx context.Context, input ports.NodeInput) (ports.NodeResult, error) {
	passed, details, err := g.validator.Check(ctx, input)
	if err != nil {
		return ports.NodeResult{}, fmt.Errorf("validation check failed to run: %w", err)
	}

	output := map[string]interface{}{"passed": passed}
	for k, v := range details {
		output[k] = v
	}

	if !passed && failOnError(input.Config) {
		return ports.NodeResult{}, fmt.Errorf("validation gate %s did not pass", input.NodeID)
	}
	return ports.NodeResult{Output: output}, nil
}

func failOnError(config map[string]interface{}) bool {
	v, ok := config["fail_on_error"]
	if !ok {
		return true
	}
	b, ok := v.(bool)
	return !ok || b
}
