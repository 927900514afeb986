package executors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/ports"
)

func TestRegistryRegisterResolve(t *testing.T) {
	registry := NewRegistry()
	registry.Register("echo", Func(func(ctx context.Context, input ports.NodeInput) (ports.NodeResult, error) {
		return ports.NodeResult{Output: input.NodeID}, nil
	}))

	executor, err := registry.Resolve("echo")
	require.NoError(t, err)

	res, err := executor.Execute(context.Background(), ports.NodeInput{NodeID: "n1"})
	require.NoError(t, err)
	assert.Equal(t, "n1", res.Output)
}

func TestRegistryResolveUnknown(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Resolve("missing")
	assert.Error(t, err)
}

func TestRegistryRegisterReplaces(t *testing.T) {
	registry := NewRegistry()
	registry.Register("x", Func(func(ctx context.Context, input ports.NodeInput) (ports.NodeResult, error) {
		return ports.NodeResult{Output: "first"}, nil
	}))
	registry.Register("x", Func(func(ctx context.Context, input ports.NodeInput) (ports.NodeResult, error) {
		return ports.NodeResult{Output: "second"}, nil
	}))

	executor, err := registry.Resolve("x")
	require.NoError(t, err)
	res, err := executor.Execute(context.Background(), ports.NodeInput{})
	require.NoError(t, err)
	assert.Equal(t, "second", res.Output)

	assert.Equal(t, []string{"x"}, registry.Refs())
}

func TestValidationGatePasses(t *testing.T) {
	gate := NewValidationGate(ValidatorFunc(func(ctx context.Context, input ports.NodeInput) (bool, map[string]interface{}, error) {
		return true, map[string]interface{}{"checked": 12}, nil
	}))

	res, err := gate.Execute(context.Background(), ports.NodeInput{NodeID: "lint"})
	require.NoError(t, err)

	output := res.Output.(map[string]interface{})
	assert.Equal(t, true, output["passed"])
	assert.Equal(t, 12, output["checked"])
}

func TestValidationGateFailsNodeByDefault(t *testing.T) {
	gate := NewValidationGate(ValidatorFunc(func(ctx context.Context, input ports.NodeInput) (bool, map[string]interface{}, error) {
		return false, nil, nil
	}))

	_, err := gate.Execute(context.Background(), ports.NodeInput{NodeID: "lint"})
	assert.Error(t, err)
}

func TestValidationGateSoftFailure(t *testing.T) {
	gate := NewValidationGate(ValidatorFunc(func(ctx context.Context, input ports.NodeInput) (bool, map[string]interface{}, error) {
		return false, map[string]interface{}{"reason": "coverage below threshold"}, nil
	}))

	res, err := gate.Execute(context.Background(), ports.NodeInput{
		NodeID: "lint",
		Config: map[string]interface{}{"fail_on_error": false},
	})
	require.NoError(t, err)

	output := res.Output.(map[string]interface{})
	assert.Equal(t, false, output["passed"])
	assert.Equal(t, "coverage below threshold", output["reason"])
}

func TestValidationGateCheckError(t *testing.T) {
	gate := NewValidationGate(ValidatorFunc(func(ctx context.Context, input ports.NodeInput) (bool, map[string]interface{}, error) {
		return false, nil, errors.New("validator crashed")
	}))

	// A check that cannot run is an execution error even in soft mode.
	_, err := gate.Execute(context.Background(), ports.NodeInput{
		Config: map[string]interface{}{"fail_on_error": false},
	})
	assert.ErrorContains(t, err, "validator crashed")
}
