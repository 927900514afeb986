package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	checkpointmemory "github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/adapters/checkpoint/memory"
	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/adapters/executors"
	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/domain"
	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/ports"
)

func newChain(t *testing.T) *domain.Graph {
	t.Helper()
	g, err := domain.NewChainGraph("wf-chain", "chain", []domain.PhaseSpec{
		{ID: "plan", ExecutorRef: "noop"},
		{ID: "build", ExecutorRef: "noop"},
	})
	require.NoError(t, err)
	return g
}

func newTestManager(t *testing.T, registry ports.ExecutorRegistry) (*Manager, *checkpointmemory.Store) {
	t.Helper()
	store := checkpointmemory.NewStore()
	m := NewManager(registry, store, nil, nil, nil, zap.NewNop(), time.Minute, 10*time.Second)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m, store
}

func waitForSummary(t *testing.T, m *Manager, executionID string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := m.GetSummary(executionID); err == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("execution %s did not finish in time", executionID)
}

func TestManagerSubmitRun(t *testing.T) {
	registry := executors.NewRegistry()
	registry.Register("noop", executors.Func(func(ctx context.Context, input ports.NodeInput) (ports.NodeResult, error) {
		return ports.NodeResult{Output: "ok"}, nil
	}))
	m, store := newTestManager(t, registry)

	executionID, err := m.SubmitRun(context.Background(), newChain(t), map[string]interface{}{"tenant": "acme"})
	require.NoError(t, err)
	require.NotEmpty(t, executionID)

	waitForSummary(t, m, executionID)

	summary, err := m.GetSummary(executionID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, summary.Status)
	assert.Equal(t, []string{"build", "plan"}, summary.Completed)

	state, err := store.Load(context.Background(), executionID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, state.Status)
	v, ok := state.GetGlobal("tenant")
	require.True(t, ok)
	assert.Equal(t, "acme", v)

	ids, err := m.ListRuns(context.Background(), "wf-chain")
	require.NoError(t, err)
	assert.Equal(t, []string{executionID}, ids)
}

func TestManagerSubmitRunRejectsInvalidGraph(t *testing.T) {
	registry := executors.NewRegistry()
	m, _ := newTestManager(t, registry)

	// No executor registered for the refs.
	_, err := m.SubmitRun(context.Background(), newChain(t), nil)
	assert.Error(t, err)

	_, err = m.SubmitRun(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestManagerGetStatus(t *testing.T) {
	registry := executors.NewRegistry()
	registry.Register("noop", executors.Func(func(ctx context.Context, input ports.NodeInput) (ports.NodeResult, error) {
		return ports.NodeResult{Output: "ok"}, nil
	}))
	m, _ := newTestManager(t, registry)

	executionID, err := m.SubmitRun(context.Background(), newChain(t), nil)
	require.NoError(t, err)
	waitForSummary(t, m, executionID)

	state, err := m.GetStatus(context.Background(), executionID)
	require.NoError(t, err)
	assert.Equal(t, "wf-chain", state.WorkflowID)

	_, err = m.GetStatus(context.Background(), "missing")
	assert.Error(t, err)
}

func TestManagerCancelRun(t *testing.T) {
	started := make(chan struct{})
	registry := executors.NewRegistry()
	registry.Register("noop", executors.Func(func(ctx context.Context, input ports.NodeInput) (ports.NodeResult, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ports.NodeResult{}, ctx.Err()
	}))
	m, store := newTestManager(t, registry)

	executionID, err := m.SubmitRun(context.Background(), newChain(t), nil)
	require.NoError(t, err)

	<-started
	require.NoError(t, m.CancelRun(context.Background(), executionID))
	waitForSummary(t, m, executionID)

	summary, err := m.GetSummary(executionID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCancelled, summary.Status)

	state, err := store.Load(context.Background(), executionID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCancelled, state.Status)

	// A finished run can no longer be cancelled.
	assert.Error(t, m.CancelRun(context.Background(), executionID))
	assert.ErrorIs(t, m.CancelRun(context.Background(), "missing"), domain.ErrExecutionNotFound)
}

func TestManagerResumeRun(t *testing.T) {
	registry := executors.NewRegistry()
	registry.Register("noop", executors.Func(func(ctx context.Context, input ports.NodeInput) (ports.NodeResult, error) {
		return ports.NodeResult{Output: "ok"}, nil
	}))
	m, store := newTestManager(t, registry)

	graph := newChain(t)
	require.NoError(t, m.RegisterGraph(graph))

	// Seed a checkpoint that looks like a run interrupted after "plan".
	run := domain.NewRunState(graph, "exec-interrupted")
	run.Status = domain.RunStatusRunning
	run.RecordOutput("plan", "ok", nil)
	require.NoError(t, store.Save(context.Background(), run))

	require.NoError(t, m.ResumeRun(context.Background(), "exec-interrupted"))
	waitForSummary(t, m, "exec-interrupted")

	summary, err := m.GetSummary("exec-interrupted")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, summary.Status)
	assert.Equal(t, []string{"build", "plan"}, summary.Completed)
}

func TestManagerResumeRunMissingCheckpoint(t *testing.T) {
	registry := executors.NewRegistry()
	m, _ := newTestManager(t, registry)

	err := m.ResumeRun(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrExecutionNotFound)
}

func TestManagerResumeRunUnregisteredWorkflow(t *testing.T) {
	registry := executors.NewRegistry()
	registry.Register("noop", executors.Func(func(ctx context.Context, input ports.NodeInput) (ports.NodeResult, error) {
		return ports.NodeResult{Output: "ok"}, nil
	}))
	m, store := newTestManager(t, registry)

	run := domain.NewRunState(newChain(t), "exec-orphan")
	require.NoError(t, store.Save(context.Background(), run))

	err := m.ResumeRun(context.Background(), "exec-orphan")
	assert.Error(t, err)
}

func TestValidatorValidate(t *testing.T) {
	registry := executors.NewRegistry()
	registry.Register("noop", executors.Func(func(ctx context.Context, input ports.NodeInput) (ports.NodeResult, error) {
		return ports.NodeResult{}, nil
	}))
	v := NewValidator(registry)

	assert.NoError(t, v.Validate(newChain(t)))
	assert.Error(t, v.Validate(nil))
	assert.Error(t, v.Validate(domain.NewGraph("", "unnamed")))
	assert.Error(t, v.Validate(domain.NewGraph("wf-empty", "empty")))

	g := domain.NewGraph("wf-bad-ref", "bad")
	require.NoError(t, g.AddNode(&domain.NodeSpec{ID: "A", ExecutorRef: "unregistered"}))
	assert.Error(t, v.Validate(g))

	g = domain.NewGraph("wf-no-ref", "bad")
	require.NoError(t, g.AddNode(&domain.NodeSpec{ID: "A"}))
	assert.Error(t, v.Validate(g))
}
