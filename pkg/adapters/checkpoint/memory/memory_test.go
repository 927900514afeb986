package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/domain"
)

func newTestRun(t *testing.T, workflowID, executionID string) *domain.RunState {
	t.Helper()
	g := domain.NewGraph(workflowID, workflowID)
	require.NoError(t, g.AddNode(&domain.NodeSpec{ID: "A", ExecutorRef: "noop"}))
	require.NoError(t, g.AddNode(&domain.NodeSpec{ID: "B", Dependencies: []string{"A"}, ExecutorRef: "noop"}))
	return domain.NewRunState(g, executionID)
}

func TestStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	run := newTestRun(t, "wf-1", "exec-1")
	run.RecordOutput("A", map[string]interface{}{"value": 1.0}, nil)

	require.NoError(t, store.Save(ctx, run))

	loaded, err := store.Load(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, "wf-1", loaded.WorkflowID)
	assert.Equal(t, domain.NodeStatusCompleted, loaded.NodeState("A").Status)
	assert.Equal(t, map[string]interface{}{"value": 1.0}, loaded.NodeOutputs["A"])
}

func TestStoreSnapshotsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	run := newTestRun(t, "wf-1", "exec-1")

	require.NoError(t, store.Save(ctx, run))

	// Mutations after Save must not leak into the stored snapshot.
	run.RecordOutput("A", "late", nil)
	loaded, err := store.Load(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, domain.NodeStatusPending, loaded.NodeState("A").Status)

	// Mutations of a loaded snapshot must not leak into the store.
	loaded.RecordOutput("B", "late", nil)
	reloaded, err := store.Load(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, domain.NodeStatusPending, reloaded.NodeState("B").Status)
}

func TestStoreLoadMissing(t *testing.T) {
	store := NewStore()

	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrExecutionNotFound)
}

func TestStoreSaveRejectsEmptyID(t *testing.T) {
	store := NewStore()

	assert.Error(t, store.Save(context.Background(), nil))
	assert.Error(t, store.Save(context.Background(), &domain.RunState{}))
}

func TestStoreList(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.Save(ctx, newTestRun(t, "wf-1", "exec-b")))
	require.NoError(t, store.Save(ctx, newTestRun(t, "wf-1", "exec-a")))
	require.NoError(t, store.Save(ctx, newTestRun(t, "wf-2", "exec-c")))

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"exec-a", "exec-b", "exec-c"}, all)

	filtered, err := store.List(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"exec-a", "exec-b"}, filtered)
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.Save(ctx, newTestRun(t, "wf-1", "exec-1")))

	require.NoError(t, store.Delete(ctx, "exec-1"))
	_, err := store.Load(ctx, "exec-1")
	assert.ErrorIs(t, err, domain.ErrExecutionNotFound)

	// Deleting a missing execution is not an error.
	assert.NoError(t, store.Delete(ctx, "exec-1"))
}
