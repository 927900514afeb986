package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChainGraph(t *testing.T) {
	g, err := NewChainGraph("wf-chain", "chain", []PhaseSpec{
		{ID: "plan", ExecutorRef: "noop"},
		{ID: "build", ExecutorRef: "noop"},
		{ID: "review", ExecutorRef: "noop"},
	})
	require.NoError(t, err)

	levels, err := g.ExecutionOrder()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"plan"}, {"build"}, {"review"}}, levels)

	assert.Equal(t, NodeTypePhase, g.Node("plan").Type)
	assert.Equal(t, "plan", g.Node("plan").Name)
	assert.Equal(t, 1, g.Node("build").Retry.MaxAttempts)
}

func TestNewChainGraphEmpty(t *testing.T) {
	_, err := NewChainGraph("wf", "wf", nil)
	assert.Error(t, err)
}

func TestNewFanOutGraph(t *testing.T) {
	g, err := NewFanOutGraph("wf-fan", "fan",
		PhaseSpec{ID: "split", ExecutorRef: "noop"},
		[]PhaseSpec{
			{ID: "shard-a", ExecutorRef: "noop"},
			{ID: "shard-b", ExecutorRef: "noop"},
			{ID: "shard-c", ExecutorRef: "noop"},
		},
		PhaseSpec{ID: "merge", ExecutorRef: "noop"},
	)
	require.NoError(t, err)

	levels, err := g.ExecutionOrder()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"split"}, {"shard-a", "shard-b", "shard-c"}, {"merge"}}, levels)
	assert.ElementsMatch(t, []string{"shard-a", "shard-b", "shard-c"}, g.Node("merge").Dependencies)
}

func TestNewFanOutGraphRequiresParallel(t *testing.T) {
	_, err := NewFanOutGraph("wf", "wf",
		PhaseSpec{ID: "entry", ExecutorRef: "noop"}, nil,
		PhaseSpec{ID: "exit", ExecutorRef: "noop"})
	assert.Error(t, err)
}
