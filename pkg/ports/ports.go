package ports

import (
	"context"
	"time"

	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/domain"
)

// NodeInput is the payload handed to an executor for one node attempt.
type NodeInput struct {
	NodeID string

	// DependencyOutputs is a filtered view over the run's node_outputs,
	// restricted to this node's declared dependencies.
	DependencyOutputs map[string]interface{}

	// GlobalContext is a snapshot of the run's shared scratch space.
	GlobalContext map[string]interface{}

	// Config carries the node spec's config map.
	Config map[string]interface{}

	// Attempt counts from 1 across retries.
	Attempt int
}

// NodeResult is what a successful executor invocation produces.
type NodeResult struct {
	Output    interface{}
	Artifacts []string

	// GlobalUpdates are merged into the run's global context under lock
	// after the node completes.
	GlobalUpdates map[string]interface{}
}

// NodeExecutor is the platform's single required integration point: all
// domain-specific work (agent invocation, validation checks, report
// generation) lives behind this interface, outside the scheduling core.
// Implementations must observe ctx for cancellation and timeouts.
type NodeExecutor interface {
	Execute(ctx context.Context, input NodeInput) (NodeResult, error)
}

// ExecutorRegistry resolves a NodeSpec's executor ref to an executor.
type ExecutorRegistry interface {
	Resolve(ref string) (NodeExecutor, error)
}

// CheckpointStore persists run state snapshots keyed by execution id. The
// scheduler saves after every node terminal transition; Load returning
// domain.ErrExecutionNotFound signals a miss.
type CheckpointStore interface {
	Save(ctx context.Context, state *domain.RunState) error
	Load(ctx context.Context, executionID string) (*domain.RunState, error)

	// List returns execution ids, filtered to workflowID when non-empty.
	List(ctx context.Context, workflowID string) ([]string, error)
	Delete(ctx context.Context, executionID string) error
}

// EventHandler processes a single event delivered by an EventBus.
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus publishes run and node lifecycle events to subscribers.
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.Event) error
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Close() error
}

// MetricsCollector records scheduler and worker pool metrics.
type MetricsCollector interface {
	RecordRunSubmitted(status string)
	RecordRunCompleted(status string, duration time.Duration)
	RecordNodeExecuted(nodeType, status string, duration time.Duration)
	RecordNodeRetry(nodeType string)
	SetActiveRuns(count int)
	RecordWorkerPoolStatus(idle, busy int)
}
