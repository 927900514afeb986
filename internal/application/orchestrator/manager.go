package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/internal/application/scheduler"
	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/internal/application/workers"
	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/domain"
	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/ports"
)

// Manager owns graph registration and run lifetime: it validates submitted
// graphs, starts a scheduler per run, tracks live runs for cancellation,
// and resumes persisted runs from the checkpoint store.
type Manager struct {
	registry    ports.ExecutorRegistry
	checkpoints ports.CheckpointStore
	eventBus    ports.EventBus
	metrics     ports.MetricsCollector
	pool        *workers.Pool
	validator   *Validator
	logger      *zap.Logger

	runTimeout  time.Duration
	nodeTimeout time.Duration

	mu     sync.RWMutex
	graphs map[string]*domain.Graph

	// Track active executions
	runs sync.Map // map[string]*runHandle
	wg   sync.WaitGroup
}

// runHandle holds the live state of one execution.
type runHandle struct {
	executionID string
	workflowID  string
	startedAt   time.Time
	cancel      context.CancelFunc

	mu      sync.RWMutex
	summary *scheduler.Summary
}

// NewManager creates a new orchestrator manager.
func NewManager(
	registry ports.ExecutorRegistry,
	checkpoints ports.CheckpointStore,
	eventBus ports.EventBus,
	metrics ports.MetricsCollector,
	pool *workers.Pool,
	logger *zap.Logger,
	runTimeout, nodeTimeout time.Duration,
) *Manager {
	return &Manager{
		registry:    registry,
		checkpoints: checkpoints,
		eventBus:    eventBus,
		metrics:     metrics,
		pool:        pool,
		validator:   NewValidator(registry),
		logger:      logger,
		runTimeout:  runTimeout,
		nodeTimeout: nodeTimeout,
		graphs:      make(map[string]*domain.Graph),
	}
}

// RegisterGraph validates and stores a graph for later runs. Re-registering
// a workflow id replaces the stored graph; in-flight runs keep the graph
// they started with.
func (m *Manager) RegisterGraph(graph *domain.Graph) error {
	if err := m.validator.Validate(graph); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graphs[graph.ID] = graph
	return nil
}

// Graph returns the registered graph for a workflow id.
func (m *Manager) Graph(workflowID string) (*domain.Graph, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.graphs[workflowID]
	return g, ok
}

// SubmitRun validates graph, registers it, and starts a fresh run with the
// given global context. It returns the new execution id immediately; the
// run proceeds in the background.
func (m *Manager) SubmitRun(ctx context.Context, graph *domain.Graph, globals map[string]interface{}) (string, error) {
	if err := m.validator.Validate(graph); err != nil {
		m.logger.Error("graph validation failed",
			zap.String("workflow_id", graphID(graph)),
			zap.Error(err))
		if m.metrics != nil {
			m.metrics.RecordRunSubmitted("rejected")
		}
		return "", fmt.Errorf("validation failed: %w", err)
	}

	m.mu.Lock()
	m.graphs[graph.ID] = graph
	m.mu.Unlock()

	executionID := uuid.New().String()
	run := domain.NewRunState(graph, executionID)
	for k, v := range globals {
		run.SetGlobal(k, v)
	}

	if err := m.startRun(graph, run); err != nil {
		return "", err
	}

	if m.metrics != nil {
		m.metrics.RecordRunSubmitted("accepted")
	}
	m.logger.Info("run submitted",
		zap.String("execution_id", executionID),
		zap.String("workflow_id", graph.ID))
	return executionID, nil
}

// ResumeRun rehydrates a persisted run and continues it against its
// registered graph. Nodes already COMPLETED, SKIPPED, or FAILED are not
// re-dispatched.
func (m *Manager) ResumeRun(ctx context.Context, executionID string) error {
	if _, active := m.runs.Load(executionID); active {
		return fmt.Errorf("execution %s is already running", executionID)
	}

	run, err := m.checkpoints.Load(ctx, executionID)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}

	graph, ok := m.Graph(run.WorkflowID)
	if !ok {
		return fmt.Errorf("workflow %s is not registered", run.WorkflowID)
	}

	if err := m.startRun(graph, run); err != nil {
		return err
	}

	m.logger.Info("run resumed",
		zap.String("execution_id", executionID),
		zap.String("workflow_id", run.WorkflowID))
	return nil
}

// startRun builds a scheduler for graph and drives run in the background.
func (m *Manager) startRun(graph *domain.Graph, run *domain.RunState) error {
	sched, err := scheduler.New(graph, scheduler.Config{
		Registry:           m.registry,
		Checkpoints:        m.checkpoints,
		EventBus:           m.eventBus,
		Metrics:            m.metrics,
		Pool:               m.pool,
		Logger:             m.logger,
		DefaultNodeTimeout: m.nodeTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to build scheduler: %w", err)
	}

	runCtx := context.Background()
	var cancel context.CancelFunc
	if m.runTimeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, m.runTimeout)
	} else {
		runCtx, cancel = context.WithCancel(runCtx)
	}

	handle := &runHandle{
		executionID: run.ExecutionID,
		workflowID:  run.WorkflowID,
		startedAt:   time.Now(),
		cancel:      cancel,
	}
	m.runs.Store(run.ExecutionID, handle)
	m.updateActiveRuns()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()

		summary, err := sched.Execute(runCtx, run)
		if err != nil {
			m.logger.Warn("run ended early",
				zap.String("execution_id", run.ExecutionID),
				zap.Error(err))
		}

		handle.mu.Lock()
		handle.summary = summary
		handle.mu.Unlock()
		m.updateActiveRuns()
	}()
	return nil
}

// GetStatus retrieves the latest checkpointed state of an execution.
func (m *Manager) GetStatus(ctx context.Context, executionID string) (*domain.RunState, error) {
	state, err := m.checkpoints.Load(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get state: %w", err)
	}
	return state, nil
}

// GetSummary returns the run summary once the run has finished.
func (m *Manager) GetSummary(executionID string) (*scheduler.Summary, error) {
	val, ok := m.runs.Load(executionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrExecutionNotFound, executionID)
	}
	handle := val.(*runHandle)
	handle.mu.RLock()
	defer handle.mu.RUnlock()
	if handle.summary == nil {
		return nil, fmt.Errorf("execution %s has not finished", executionID)
	}
	return handle.summary, nil
}

// ListRuns returns checkpointed execution ids, optionally filtered to one
// workflow.
func (m *Manager) ListRuns(ctx context.Context, workflowID string) ([]string, error) {
	return m.checkpoints.List(ctx, workflowID)
}

// CancelRun cancels a live execution. In-flight nodes observe the
// cancellation; the partial run state stays checkpointed for inspection.
func (m *Manager) CancelRun(ctx context.Context, executionID string) error {
	val, ok := m.runs.Load(executionID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrExecutionNotFound, executionID)
	}

	handle := val.(*runHandle)
	handle.mu.RLock()
	finished := handle.summary != nil
	handle.mu.RUnlock()
	if finished {
		return fmt.Errorf("execution %s already finished", executionID)
	}

	handle.cancel()
	m.logger.Info("run cancellation requested",
		zap.String("execution_id", executionID))
	return nil
}

// updateActiveRuns recounts unfinished runs for the active-runs gauge.
func (m *Manager) updateActiveRuns() {
	if m.metrics == nil {
		return
	}
	active := 0
	m.runs.Range(func(_, value interface{}) bool {
		handle := value.(*runHandle)
		handle.mu.RLock()
		if handle.summary == nil {
			active++
		}
		handle.mu.RUnlock()
		return true
	})
	m.metrics.SetActiveRuns(active)
}

// Shutdown cancels all live runs and waits for their schedulers to
// checkpoint and return. The worker pool must be shut down after the
// manager so in-flight results still drain.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down orchestrator manager")

	m.runs.Range(func(_, value interface{}) bool {
		value.(*runHandle).cancel()
		return true
	})

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("orchestrator manager shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout")
	}
}

func graphID(g *domain.Graph) string {
	if g == nil {
		return ""
	}
	return g.ID
}
