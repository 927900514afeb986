package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/internal/application/workers"
	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/condition"
	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/domain"
	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/ports"
)

// Config wires the scheduler's collaborators. Registry is required; every
// other collaborator is optional and disabled when nil.
type Config struct {
	Registry    ports.ExecutorRegistry
	Checkpoints ports.CheckpointStore
	EventBus    ports.EventBus
	Metrics     ports.MetricsCollector
	Pool        *workers.Pool
	Logger      *zap.Logger

	// Clock is injectable for tests; defaults to the wall clock.
	Clock clock.Clock

	// DefaultNodeTimeout bounds executor invocations for nodes that do
	// not set their own timeout. Zero disables the default.
	DefaultNodeTimeout time.Duration
}

// Scheduler executes one graph. It is safe to reuse across sequential runs
// of the same graph; each Execute call drives exactly one RunState.
type Scheduler struct {
	graph       *domain.Graph
	registry    ports.ExecutorRegistry
	checkpoints ports.CheckpointStore
	eventBus    ports.EventBus
	metrics     ports.MetricsCollector
	pool        *workers.Pool
	logger      *zap.Logger
	clock       clock.Clock
	nodeTimeout time.Duration

	// conditions holds the pre-parsed skip condition per node id.
	conditions map[string]*condition.Expr
}

// Summary reports the outcome of one run. Node-level failures are reported
// here, not as an Execute error.
type Summary struct {
	ExecutionID string           `json:"execution_id"`
	WorkflowID  string           `json:"workflow_id"`
	Status      domain.RunStatus `json:"status"`
	Completed   []string         `json:"completed"`
	Failed      []string         `json:"failed"`
	Skipped     []string         `json:"skipped"`
	Blocked     []string         `json:"blocked"`
	Duration    time.Duration    `json:"duration"`
	State       *domain.RunState `json:"-"`
}

// New builds a scheduler for graph. The graph must be acyclic and every
// node's executor ref must resolve; conditions are parsed here so malformed
// expressions fail at construction, not mid-run.
func New(graph *domain.Graph, cfg Config) (*Scheduler, error) {
	if graph == nil || graph.Len() == 0 {
		return nil, fmt.Errorf("scheduler requires a non-empty graph")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("scheduler requires an executor registry")
	}
	if _, err := graph.ExecutionOrder(); err != nil {
		return nil, fmt.Errorf("invalid graph %s: %w", graph.ID, err)
	}

	conditions := make(map[string]*condition.Expr)
	for id, spec := range graph.Nodes() {
		if _, err := cfg.Registry.Resolve(spec.ExecutorRef); err != nil {
			return nil, fmt.Errorf("node %s: %w", id, err)
		}
		if spec.Condition == "" {
			continue
		}
		expr, err := condition.Parse(spec.Condition)
		if err != nil {
			return nil, fmt.Errorf("node %s has an invalid condition: %w", id, err)
		}
		conditions[id] = expr
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	return &Scheduler{
		graph:       graph,
		registry:    cfg.Registry,
		checkpoints: cfg.Checkpoints,
		eventBus:    cfg.EventBus,
		metrics:     cfg.Metrics,
		pool:        cfg.Pool,
		logger:      logger,
		clock:       clk,
		nodeTimeout: cfg.DefaultNodeTimeout,
		conditions:  conditions,
	}, nil
}

// nodeResult travels from an executing node back to the coordinator.
type nodeResult struct {
	nodeID  string
	attempt int
	result  ports.NodeResult
	err     error
}

// execution is the coordinator's per-run bookkeeping. Everything in here is
// touched only by the coordinator goroutine.
type execution struct {
	run      *domain.RunState
	results  chan nodeResult
	retries  chan string
	inflight map[string]bool
	// retryPending holds nodes waiting on a retry timer.
	retryPending map[string]bool
	timers       []*clock.Timer
	started      time.Time
}

// Execute drives run to a fixed point: no node PENDING, READY, or RUNNING.
// The returned Summary always carries the final (checkpointed) run state,
// including after cancellation; the error is non-nil only for coordinator
// failures such as ctx cancellation, never for individual node failures.
func (s *Scheduler) Execute(ctx context.Context, run *domain.RunState) (*Summary, error) {
	if run == nil {
		return nil, fmt.Errorf("scheduler requires a run state")
	}
	if run.WorkflowID != s.graph.ID {
		return nil, fmt.Errorf("run %s belongs to workflow %s, scheduler is bound to %s",
			run.ExecutionID, run.WorkflowID, s.graph.ID)
	}

	s.normalizeForResume(run)
	run.Status = domain.RunStatusRunning

	ex := &execution{
		run:          run,
		results:      make(chan nodeResult),
		retries:      make(chan string),
		inflight:     make(map[string]bool),
		retryPending: make(map[string]bool),
		started:      s.clock.Now(),
	}

	s.logger.Info("run started",
		zap.String("execution_id", run.ExecutionID),
		zap.String("workflow_id", run.WorkflowID),
		zap.Int("nodes", s.graph.Len()))
	s.publish(ctx, run, domain.EventTypeRunStarted, "", nil)
	s.checkpoint(ctx, run)

	for {
		if ctx.Err() != nil {
			return s.cancelRun(ctx, ex)
		}

		dispatched, err := s.dispatchReady(ctx, ex)
		if err != nil {
			return s.cancelRun(ctx, ex)
		}
		if dispatched {
			// Skips may have unlocked further nodes.
			continue
		}

		if len(ex.inflight) == 0 && len(ex.retryPending) == 0 {
			return s.finishRun(ctx, ex), nil
		}

		select {
		case res := <-ex.results:
			delete(ex.inflight, res.nodeID)
			s.applyResult(ctx, ex, res)
		case nodeID := <-ex.retries:
			delete(ex.retryPending, nodeID)
			if err := s.dispatchNode(ctx, ex, nodeID); err != nil {
				return s.cancelRun(ctx, ex)
			}
		case <-ctx.Done():
			return s.cancelRun(ctx, ex)
		}
	}
}

// normalizeForResume resets non-terminal leftovers from a crashed or
// blocked run so readiness is recomputed purely from node statuses.
// COMPLETED, SKIPPED, and FAILED survive rehydration untouched; a node that
// was RUNNING when the process died runs again.
func (s *Scheduler) normalizeForResume(run *domain.RunState) {
	for id := range s.graph.Nodes() {
		st := run.NodeState(id)
		switch st.Status {
		case domain.NodeStatusCompleted, domain.NodeStatusSkipped, domain.NodeStatusFailed:
		default:
			st.Status = domain.NodeStatusPending
			st.StartTime = nil
			st.EndTime = nil
		}
	}
}

// readyNodes returns dispatchable node ids: dependencies satisfied, not
// terminal, not in flight, not waiting on a retry timer.
func (s *Scheduler) readyNodes(ex *execution) []string {
	satisfied := ex.run.SatisfiedIDs()
	candidates := s.graph.ReadyNodes(satisfied)

	ready := candidates[:0]
	for _, id := range candidates {
		if ex.inflight[id] || ex.retryPending[id] {
			continue
		}
		if ex.run.NodeState(id).Status.IsTerminal() {
			continue
		}
		ready = append(ready, id)
	}
	return ready
}

// blockedNodes returns every node left non-terminal at the fixed point:
// their dependency chains contain a terminal failure and can never be
// satisfied.
func (s *Scheduler) blockedNodes(run *domain.RunState) []string {
	var blocked []string
	for id := range s.graph.Nodes() {
		if !run.NodeState(id).Status.IsTerminal() {
			blocked = append(blocked, id)
		}
	}
	sort.Strings(blocked)
	return blocked
}

func (s *Scheduler) conditionEnv(run *domain.RunState) map[string]interface{} {
	return map[string]interface{}{
		"outputs": run.NodeOutputs,
		"context": run.GlobalSnapshot(),
	}
}

// checkpoint persists the run state, logging rather than failing the run on
// a store error. Uses a detached context so the final snapshot of a
// cancelled run still lands.
func (s *Scheduler) checkpoint(ctx context.Context, run *domain.RunState) {
	if s.checkpoints == nil {
		return
	}
	saveCtx := context.WithoutCancel(ctx)
	if err := s.checkpoints.Save(saveCtx, run); err != nil {
		s.logger.Error("failed to checkpoint run",
			zap.String("execution_id", run.ExecutionID),
			zap.Error(err))
	}
}
