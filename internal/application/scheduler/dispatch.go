package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/domain"
	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/ports"
)

// dispatchReady evaluates conditions for every ready node and dispatches
// the survivors. It reports whether any node was skipped or dispatched, so
// the coordinator re-evaluates readiness before blocking.
func (s *Scheduler) dispatchReady(ctx context.Context, ex *execution) (bool, error) {
	ready := s.readyNodes(ex)
	if len(ready) == 0 {
		return false, nil
	}

	env := s.conditionEnv(ex.run)
	progressed := false
	for _, id := range ready {
		if expr, ok := s.conditions[id]; ok && !expr.Eval(env) {
			ex.run.RecordSkip(id, "condition evaluated to false")
			s.logger.Info("node skipped",
				zap.String("execution_id", ex.run.ExecutionID),
				zap.String("node_id", id))
			s.publish(ctx, ex.run, domain.EventTypeNodeSkipped, id, nil)
			s.recordNode(id, string(domain.NodeStatusSkipped), 0)
			s.checkpoint(ctx, ex.run)
			progressed = true
			continue
		}
		if err := s.dispatchNode(ctx, ex, id); err != nil {
			return progressed, err
		}
		progressed = true
	}
	return progressed, nil
}

// dispatchNode hands one node attempt to the worker pool. The input view is
// assembled here, on the coordinator goroutine, so the executing task never
// reads shared run state.
func (s *Scheduler) dispatchNode(ctx context.Context, ex *execution, nodeID string) error {
	spec := s.graph.Node(nodeID)
	st := ex.run.NodeState(nodeID)

	st.Status = domain.NodeStatusReady
	st.AttemptCount++
	attempt := st.AttemptCount
	now := s.clock.Now().UTC()
	if st.StartTime == nil {
		st.StartTime = &now
	}
	st.Status = domain.NodeStatusRunning

	input := ports.NodeInput{
		NodeID:            nodeID,
		DependencyOutputs: s.dependencyOutputs(ex.run, spec),
		GlobalContext:     ex.run.GlobalSnapshot(),
		Config:            spec.Config,
		Attempt:           attempt,
	}
	timeout := spec.Timeout
	if timeout == 0 {
		timeout = s.nodeTimeout
	}

	ex.inflight[nodeID] = true
	s.logger.Info("node dispatched",
		zap.String("execution_id", ex.run.ExecutionID),
		zap.String("node_id", nodeID),
		zap.Int("attempt", attempt))
	s.publish(ctx, ex.run, domain.EventTypeNodeStarted, nodeID, map[string]interface{}{"attempt": attempt})

	job := func(jobCtx context.Context) {
		res, err := s.invoke(ctx, spec, input, timeout)
		select {
		case ex.results <- nodeResult{nodeID: nodeID, attempt: attempt, result: res, err: err}:
		case <-jobCtx.Done():
		}
	}

	if s.pool != nil {
		if err := s.pool.Submit(ctx, job); err != nil {
			delete(ex.inflight, nodeID)
			return err
		}
		return nil
	}
	go job(context.Background())
	return nil
}

// invoke runs the executor callback with the node's timeout, classifying
// failures for retry accounting. A panicking executor is converted into a
// failed attempt here, so the coordinator always receives a result for
// every dispatched node.
func (s *Scheduler) invoke(ctx context.Context, spec *domain.NodeSpec, input ports.NodeInput, timeout time.Duration) (res ports.NodeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = ports.NodeResult{}
			err = domain.NewNodeExecutionError(spec.ID, input.Attempt, fmt.Errorf("executor panicked: %v", r))
		}
	}()

	execCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	executor, err := s.registry.Resolve(spec.ExecutorRef)
	if err != nil {
		return ports.NodeResult{}, domain.NewNodeExecutionError(spec.ID, input.Attempt, err)
	}

	res, err = executor.Execute(execCtx, input)
	if err == nil {
		return res, nil
	}
	if timeout > 0 && errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return ports.NodeResult{}, &domain.NodeTimeoutError{NodeID: spec.ID, Timeout: timeout.String()}
	}
	return ports.NodeResult{}, domain.NewNodeExecutionError(spec.ID, input.Attempt, err)
}

// dependencyOutputs builds the filtered view over node_outputs restricted
// to spec's declared dependencies.
func (s *Scheduler) dependencyOutputs(run *domain.RunState, spec *domain.NodeSpec) map[string]interface{} {
	out := make(map[string]interface{}, len(spec.Dependencies))
	for _, dep := range spec.Dependencies {
		if v, ok := run.NodeOutputs[dep]; ok {
			out[dep] = v
		}
	}
	return out
}

// applyResult records a node attempt's outcome and schedules a retry when
// policy allows.
func (s *Scheduler) applyResult(ctx context.Context, ex *execution, res nodeResult) {
	spec := s.graph.Node(res.nodeID)
	st := ex.run.NodeState(res.nodeID)
	var duration time.Duration
	if st.StartTime != nil {
		duration = s.clock.Now().Sub(*st.StartTime)
	}

	if res.err == nil {
		for k, v := range res.result.GlobalUpdates {
			ex.run.SetGlobal(k, v)
		}
		ex.run.RecordOutput(res.nodeID, res.result.Output, res.result.Artifacts)
		s.logger.Info("node completed",
			zap.String("execution_id", ex.run.ExecutionID),
			zap.String("node_id", res.nodeID),
			zap.Int("attempt", res.attempt),
			zap.Duration("duration", duration))
		s.publish(ctx, ex.run, domain.EventTypeNodeCompleted, res.nodeID, map[string]interface{}{"output": res.result.Output})
		s.recordNode(res.nodeID, string(domain.NodeStatusCompleted), duration)
		s.checkpoint(ctx, ex.run)
		return
	}

	policy := spec.Retry
	if policy.RetryOnFailure && st.AttemptCount < policy.MaxAttempts {
		s.scheduleRetry(ctx, ex, res.nodeID, res.err)
		return
	}

	ex.run.RecordFailure(res.nodeID, res.err)
	s.logger.Warn("node failed",
		zap.String("execution_id", ex.run.ExecutionID),
		zap.String("node_id", res.nodeID),
		zap.Int("attempts", st.AttemptCount),
		zap.Error(res.err))
	s.publish(ctx, ex.run, domain.EventTypeNodeFailed, res.nodeID, map[string]interface{}{
		"error":    res.err.Error(),
		"attempts": st.AttemptCount,
	})
	s.recordNode(res.nodeID, string(domain.NodeStatusFailed), duration)
	s.checkpoint(ctx, ex.run)
}

// scheduleRetry arms a timer that re-enqueues the node when its backoff
// window elapses. The coordinator never sleeps here, so unrelated ready
// nodes keep dispatching during the delay.
func (s *Scheduler) scheduleRetry(ctx context.Context, ex *execution, nodeID string, cause error) {
	spec := s.graph.Node(nodeID)
	st := ex.run.NodeState(nodeID)
	st.Error = cause.Error()

	delay := retryDelay(spec.Retry, st.AttemptCount)
	ex.retryPending[nodeID] = true

	s.logger.Info("node retry scheduled",
		zap.String("execution_id", ex.run.ExecutionID),
		zap.String("node_id", nodeID),
		zap.Int("attempt", st.AttemptCount),
		zap.Duration("delay", delay),
		zap.Error(cause))
	s.publish(ctx, ex.run, domain.EventTypeNodeRetrying, nodeID, map[string]interface{}{
		"attempt": st.AttemptCount,
		"delay":   delay.String(),
		"error":   cause.Error(),
	})
	if s.metrics != nil {
		s.metrics.RecordNodeRetry(string(spec.Type))
	}

	timer := s.clock.AfterFunc(delay, func() {
		select {
		case ex.retries <- nodeID:
		case <-ctx.Done():
		}
	})
	ex.timers = append(ex.timers, timer)
}

// finishRun is reached at the fixed point: nothing ready, nothing in
// flight, nothing awaiting retry. Remaining non-terminal nodes are blocked
// behind a terminal failure.
func (s *Scheduler) finishRun(ctx context.Context, ex *execution) *Summary {
	ex.stopTimers()
	run := ex.run

	blocked := s.blockedNodes(run)
	for _, id := range blocked {
		st := run.NodeState(id)
		st.Status = domain.NodeStatusBlocked
	}

	summary := s.summarize(ex, blocked)
	if len(summary.Failed) == 0 && len(blocked) == 0 {
		run.Status = domain.RunStatusCompleted
		s.publish(ctx, run, domain.EventTypeRunCompleted, "", nil)
	} else {
		run.Status = domain.RunStatusFailed
		s.publish(ctx, run, domain.EventTypeRunFailed, "", map[string]interface{}{
			"failed":  summary.Failed,
			"blocked": summary.Blocked,
		})
	}
	summary.Status = run.Status
	s.checkpoint(ctx, run)

	if s.metrics != nil {
		s.metrics.RecordRunCompleted(string(run.Status), summary.Duration)
	}
	s.logger.Info("run finished",
		zap.String("execution_id", run.ExecutionID),
		zap.String("status", string(run.Status)),
		zap.Int("completed", len(summary.Completed)),
		zap.Int("failed", len(summary.Failed)),
		zap.Int("skipped", len(summary.Skipped)),
		zap.Int("blocked", len(summary.Blocked)),
		zap.Duration("duration", summary.Duration))
	return summary
}

// cancelRun stops new dispatches, waits for in-flight nodes to observe
// cancellation, and checkpoints the partial run state for inspection.
func (s *Scheduler) cancelRun(ctx context.Context, ex *execution) (*Summary, error) {
	ex.stopTimers()
	run := ex.run

	for len(ex.inflight) > 0 {
		res := <-ex.results
		delete(ex.inflight, res.nodeID)
		if res.err == nil {
			for k, v := range res.result.GlobalUpdates {
				run.SetGlobal(k, v)
			}
			run.RecordOutput(res.nodeID, res.result.Output, res.result.Artifacts)
		} else {
			run.RecordFailure(res.nodeID, res.err)
		}
	}

	run.Status = domain.RunStatusCancelled
	summary := s.summarize(ex, s.blockedNodes(run))
	summary.Status = run.Status

	s.publish(ctx, run, domain.EventTypeRunCancelled, "", nil)
	s.checkpoint(ctx, run)
	if s.metrics != nil {
		s.metrics.RecordRunCompleted(string(run.Status), summary.Duration)
	}
	s.logger.Info("run cancelled",
		zap.String("execution_id", run.ExecutionID),
		zap.Duration("duration", summary.Duration))
	return summary, ctx.Err()
}

func (s *Scheduler) summarize(ex *execution, blocked []string) *Summary {
	run := ex.run
	summary := &Summary{
		ExecutionID: run.ExecutionID,
		WorkflowID:  run.WorkflowID,
		Blocked:     blocked,
		Duration:    s.clock.Now().Sub(ex.started),
		State:       run,
	}
	for id, st := range run.NodeStates {
		switch st.Status {
		case domain.NodeStatusCompleted:
			summary.Completed = append(summary.Completed, id)
		case domain.NodeStatusFailed:
			summary.Failed = append(summary.Failed, id)
		case domain.NodeStatusSkipped:
			summary.Skipped = append(summary.Skipped, id)
		}
	}
	sort.Strings(summary.Completed)
	sort.Strings(summary.Failed)
	sort.Strings(summary.Skipped)
	return summary
}

func (ex *execution) stopTimers() {
	for _, t := range ex.timers {
		t.Stop()
	}
	ex.timers = nil
}

// publish sends a lifecycle event, tolerating a nil bus and logging rather
// than propagating publish failures.
func (s *Scheduler) publish(ctx context.Context, run *domain.RunState, eventType domain.EventType, nodeID string, data map[string]interface{}) {
	if s.eventBus == nil {
		return
	}
	event := domain.Event{
		ID:          uuid.New().String(),
		Type:        eventType,
		ExecutionID: run.ExecutionID,
		NodeID:      nodeID,
		Timestamp:   s.clock.Now().UTC(),
		Data:        data,
	}
	topic := "run.events"
	if nodeID != "" {
		topic = "node.events"
	}
	if err := s.eventBus.Publish(context.WithoutCancel(ctx), topic, event); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("execution_id", run.ExecutionID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}

func (s *Scheduler) recordNode(nodeID, status string, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	nodeType := string(domain.NodeTypeCustom)
	if spec := s.graph.Node(nodeID); spec != nil {
		nodeType = string(spec.Type)
	}
	s.metrics.RecordNodeExecuted(nodeType, status, duration)
}
