package domain

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// NodeStatus is the per-run lifecycle state of a single node.
type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "pending"
	NodeStatusReady     NodeStatus = "ready"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusFailed    NodeStatus = "failed"
	NodeStatusSkipped   NodeStatus = "skipped"
	NodeStatusBlocked   NodeStatus = "blocked"
)

// IsTerminal reports whether the status is final for the run.
func (s NodeStatus) IsTerminal() bool {
	switch s {
	case NodeStatusCompleted, NodeStatusFailed, NodeStatusSkipped, NodeStatusBlocked:
		return true
	default:
		return false
	}
}

// SatisfiesDependents reports whether a downstream node may treat this
// status as a satisfied dependency. SKIPPED counts exactly like COMPLETED;
// FAILED never satisfies.
func (s NodeStatus) SatisfiesDependents() bool {
	return s == NodeStatusCompleted || s == NodeStatusSkipped
}

// RunStatus is the overall state of one execution attempt.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// NodeState is the mutable per-run record for one node.
type NodeState struct {
	NodeID       string                 `json:"node_id"`
	Status       NodeStatus             `json:"status"`
	StartTime    *time.Time             `json:"start_time,omitempty"`
	EndTime      *time.Time             `json:"end_time,omitempty"`
	AttemptCount int                    `json:"attempt_count"`
	Error        string                 `json:"error,omitempty"`
	Output       interface{}            `json:"output,omitempty"`
	Artifacts    []string               `json:"artifacts,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// RunState is the complete mutable record of one execution attempt of a
// Graph. It is mutated exclusively by the scheduler's coordinator goroutine;
// per-node entries follow single-writer-per-key discipline. GlobalContext is
// the one cross-node shared space and is guarded by its own mutex.
type RunState struct {
	WorkflowID  string                 `json:"workflow_id"`
	ExecutionID string                 `json:"execution_id"`
	Status      RunStatus              `json:"status"`
	NodeStates  map[string]*NodeState  `json:"node_states"`
	NodeOutputs map[string]interface{} `json:"node_outputs"`
	Artifacts   map[string][]string    `json:"artifacts"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`

	globalMu      sync.RWMutex
	GlobalContext map[string]interface{} `json:"global_context"`
}

// NewRunState initializes a fresh run for graph with every node PENDING.
func NewRunState(graph *Graph, executionID string) *RunState {
	now := time.Now().UTC()
	rs := &RunState{
		WorkflowID:    graph.ID,
		ExecutionID:   executionID,
		Status:        RunStatusPending,
		NodeStates:    make(map[string]*NodeState, graph.Len()),
		NodeOutputs:   make(map[string]interface{}),
		Artifacts:     make(map[string][]string),
		GlobalContext: make(map[string]interface{}),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for id := range graph.Nodes() {
		rs.NodeStates[id] = &NodeState{NodeID: id, Status: NodeStatusPending}
	}
	return rs
}

// NodeState returns the state record for id, creating a PENDING record if
// a rehydrated snapshot predates the node.
func (r *RunState) NodeState(id string) *NodeState {
	st, ok := r.NodeStates[id]
	if !ok {
		st = &NodeState{NodeID: id, Status: NodeStatusPending}
		r.NodeStates[id] = st
	}
	return st
}

// SatisfiedIDs returns the set of node ids whose status satisfies
// downstream readiness (COMPLETED or SKIPPED).
func (r *RunState) SatisfiedIDs() map[string]bool {
	out := make(map[string]bool, len(r.NodeStates))
	for id, st := range r.NodeStates {
		if st.Status.SatisfiesDependents() {
			out[id] = true
		}
	}
	return out
}

// RecordOutput marks node id COMPLETED with the given output and artifacts.
func (r *RunState) RecordOutput(id string, output interface{}, artifacts []string) {
	st := r.NodeState(id)
	now := time.Now().UTC()
	st.Status = NodeStatusCompleted
	st.Output = output
	st.EndTime = &now
	if len(artifacts) > 0 {
		st.Artifacts = append(st.Artifacts, artifacts...)
		r.Artifacts[id] = append(r.Artifacts[id], artifacts...)
	}
	r.NodeOutputs[id] = output
	r.UpdatedAt = now
}

// RecordFailure marks node id terminally FAILED.
func (r *RunState) RecordFailure(id string, err error) {
	st := r.NodeState(id)
	now := time.Now().UTC()
	st.Status = NodeStatusFailed
	if err != nil {
		st.Error = err.Error()
	}
	st.EndTime = &now
	r.UpdatedAt = now
}

// RecordSkip marks node id SKIPPED without an output.
func (r *RunState) RecordSkip(id, reason string) {
	st := r.NodeState(id)
	now := time.Now().UTC()
	st.Status = NodeStatusSkipped
	st.EndTime = &now
	if reason != "" {
		if st.Metadata == nil {
			st.Metadata = make(map[string]interface{})
		}
		st.Metadata["skip_reason"] = reason
	}
	r.UpdatedAt = now
}

// SetGlobal writes a key into the shared scratch space.
func (r *RunState) SetGlobal(key string, value interface{}) {
	r.globalMu.Lock()
	defer r.globalMu.Unlock()
	if r.GlobalContext == nil {
		r.GlobalContext = make(map[string]interface{})
	}
	r.GlobalContext[key] = value
}

// GetGlobal reads a key from the shared scratch space.
func (r *RunState) GetGlobal(key string) (interface{}, bool) {
	r.globalMu.RLock()
	defer r.globalMu.RUnlock()
	v, ok := r.GlobalContext[key]
	return v, ok
}

// GlobalSnapshot returns a copy of the shared scratch space, safe to hand to
// a concurrently running executor.
func (r *RunState) GlobalSnapshot() map[string]interface{} {
	r.globalMu.RLock()
	defer r.globalMu.RUnlock()
	out := make(map[string]interface{}, len(r.GlobalContext))
	for k, v := range r.GlobalContext {
		out[k] = v
	}
	return out
}

// Finished reports whether no node is PENDING, READY, or RUNNING.
func (r *RunState) Finished() bool {
	for _, st := range r.NodeStates {
		if !st.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// runStateDoc mirrors RunState for serialization; the mutex is not carried.
type runStateDoc struct {
	WorkflowID    string                 `json:"workflow_id"`
	ExecutionID   string                 `json:"execution_id"`
	Status        RunStatus              `json:"status"`
	NodeStates    map[string]*NodeState  `json:"node_states"`
	NodeOutputs   map[string]interface{} `json:"node_outputs"`
	Artifacts     map[string][]string    `json:"artifacts"`
	GlobalContext map[string]interface{} `json:"global_context"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// MarshalJSON serializes the run state, taking the global-context lock so a
// checkpoint racing an executor's SetGlobal stays consistent.
func (r *RunState) MarshalJSON() ([]byte, error) {
	r.globalMu.RLock()
	defer r.globalMu.RUnlock()
	return json.Marshal(runStateDoc{
		WorkflowID:    r.WorkflowID,
		ExecutionID:   r.ExecutionID,
		Status:        r.Status,
		NodeStates:    r.NodeStates,
		NodeOutputs:   r.NodeOutputs,
		Artifacts:     r.Artifacts,
		GlobalContext: r.GlobalContext,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	})
}

// UnmarshalJSON rehydrates a run state from a checkpoint document.
func (r *RunState) UnmarshalJSON(data []byte) error {
	var doc runStateDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	r.WorkflowID = doc.WorkflowID
	r.ExecutionID = doc.ExecutionID
	r.Status = doc.Status
	r.NodeStates = doc.NodeStates
	r.NodeOutputs = doc.NodeOutputs
	r.Artifacts = doc.Artifacts
	r.GlobalContext = doc.GlobalContext
	r.CreatedAt = doc.CreatedAt
	r.UpdatedAt = doc.UpdatedAt
	if r.NodeStates == nil {
		r.NodeStates = make(map[string]*NodeState)
	}
	if r.NodeOutputs == nil {
		r.NodeOutputs = make(map[string]interface{})
	}
	if r.Artifacts == nil {
		r.Artifacts = make(map[string][]string)
	}
	if r.GlobalContext == nil {
		r.GlobalContext = make(map[string]interface{})
	}
	return nil
}

// ToMap serializes the run state to a plain document.
func (r *RunState) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run state: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run state document: %w", err)
	}
	return out, nil
}

// RunStateFromMap rebuilds a run state from a document produced by ToMap.
func RunStateFromMap(m map[string]interface{}) (*RunState, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run state document: %w", err)
	}
	rs := &RunState{}
	if err := json.Unmarshal(data, rs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run state: %w", err)
	}
	return rs, nil
}

// Clone returns a deep copy of the run state via serialization. Used by
// in-memory checkpoint stores to isolate snapshots from live mutation.
func (r *RunState) Clone() (*RunState, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to clone run state: %w", err)
	}
	out := &RunState{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("failed to clone run state: %w", err)
	}
	return out, nil
}
