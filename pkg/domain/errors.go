package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph construction and checkpoint lookup failures.
var (
	// ErrDuplicateNodeID is returned when a node id is registered twice.
	ErrDuplicateNodeID = errors.New("duplicate node id")

	// ErrCycleDetected is returned when an edge would introduce a cycle.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrUnknownNode is returned when an edge references an unregistered node.
	ErrUnknownNode = errors.New("unknown node")

	// ErrExecutionNotFound is returned by checkpoint stores on a load miss.
	ErrExecutionNotFound = errors.New("execution not found")
)

// NodeExecutionError wraps a failure raised by a node's executor callback.
// It records which attempt failed so retry accounting is visible in logs
// and in NodeState.Error.
type NodeExecutionError struct {
	NodeID  string
	Attempt int
	Err     error
}

// NewNodeExecutionError wraps err as an execution failure of node nodeID.
func NewNodeExecutionError(nodeID string, attempt int, err error) *NodeExecutionError {
	return &NodeExecutionError{NodeID: nodeID, Attempt: attempt, Err: err}
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %s failed (attempt %d): %v", e.NodeID, e.Attempt, e.Err)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Err
}

// NodeTimeoutError reports that a node's executor exceeded its timeout.
// It is treated exactly like a NodeExecutionError for retry purposes.
type NodeTimeoutError struct {
	NodeID  string
	Timeout string
}

func (e *NodeTimeoutError) Error() string {
	return fmt.Sprintf("node %s timed out after %s", e.NodeID, e.Timeout)
}
