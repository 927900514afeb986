package domain

import (
	"time"
)

// NodeType tags the kind of work a node performs. The scheduler treats all
// types identically; the tag selects an executor via the registry and labels
// metrics.
type NodeType string

const (
	NodeTypePhase      NodeType = "phase"
	NodeTypeValidation NodeType = "validation"
	NodeTypeCustom     NodeType = "custom"
)

// RetryPolicy controls how a node's execution failures are retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 are normalized to 1.
	MaxAttempts int `json:"max_attempts"`

	// RetryOnFailure enables redispatch after a failed attempt.
	RetryOnFailure bool `json:"retry_on_failure"`

	// Delay is the wait between attempts.
	Delay time.Duration `json:"delay"`

	// Exponential doubles the delay on every subsequent attempt.
	Exponential bool `json:"exponential,omitempty"`
}

// DefaultRetryPolicy returns a single-attempt policy with no retries.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// Normalize clamps the policy to valid values.
func (p RetryPolicy) Normalize() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	return p
}

// NodeSpec is the immutable definition of one unit of work within a Graph.
type NodeSpec struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Type NodeType `json:"type"`

	// Dependencies lists upstream node ids in declaration order.
	Dependencies []string `json:"dependencies,omitempty"`

	// ExecutorRef is the opaque handle resolved by the executor registry.
	ExecutorRef string `json:"executor_ref"`

	Retry RetryPolicy `json:"retry_policy"`

	// Condition is an optional boolean expression over prior outputs,
	// evaluated as {outputs: node_outputs}. An empty condition always
	// executes; a condition that evaluates false skips the node.
	Condition string `json:"condition,omitempty"`

	// Timeout bounds a single executor invocation. Zero means no timeout.
	Timeout time.Duration `json:"timeout,omitempty"`

	// Config carries executor-specific settings. Validation gates read
	// fail_on_error from here.
	Config map[string]interface{} `json:"config,omitempty"`
}

// DependsOn reports whether the node declares a direct dependency on id.
func (n *NodeSpec) DependsOn(id string) bool {
	for _, dep := range n.Dependencies {
		if dep == id {
			return true
		}
	}
	return false
}

// clone returns a deep copy so the graph's stored specs stay isolated from
// caller mutation.
func (n *NodeSpec) clone() *NodeSpec {
	c := *n
	c.Dependencies = append([]string(nil), n.Dependencies...)
	if n.Config != nil {
		c.Config = make(map[string]interface{}, len(n.Config))
		for k, v := range n.Config {
			c.Config[k] = v
		}
	}
	return &c
}
