package orchestrator

import (
	"fmt"

	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/domain"
	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/ports"
)

// Validator checks graphs before they are accepted for execution. Structural
// invariants (unique ids, acyclicity) are enforced by the Graph itself at
// construction; this layer checks what the graph cannot know: that every
// executor ref resolves against the registry the runs will use.
type Validator struct {
	registry ports.ExecutorRegistry
}

// NewValidator creates a new graph validator.
func NewValidator(registry ports.ExecutorRegistry) *Validator {
	return &Validator{registry: registry}
}

// Validate validates a graph for submission.
func (v *Validator) Validate(g *domain.Graph) error {
	if g == nil {
		return fmt.Errorf("graph is nil")
	}
	if g.ID == "" {
		return fmt.Errorf("graph ID is required")
	}
	if g.Len() == 0 {
		return fmt.Errorf("graph must have at least one node")
	}

	if _, err := g.ExecutionOrder(); err != nil {
		return fmt.Errorf("graph %s: %w", g.ID, err)
	}

	for id, spec := range g.Nodes() {
		if err := v.validateNode(id, spec); err != nil {
			return fmt.Errorf("invalid node %s: %w", id, err)
		}
	}

	return nil
}

// validateNode validates a single node spec.
func (v *Validator) validateNode(nodeID string, spec *domain.NodeSpec) error {
	if nodeID == "" || spec.ID == "" {
		return fmt.Errorf("node ID is required")
	}
	if spec.ExecutorRef == "" {
		return fmt.Errorf("executor ref is required")
	}
	if _, err := v.registry.Resolve(spec.ExecutorRef); err != nil {
		return err
	}
	if spec.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry policy requires max_attempts >= 1")
	}
	return nil
}
