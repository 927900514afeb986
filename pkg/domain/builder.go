package domain

import "fmt"

// PhaseSpec is the input to the convenience graph builders: one phase of a
// pipeline, carried into the generated NodeSpec verbatim.
type PhaseSpec struct {
	ID          string
	Name        string
	Type        NodeType
	ExecutorRef string
	Retry       RetryPolicy
	Condition   string
	Config      map[string]interface{}
}

func (p PhaseSpec) toNode(deps []string) *NodeSpec {
	name := p.Name
	if name == "" {
		name = p.ID
	}
	typ := p.Type
	if typ == "" {
		typ = NodeTypePhase
	}
	return &NodeSpec{
		ID:           p.ID,
		Name:         name,
		Type:         typ,
		Dependencies: deps,
		ExecutorRef:  p.ExecutorRef,
		Retry:        p.Retry.Normalize(),
		Condition:    p.Condition,
		Config:       p.Config,
	}
}

// NewChainGraph builds a linear pipeline: each phase depends on the one
// before it, yielding one execution level per phase.
func NewChainGraph(id, name string, phases []PhaseSpec) (*Graph, error) {
	if len(phases) == 0 {
		return nil, fmt.Errorf("chain graph requires at least one phase")
	}
	g := NewGraph(id, name)
	var prev string
	for i, p := range phases {
		var deps []string
		if i > 0 {
			deps = []string{prev}
		}
		if err := g.AddNode(p.toNode(deps)); err != nil {
			return nil, err
		}
		prev = p.ID
	}
	return g, nil
}

// NewFanOutGraph builds a fan-out/fan-in group: every parallel phase depends
// on entry, and exit depends on every parallel phase. The parallel phases
// form a single execution level.
func NewFanOutGraph(id, name string, entry PhaseSpec, parallel []PhaseSpec, exit PhaseSpec) (*Graph, error) {
	if len(parallel) == 0 {
		return nil, fmt.Errorf("fan-out graph requires at least one parallel phase")
	}
	g := NewGraph(id, name)
	if err := g.AddNode(entry.toNode(nil)); err != nil {
		return nil, err
	}
	fanIn := make([]string, 0, len(parallel))
	for _, p := range parallel {
		if err := g.AddNode(p.toNode([]string{entry.ID})); err != nil {
			return nil, err
		}
		fanIn = append(fanIn, p.ID)
	}
	if err := g.AddNode(exit.toNode(fanIn)); err != nil {
		return nil, err
	}
	return g, nil
}
