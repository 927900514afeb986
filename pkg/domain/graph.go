package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Graph is the dependency structure of a workflow: an id-indexed arena of
// NodeSpecs plus adjacency lists derived from each node's declared
// dependencies. A Graph is built once, validated at mutation time (duplicate
// ids and cycles are rejected before they are committed), and then reused
// read-only across many runs.
type Graph struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	nodes map[string]*NodeSpec

	// outgoing[from] lists nodes that depend on from.
	outgoing map[string][]string
}

// NewGraph creates an empty graph.
func NewGraph(id, name string) *Graph {
	return &Graph{
		ID:       id,
		Name:     name,
		nodes:    make(map[string]*NodeSpec),
		outgoing: make(map[string][]string),
	}
}

// AddNode registers a node spec. The spec's declared dependencies become
// edges; every referenced dependency must already be registered. On any
// failure the graph is left unchanged.
func (g *Graph) AddNode(spec *NodeSpec) error {
	if spec == nil || spec.ID == "" {
		return fmt.Errorf("node spec requires an id")
	}
	if _, exists := g.nodes[spec.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNodeID, spec.ID)
	}
	for _, dep := range spec.Dependencies {
		if _, exists := g.nodes[dep]; !exists {
			return fmt.Errorf("%w: node %s depends on %s", ErrUnknownNode, spec.ID, dep)
		}
	}

	stored := spec.clone()
	stored.Retry = stored.Retry.Normalize()
	g.nodes[stored.ID] = stored
	for _, dep := range stored.Dependencies {
		g.outgoing[dep] = append(g.outgoing[dep], stored.ID)
	}
	return nil
}

// AddEdge records that node to depends on node from. Cycle detection runs
// before the edge is committed; on ErrCycleDetected the graph is exactly as
// it was before the call.
func (g *Graph) AddEdge(from, to string) error {
	if _, exists := g.nodes[from]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownNode, from)
	}
	target, exists := g.nodes[to]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownNode, to)
	}
	if target.DependsOn(from) {
		return nil
	}

	// Tentatively link, then verify a topological order still exists.
	target.Dependencies = append(target.Dependencies, from)
	g.outgoing[from] = append(g.outgoing[from], to)

	if _, err := g.topoLevels(); err != nil {
		target.Dependencies = target.Dependencies[:len(target.Dependencies)-1]
		g.outgoing[from] = g.outgoing[from][:len(g.outgoing[from])-1]
		return fmt.Errorf("%w: edge %s -> %s", ErrCycleDetected, from, to)
	}
	return nil
}

// Node returns the spec for id, or nil if unregistered.
func (g *Graph) Node(id string) *NodeSpec {
	return g.nodes[id]
}

// Nodes returns the node arena. Callers must treat it as read-only.
func (g *Graph) Nodes() map[string]*NodeSpec {
	return g.nodes
}

// NodeIDs returns all node ids in lexical order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dependents returns the ids of nodes that directly depend on id.
func (g *Graph) Dependents(id string) []string {
	return g.outgoing[id]
}

// Len returns the number of registered nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// ExecutionOrder returns Kahn levels: level 0 holds nodes with no
// dependencies, level k holds nodes whose dependencies all live in levels
// 0..k-1. Level membership is deterministic; ids within a level are sorted
// for stable output but carry no ordering guarantee at execution time.
func (g *Graph) ExecutionOrder() ([][]string, error) {
	return g.topoLevels()
}

func (g *Graph) topoLevels() ([][]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	for id, spec := range g.nodes {
		indegree[id] = len(spec.Dependencies)
	}

	var levels [][]string
	remaining := len(g.nodes)
	current := make([]string, 0)
	for id, deg := range indegree {
		if deg == 0 {
			current = append(current, id)
		}
	}

	for len(current) > 0 {
		sort.Strings(current)
		levels = append(levels, current)
		remaining -= len(current)

		next := make([]string, 0)
		for _, id := range current {
			for _, dependent := range g.outgoing[id] {
				indegree[dependent]--
				if indegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		current = next
	}

	if remaining > 0 {
		return nil, ErrCycleDetected
	}
	return levels, nil
}

// ReadyNodes returns ids of nodes whose full dependency set is contained in
// satisfied and which are not themselves in satisfied. Re-evaluated after
// every node transition during a run.
func (g *Graph) ReadyNodes(satisfied map[string]bool) []string {
	ready := make([]string, 0)
	for id, spec := range g.nodes {
		if satisfied[id] {
			continue
		}
		ok := true
		for _, dep := range spec.Dependencies {
			if !satisfied[dep] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)
	return ready
}

// graphDoc is the serialized form of a Graph.
type graphDoc struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Nodes    map[string]*NodeSpec   `json:"nodes"`
}

// ToMap serializes the graph to a plain document. Edges are carried inside
// each node's dependency list, so the document round-trips the full edge set.
func (g *Graph) ToMap() (map[string]interface{}, error) {
	doc := graphDoc{ID: g.ID, Name: g.Name, Metadata: g.Metadata, Nodes: g.nodes}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graph: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph document: %w", err)
	}
	return out, nil
}

// GraphFromMap rebuilds a graph from a document produced by ToMap. The
// result passes through AddNode, so a corrupted document with duplicate or
// cyclic entries is rejected.
func GraphFromMap(m map[string]interface{}) (*Graph, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graph document: %w", err)
	}
	var doc graphDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph: %w", err)
	}

	g := NewGraph(doc.ID, doc.Name)
	g.Metadata = doc.Metadata

	// Insert in dependency order so AddNode's referenced-node check holds.
	pending := make(map[string]*NodeSpec, len(doc.Nodes))
	for id, spec := range doc.Nodes {
		if spec.ID == "" {
			spec.ID = id
		}
		pending[id] = spec
	}
	for len(pending) > 0 {
		progressed := false
		ids := make([]string, 0, len(pending))
		for id := range pending {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			spec := pending[id]
			insertable := true
			for _, dep := range spec.Dependencies {
				if _, done := g.nodes[dep]; !done {
					insertable = false
					break
				}
			}
			if !insertable {
				continue
			}
			if err := g.AddNode(spec); err != nil {
				return nil, err
			}
			delete(pending, id)
			progressed = true
		}
		if !progressed {
			return nil, fmt.Errorf("%w: graph document is not acyclic", ErrCycleDetected)
		}
	}
	return g, nil
}
