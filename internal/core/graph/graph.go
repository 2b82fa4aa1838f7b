// Package graph provides the core graph domain entities
// following Clean Architecture principles with zero external dependencies.
package graph

import (
	"sort"
	"time"
)

// Sentinel node IDs marking where a run enters and leaves the graph.
// They are never registered as nodes.
const (
	Start = "__start__"
	End   = "__end__"
)

// IsSentinel reports whether id is Start or End.
func IsSentinel(id string) bool {
	return id == Start || id == End
}

// Graph represents the core graph entity
// PRINCIPLES:
// - KISS: Simple struct, no complex hierarchies
// - SRP: Only responsible for graph structure, not execution
type Graph struct {
	ID         string                        `json:"id"`
	Name       string                        `json:"name"`
	Nodes      map[string]*Node              `json:"nodes"`
	Edges      []*Edge                       `json:"edges"`
	Branches   map[string]*ConditionalBranch `json:"branches,omitempty"`
	EntryPoint string                        `json:"entry_point"`
	Config     GraphConfig                   `json:"config"`
	CreatedAt  time.Time                     `json:"created_at"`
	UpdatedAt  time.Time                     `json:"updated_at"`
}

// GraphConfig holds graph configuration
type GraphConfig struct {
	InterruptBefore []string               `json:"interrupt_before,omitempty"`
	InterruptAfter  []string               `json:"interrupt_after,omitempty"`
	RecursionLimit  int                    `json:"recursion_limit,omitempty"`
	Timeout         time.Duration          `json:"timeout,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// New creates an empty graph.
func New(id, name string) *Graph {
	now := time.Now()
	return &Graph{
		ID:        id,
		Name:      name,
		Nodes:     make(map[string]*Node),
		Branches:  make(map[string]*ConditionalBranch),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy of the graph structure. Node metadata maps are
// copied one level deep.
func (g *Graph) Clone() *Graph {
	c := *g
	c.Nodes = make(map[string]*Node, len(g.Nodes))
	for id, n := range g.Nodes {
		nc := *n
		if n.Metadata != nil {
			nc.Metadata = make(map[string]interface{}, len(n.Metadata))
			for k, v := range n.Metadata {
				nc.Metadata[k] = v
			}
		}
		c.Nodes[id] = &nc
	}
	c.Edges = make([]*Edge, len(g.Edges))
	for i, e := range g.Edges {
		ec := *e
		c.Edges[i] = &ec
	}
	c.Branches = make(map[string]*ConditionalBranch, len(g.Branches))
	for src, b := range g.Branches {
		bc := &ConditionalBranch{Default: b.Default, Conditions: make(map[string]string, len(b.Conditions))}
		for k, v := range b.Conditions {
			bc.Conditions[k] = v
		}
		c.Branches[src] = bc
	}
	c.Config.InterruptBefore = append([]string(nil), g.Config.InterruptBefore...)
	c.Config.InterruptAfter = append([]string(nil), g.Config.InterruptAfter...)
	if g.Config.Metadata != nil {
		c.Config.Metadata = make(map[string]interface{}, len(g.Config.Metadata))
		for k, v := range g.Config.Metadata {
			c.Config.Metadata[k] = v
		}
	}
	return &c
}

// Validate ensures graph integrity
// PRINCIPLES:
// - SRP: Single responsibility - validation only
// - KISS: Simple validation rules, easy to understand
func (g *Graph) Validate() error {
	if g.Name == "" {
		return ErrInvalidGraphName
	}
	if g.EntryPoint == "" && g.Branches[Start] == nil {
		return ErrNoEntryPoint
	}
	if g.EntryPoint == "" {
		return nil
	}
	if _, exists := g.Nodes[g.EntryPoint]; !exists {
		return ErrInvalidEntryPoint
	}
	return nil
}

// AddNode adds a node to the graph
// PRINCIPLES:
// - KISS: Direct and simple implementation
// - SRP: Only adds node, doesn't validate graph
func (g *Graph) AddNode(node *Node) error {
	if node == nil {
		return ErrNilNode
	}
	if IsSentinel(node.ID) {
		return ErrReservedNodeID
	}
	if err := node.Validate(); err != nil {
		return err
	}
	if g.Nodes == nil {
		g.Nodes = make(map[string]*Node)
	}
	if _, exists := g.Nodes[node.ID]; exists {
		return ErrDuplicateNode
	}
	node.Index = len(g.Nodes)
	g.Nodes[node.ID] = node
	g.UpdatedAt = time.Now()
	return nil
}

// AddEdge adds an edge to the graph. Start may only appear as a source and
// End only as a target; the first Start edge sets the entry point.
func (g *Graph) AddEdge(edge *Edge) error {
	if edge == nil {
		return ErrNilEdge
	}
	if err := edge.Validate(); err != nil {
		return err
	}
	if err := g.checkEndpoints(edge.Source, edge.Target); err != nil {
		return err
	}
	for _, e := range g.Edges {
		if e.Source == edge.Source && e.Target == edge.Target && e.Type == edge.Type && e.Condition == edge.Condition {
			return ErrDuplicateEdge
		}
	}
	g.Edges = append(g.Edges, edge)
	if edge.Source == Start && g.EntryPoint == "" && edge.Type == EdgeTypeDefault {
		g.EntryPoint = edge.Target
	}
	g.UpdatedAt = time.Now()
	return nil
}

// AddBranch attaches conditional routing to source. One conditional edge is
// recorded per distinct target of the branch.
func (g *Graph) AddBranch(source string, branch *ConditionalBranch) error {
	if branch == nil {
		return ErrMissingConditional
	}
	if source == End {
		return ErrInvalidSource
	}
	if source != Start {
		if _, exists := g.Nodes[source]; !exists {
			return ErrSourceNodeNotFound
		}
	}
	if g.Branches == nil {
		g.Branches = make(map[string]*ConditionalBranch)
	}
	if _, exists := g.Branches[source]; exists {
		return ErrDuplicateBranch
	}
	for _, key := range branch.Keys() {
		target := branch.Conditions[key]
		if err := g.checkEndpoints(source, target); err != nil {
			return err
		}
	}
	if branch.Default != "" {
		if err := g.checkEndpoints(source, branch.Default); err != nil {
			return err
		}
	}

	g.Branches[source] = branch
	for _, key := range branch.Keys() {
		g.Edges = append(g.Edges, &Edge{
			Source:    source,
			Target:    branch.Conditions[key],
			Type:      EdgeTypeConditional,
			Condition: key,
		})
	}
	if branch.Default != "" {
		g.Edges = append(g.Edges, &Edge{
			Source:    source,
			Target:    branch.Default,
			Type:      EdgeTypeConditional,
			Condition: "default",
		})
	}
	g.UpdatedAt = time.Now()
	return nil
}

func (g *Graph) checkEndpoints(source, target string) error {
	if source == End {
		return ErrInvalidSource
	}
	if target == Start {
		return ErrInvalidTarget
	}
	if source != Start {
		if _, exists := g.Nodes[source]; !exists {
			return ErrSourceNodeNotFound
		}
	}
	if target != End {
		if _, exists := g.Nodes[target]; !exists {
			return ErrTargetNodeNotFound
		}
	}
	return nil
}

// NodeIDs returns node IDs in insertion order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := g.Nodes[ids[i]], g.Nodes[ids[j]]
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		return a.ID < b.ID
	})
	return ids
}

// EdgesFrom returns the edges leaving id, in insertion order.
func (g *Graph) EdgesFrom(id string) []*Edge {
	var out []*Edge
	for _, e := range g.Edges {
		if e.Source == id {
			out = append(out, e)
		}
	}
	return out
}

// Successors returns the distinct targets of the static edges leaving id.
func (g *Graph) Successors(id string) []string {
	return g.collect(func(e *Edge) (string, bool) {
		return e.Target, e.Source == id && !e.IsConditional()
	})
}

// Targets returns every possible destination of id, static or conditional.
func (g *Graph) Targets(id string) []string {
	return g.collect(func(e *Edge) (string, bool) {
		return e.Target, e.Source == id
	})
}

// Predecessors returns the distinct sources of edges entering id.
func (g *Graph) Predecessors(id string) []string {
	return g.collect(func(e *Edge) (string, bool) {
		return e.Source, e.Target == id
	})
}

func (g *Graph) collect(pick func(*Edge) (string, bool)) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range g.Edges {
		id, ok := pick(e)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
