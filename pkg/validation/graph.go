package validation

import (
	"fmt"

	coregraph "github.com/flowgraph/ragagent/internal/core/graph"
)

// GraphValidationOptions controls optional validation checks.
type GraphValidationOptions struct {
	// CheckCycles enables detection of directed cycles.
	CheckCycles bool
	// CheckReachability runs ValidateReachability as well.
	CheckReachability bool
}

// ValidateCoreGraph performs structural validation on the core graph entity.
// It is intended for graphs loaded from external sources where in-method guards
// (e.g., AddNode/AddEdge) may have been bypassed.
func ValidateCoreGraph(g *coregraph.Graph, opts ...GraphValidationOptions) error {
	if g == nil {
		return ErrNilGraph
	}
	if err := g.Validate(); err != nil {
		return err
	}

	for id, n := range g.Nodes {
		if n == nil {
			return ErrNilElement
		}
		if coregraph.IsSentinel(id) || coregraph.IsSentinel(n.ID) {
			return fmt.Errorf("%w: %s", coregraph.ErrReservedNodeID, id)
		}
		if n.ID != id {
			return fmt.Errorf("%w: node %q stored under %q", coregraph.ErrInvalidNodeID, n.ID, id)
		}
		if err := n.Validate(); err != nil {
			return fmt.Errorf("node %s: %w", id, err)
		}
	}

	type edgeKey struct{ s, t, ty, cond string }
	seenEdges := make(map[edgeKey]struct{})

	for _, e := range g.Edges {
		if e == nil {
			return ErrNilElement
		}
		if err := e.Validate(); err != nil {
			return err
		}
		if err := checkEndpoint(g, e.Source, e.Target); err != nil {
			return fmt.Errorf("edge %s -> %s: %w", e.Source, e.Target, err)
		}
		k := edgeKey{e.Source, e.Target, string(e.Type), e.Condition}
		if _, dup := seenEdges[k]; dup {
			return coregraph.ErrDuplicateEdge
		}
		seenEdges[k] = struct{}{}
	}

	for source, b := range g.Branches {
		if b == nil {
			return coregraph.ErrMissingConditional
		}
		if source != coregraph.Start {
			if _, ok := g.Nodes[source]; !ok {
				return fmt.Errorf("%w: %s", ErrDanglingBranch, source)
			}
		}
		for _, key := range b.Keys() {
			if err := checkEndpoint(g, source, b.Conditions[key]); err != nil {
				return fmt.Errorf("branch %s[%s]: %w", source, key, err)
			}
		}
		if b.Default != "" {
			if err := checkEndpoint(g, source, b.Default); err != nil {
				return fmt.Errorf("branch %s default: %w", source, err)
			}
		}
	}

	var cfg GraphValidationOptions
	if len(opts) > 0 {
		cfg = opts[0]
	}
	if cfg.CheckCycles && hasCycle(g) {
		return coregraph.ErrCyclicGraph
	}
	if cfg.CheckReachability {
		return ValidateReachability(g)
	}
	return nil
}

func checkEndpoint(g *coregraph.Graph, source, target string) error {
	switch {
	case source == coregraph.End:
		return coregraph.ErrInvalidSource
	case target == coregraph.Start:
		return coregraph.ErrInvalidTarget
	}
	if source != coregraph.Start {
		if _, ok := g.Nodes[source]; !ok {
			return coregraph.ErrSourceNodeNotFound
		}
	}
	if target != coregraph.End {
		if _, ok := g.Nodes[target]; !ok {
			return coregraph.ErrTargetNodeNotFound
		}
	}
	return nil
}

// ValidateReachability requires every node to be reachable from the entry
// point and to have a path to End. A dynamic branch, whose destinations are
// only known at run time, counts as reaching every node and End.
func ValidateReachability(g *coregraph.Graph) error {
	if g == nil {
		return ErrNilGraph
	}
	adj := adjacency(g)

	forward := walk(coregraph.Start, adj)
	for _, id := range g.NodeIDs() {
		if !forward[id] {
			return fmt.Errorf("%w: %s", ErrUnreachable, id)
		}
	}

	reverse := make(map[string][]string)
	for src, targets := range adj {
		for _, t := range targets {
			reverse[t] = append(reverse[t], src)
		}
	}
	backward := walk(coregraph.End, reverse)
	for _, id := range g.NodeIDs() {
		if !backward[id] {
			return fmt.Errorf("%w: %s", ErrNoPathToEnd, id)
		}
	}
	return nil
}

// adjacency lists every possible successor, including Start -> entry point
// and the implied targets of dynamic branches.
func adjacency(g *coregraph.Graph) map[string][]string {
	adj := make(map[string][]string)
	if g.EntryPoint != "" {
		adj[coregraph.Start] = append(adj[coregraph.Start], g.EntryPoint)
	}
	for _, e := range g.Edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
	}
	for source, b := range g.Branches {
		if b != nil && b.Dynamic() {
			adj[source] = append(adj[source], g.NodeIDs()...)
			adj[source] = append(adj[source], coregraph.End)
		}
	}
	return adj
}

func walk(from string, adj map[string][]string) map[string]bool {
	seen := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, v := range adj[u] {
			if !seen[v] {
				seen[v] = true
				stack = append(stack, v)
			}
		}
	}
	return seen
}

// hasCycle detects any cycle among real nodes using DFS with coloring.
func hasCycle(g *coregraph.Graph) bool {
	const (
		white = 0 // unvisited
		gray  = 1 // visiting
		black = 2 // visited
	)
	color := make(map[string]int, len(g.Nodes))
	adj := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		if coregraph.IsSentinel(e.Source) || coregraph.IsSentinel(e.Target) {
			continue
		}
		adj[e.Source] = append(adj[e.Source], e.Target)
	}
	var dfs func(string) bool
	dfs = func(u string) bool {
		color[u] = gray
		for _, v := range adj[u] {
			if color[v] == gray {
				return true // back-edge
			}
			if color[v] == white && dfs(v) {
				return true
			}
		}
		color[u] = black
		return false
	}
	for _, id := range g.NodeIDs() {
		if color[id] == white && dfs(id) {
			return true
		}
	}
	return false
}
