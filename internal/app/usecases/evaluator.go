package usecases

import (
	"context"
	"fmt"

	"github.com/flowgraph/ragagent/internal/core/graph"
)

// DefaultEdgeEvaluator resolves static edges and conditional branches
// PRINCIPLES:
// - SRP: Only responsible for choosing destinations
// - DRY: One code path for START and for regular nodes
type DefaultEdgeEvaluator struct {
	graph   *graph.Graph
	routers map[string]RouterFunc
}

// NewDefaultEdgeEvaluator creates a new edge evaluator
func NewDefaultEdgeEvaluator(g *graph.Graph) *DefaultEdgeEvaluator {
	return &DefaultEdgeEvaluator{
		graph:   g,
		routers: make(map[string]RouterFunc),
	}
}

// RegisterRouter binds the router of the branch leaving source.
func (e *DefaultEdgeEvaluator) RegisterRouter(source string, router RouterFunc) {
	e.routers[source] = router
}

// CloneFor returns an evaluator over g with a snapshot of the routers.
func (e *DefaultEdgeEvaluator) CloneFor(g *graph.Graph) *DefaultEdgeEvaluator {
	c := NewDefaultEdgeEvaluator(g)
	for src, r := range e.routers {
		c.routers[src] = r
	}
	return c
}

// HasRouter reports whether source has a router.
func (e *DefaultEdgeEvaluator) HasRouter(source string) bool {
	_, ok := e.routers[source]
	return ok
}

// Next returns the static successors of source followed by the
// destinations its router selects, without duplicates.
func (e *DefaultEdgeEvaluator) Next(ctx context.Context, source string, state map[string]interface{}) ([]string, error) {
	next := e.graph.Successors(source)

	branch, hasBranch := e.graph.Branches[source]
	router, hasRouter := e.routers[source]
	if !hasBranch || !hasRouter {
		return next, nil
	}

	keys, err := router(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("router of %s: %w", source, err)
	}
	seen := make(map[string]bool, len(next))
	for _, n := range next {
		seen[n] = true
	}
	for _, key := range keys {
		target, ok := branch.Resolve(key)
		if !ok {
			return nil, fmt.Errorf("%w: %q from %s", ErrUnknownDestination, key, source)
		}
		if target != graph.End {
			if _, exists := e.graph.Nodes[target]; !exists {
				return nil, fmt.Errorf("%w: %q from %s", ErrUnknownDestination, target, source)
			}
		}
		if !seen[target] {
			seen[target] = true
			next = append(next, target)
		}
	}
	return next, nil
}
