// Package graphrepo keeps compiled graph definitions in memory so the CLI
// and server can describe them.
package graphrepo

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/flowgraph/ragagent/internal/app/usecases"
	"github.com/flowgraph/ragagent/internal/core/graph"
	"github.com/flowgraph/ragagent/pkg/validation"
)

// InMemoryGraphRepository provides an in-memory implementation of a graph repository
// PRINCIPLES:
// - KISS: Simple map-based storage
// - SRP: Only responsible for graph persistence
// - Thread-safe
type InMemoryGraphRepository struct {
	mu     sync.RWMutex
	graphs map[string]*graph.Graph
}

var _ usecases.GraphRepository = (*InMemoryGraphRepository)(nil)

func NewInMemoryGraphRepository() *InMemoryGraphRepository {
	return &InMemoryGraphRepository{
		graphs: make(map[string]*graph.Graph),
	}
}

// Save validates g, including reachability, and stores it under g.ID.
// A graph with the same ID is replaced.
func (r *InMemoryGraphRepository) Save(ctx context.Context, g *graph.Graph) error {
	if err := validation.ValidateCoreGraph(g, validation.GraphValidationOptions{CheckReachability: true}); err != nil {
		return fmt.Errorf("invalid graph: %w", err)
	}
	if g.ID == "" {
		return fmt.Errorf("invalid graph: %w", graph.ErrInvalidGraphName)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graphs[g.ID] = g
	return nil
}

func (r *InMemoryGraphRepository) Get(ctx context.Context, id string) (*graph.Graph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.graphs[id]
	if !ok {
		return nil, graph.ErrGraphNotFound
	}
	return g, nil
}

// List returns the stored graphs ordered by ID.
func (r *InMemoryGraphRepository) List(ctx context.Context) ([]*graph.Graph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*graph.Graph, 0, len(r.graphs))
	for _, g := range r.graphs {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
