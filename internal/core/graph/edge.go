// Package graph provides edge definitions
package graph

import "sort"

// EdgeType represents the type of edge
type EdgeType string

const (
	// EdgeTypeDefault is always followed
	EdgeTypeDefault EdgeType = "default"
	// EdgeTypeConditional is followed when a router selects it
	EdgeTypeConditional EdgeType = "conditional"
)

// Edge represents a connection between nodes
// PRINCIPLES:
// - KISS: Simple edge representation
// - SRP: Only responsible for edge data
type Edge struct {
	ID        string   `json:"id,omitempty"`
	Source    string   `json:"source"`
	Target    string   `json:"target"`
	Type      EdgeType `json:"type"`
	Condition string   `json:"condition,omitempty"` // router key selecting a conditional edge
}

// Validate ensures edge integrity. Static self-loops would run forever and
// are rejected; a router may still route a node back to itself.
func (e *Edge) Validate() error {
	if e.Source == "" {
		return ErrInvalidSource
	}
	if e.Target == "" {
		return ErrInvalidTarget
	}
	if e.Type == "" {
		e.Type = EdgeTypeDefault
	}
	if e.Source == e.Target && e.Type == EdgeTypeDefault {
		return ErrSelfLoop
	}
	return nil
}

// IsConditional checks if edge is conditional
func (e *Edge) IsConditional() bool {
	return e.Type == EdgeTypeConditional
}

// ConditionalBranch maps router keys to destinations.
// An empty Conditions map means the router returns node IDs directly.
type ConditionalBranch struct {
	Conditions map[string]string `json:"conditions,omitempty"` // router key -> target node ID
	Default    string            `json:"default,omitempty"`    // target when the key is unknown
}

// Keys returns the router keys in sorted order.
func (b *ConditionalBranch) Keys() []string {
	keys := make([]string, 0, len(b.Conditions))
	for k := range b.Conditions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Dynamic reports whether the destinations are only known at run time.
func (b *ConditionalBranch) Dynamic() bool {
	return len(b.Conditions) == 0 && b.Default == ""
}

// Resolve maps a router result onto a destination.
func (b *ConditionalBranch) Resolve(key string) (string, bool) {
	if len(b.Conditions) == 0 {
		if key == "" && b.Default != "" {
			return b.Default, true
		}
		return key, key != ""
	}
	if target, ok := b.Conditions[key]; ok {
		return target, true
	}
	if b.Default != "" {
		return b.Default, true
	}
	return "", false
}
