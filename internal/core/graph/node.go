// Package graph provides node definitions
package graph

import (
	"regexp"
	"time"
)

// NodeType represents the type of node
type NodeType string

const (
	// NodeTypeFunction represents a plain state-transforming function
	NodeTypeFunction NodeType = "function"
	// NodeTypeTool represents a node calling an external tool such as a retriever
	NodeTypeTool NodeType = "tool"
	// NodeTypeAgent represents a node calling a language model
	NodeTypeAgent NodeType = "agent"
)

var nodeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-.:]+$`)

// Node represents a vertex in the graph
// PRINCIPLES:
// - KISS: Simple node representation
// - SRP: Only responsible for node data
type Node struct {
	ID          string                 `json:"id"`
	Type        NodeType               `json:"type"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Retries     int                    `json:"retries,omitempty"`
	Timeout     time.Duration          `json:"timeout,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Index       int                    `json:"index"`
}

// NewNode creates a function node named after its ID.
func NewNode(id string) *Node {
	return &Node{ID: id, Name: id, Type: NodeTypeFunction}
}

// Validate ensures node integrity
// PRINCIPLES:
// - SRP: Single responsibility - validation only
// - KISS: Simple validation, <10 lines
func (n *Node) Validate() error {
	if n.ID == "" || !nodeIDPattern.MatchString(n.ID) {
		return ErrInvalidNodeID
	}
	if n.Name == "" {
		return ErrInvalidNodeName
	}
	if n.Type == "" {
		return ErrInvalidNodeType
	}
	if n.Retries < 0 || n.Timeout < 0 {
		return ErrInvalidNodeConfig
	}
	return nil
}
