// Package checkpoint defines the snapshots a graph writes per thread after
// every superstep and the Saver interface the storage backends implement.
// It has no external dependencies.
package checkpoint

import (
	"time"
)

// Version is written into every new checkpoint.
const Version = "2"

// Source values recorded in Metadata.Source.
const (
	SourceInput     = "input"     // input reduced into state, nothing run yet
	SourceLoop      = "loop"      // written after a superstep
	SourceInterrupt = "interrupt" // run paused before the next superstep
	SourceUpdate    = "update"    // state edited from outside a run
)

// Checkpoint represents a saved state in the graph execution
// PRINCIPLES:
// - KISS: Simple struct with clear fields
// - SRP: Only responsible for checkpoint data structure
type Checkpoint struct {
	ID        string                 `json:"id"`
	GraphID   string                 `json:"graph_id"`
	ThreadID  string                 `json:"thread_id"`
	ParentID  string                 `json:"parent_id,omitempty"`
	State     map[string]interface{} `json:"state"`
	Next      []string               `json:"next,omitempty"`
	Metadata  Metadata               `json:"metadata"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
}

// Metadata contains additional information about a checkpoint
type Metadata struct {
	Step      int                    `json:"step"`
	Source    string                 `json:"source"`
	Writes    map[string]interface{} `json:"writes,omitempty"`
	RunID     string                 `json:"run_id,omitempty"`
	CreatedBy string                 `json:"created_by,omitempty"`
	Tags      []string               `json:"tags,omitempty"`
}

// Validate ensures checkpoint integrity
// PRINCIPLES:
// - SRP: Single responsibility - validation only
// - KISS: Simple validation rules, easy to understand
func (c *Checkpoint) Validate() error {
	if c.ID == "" {
		return ErrInvalidCheckpointID
	}
	if c.GraphID == "" {
		return ErrInvalidGraphID
	}
	if c.ThreadID == "" {
		return ErrInvalidThreadID
	}
	if c.State == nil {
		return ErrNilState
	}
	return nil
}

// Pending reports whether the run that wrote c stopped with nodes left to execute.
func (c *Checkpoint) Pending() bool {
	return len(c.Next) > 0
}

// HasTag reports whether the checkpoint carries tag.
func (c *Checkpoint) HasTag(tag string) bool {
	for _, t := range c.Metadata.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Newer orders checkpoints newest first: by timestamp, then by step.
func Newer(a, b *Checkpoint) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.Metadata.Step > b.Metadata.Step
}
