package checkpoint

import (
	"context"
	"errors"
	"time"
)

// Saver interface for checkpoint persistence (DIP - Dependency Inversion)
// PRINCIPLES:
// - ISP: Interface segregation with ≤5 methods
// - DIP: Core domain depends on interface, not implementations
// - SRP: Single responsibility - checkpoint persistence
type Saver interface {
	// Save persists a checkpoint
	Save(ctx context.Context, checkpoint *Checkpoint) error

	// Load retrieves a checkpoint by ID
	Load(ctx context.Context, id string) (*Checkpoint, error)

	// List returns checkpoints matching the filter, newest first
	List(ctx context.Context, filter Filter) ([]*Checkpoint, error)

	// Delete removes a checkpoint by ID
	Delete(ctx context.Context, id string) error
}

// Filter for checkpoint queries (ISP - segregated interface)
type Filter struct {
	GraphID  string     `json:"graph_id,omitempty"`
	ThreadID string     `json:"thread_id,omitempty"`
	Limit    int        `json:"limit,omitempty"`
	Offset   int        `json:"offset,omitempty"`
	Since    *time.Time `json:"since,omitempty"`
	Before   *time.Time `json:"before,omitempty"`
	Tags     []string   `json:"tags,omitempty"`
}

// Validate ensures filter parameters are valid
func (f *Filter) Validate() error {
	if f.Limit < 0 {
		return ErrInvalidLimit
	}
	if f.Offset < 0 {
		return ErrInvalidOffset
	}
	if f.Since != nil && f.Before != nil && f.Since.After(*f.Before) {
		return ErrInvalidTimeRange
	}
	return nil
}

// Matches reports whether cp satisfies every criterion of f except paging.
func (f *Filter) Matches(cp *Checkpoint) bool {
	if f.GraphID != "" && cp.GraphID != f.GraphID {
		return false
	}
	if f.ThreadID != "" && cp.ThreadID != f.ThreadID {
		return false
	}
	if f.Since != nil && !cp.Timestamp.After(*f.Since) {
		return false
	}
	if f.Before != nil && !cp.Timestamp.Before(*f.Before) {
		return false
	}
	for _, tag := range f.Tags {
		if !cp.HasTag(tag) {
			return false
		}
	}
	return true
}

// Latest returns the newest checkpoint of a thread, or ErrCheckpointNotFound.
func Latest(ctx context.Context, saver Saver, graphID, threadID string) (*Checkpoint, error) {
	if threadID == "" {
		return nil, ErrInvalidThreadID
	}
	cps, err := saver.List(ctx, Filter{GraphID: graphID, ThreadID: threadID, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(cps) == 0 {
		return nil, ErrCheckpointNotFound
	}
	return cps[0], nil
}

// IsNotFound reports whether err means no checkpoint exists.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCheckpointNotFound)
}
