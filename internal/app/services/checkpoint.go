package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowgraph/ragagent/internal/app/dto"
	"github.com/flowgraph/ragagent/internal/core/checkpoint"
	"github.com/flowgraph/ragagent/internal/infrastructure/metrics"
)

// CheckpointService manages the checkpoints of graph threads
// PRINCIPLES:
// - SRP: Manages checkpoint operations for graph execution
// - DIP: Depends on checkpoint.Saver abstraction
type CheckpointService struct {
	saver     checkpoint.Saver
	createdBy string
}

// NewCheckpointService creates a new checkpoint service
func NewCheckpointService(saver checkpoint.Saver) *CheckpointService {
	return &CheckpointService{
		saver:     saver,
		createdBy: "ragagent",
	}
}

// Saver returns the underlying saver.
func (s *CheckpointService) Saver() checkpoint.Saver {
	return s.saver
}

// Create fills in ID, timestamp and version, then saves cp.
func (s *CheckpointService) Create(ctx context.Context, cp *checkpoint.Checkpoint) (string, error) {
	if cp.ID == "" {
		cp.ID = s.generateCheckpointID()
	}
	if cp.Timestamp.IsZero() {
		cp.Timestamp = time.Now()
	}
	if cp.Version == "" {
		cp.Version = checkpoint.Version
	}
	if cp.Metadata.CreatedBy == "" {
		cp.Metadata.CreatedBy = s.createdBy
	}
	if cp.State == nil {
		cp.State = map[string]interface{}{}
	}
	if err := cp.Validate(); err != nil {
		return "", err
	}

	if err := s.saver.Save(ctx, cp); err != nil {
		return "", fmt.Errorf("failed to save checkpoint: %w", err)
	}
	metrics.IncCheckpointsSaved()
	return cp.ID, nil
}

// Load retrieves a checkpoint by ID
func (s *CheckpointService) Load(ctx context.Context, checkpointID string) (*checkpoint.Checkpoint, error) {
	cp, err := s.saver.Load(ctx, checkpointID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return cp, nil
}

// Latest returns the newest checkpoint of a thread.
func (s *CheckpointService) Latest(ctx context.Context, graphID, threadID string) (*checkpoint.Checkpoint, error) {
	return checkpoint.Latest(ctx, s.saver, graphID, threadID)
}

// History lists the checkpoints of a thread, newest first.
func (s *CheckpointService) History(ctx context.Context, graphID, threadID string, limit int) ([]*checkpoint.Checkpoint, error) {
	if threadID == "" {
		return nil, checkpoint.ErrInvalidThreadID
	}
	filter := checkpoint.Filter{
		GraphID:  graphID,
		ThreadID: threadID,
		Limit:    limit,
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	checkpoints, err := s.saver.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return checkpoints, nil
}

// ThreadState converts a checkpoint into its public view.
func ThreadState(cp *checkpoint.Checkpoint) *dto.ThreadState {
	return &dto.ThreadState{
		ThreadID:     cp.ThreadID,
		CheckpointID: cp.ID,
		ParentID:     cp.ParentID,
		State:        cp.State,
		Next:         cp.Next,
		Step:         cp.Metadata.Step,
		Source:       cp.Metadata.Source,
		CreatedAt:    cp.Timestamp,
	}
}

// generateCheckpointID creates a unique checkpoint ID
func (s *CheckpointService) generateCheckpointID() string {
	return uuid.NewString()
}
