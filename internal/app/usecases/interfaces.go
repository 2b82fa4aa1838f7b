package usecases

import (
	"context"

	"github.com/flowgraph/ragagent/internal/app/dto"
	"github.com/flowgraph/ragagent/internal/core/checkpoint"
	"github.com/flowgraph/ragagent/internal/core/graph"
)

// NodeFunc is the body of a node. It reads the state snapshot of the
// current superstep and returns a partial update for the reducers.
type NodeFunc func(ctx context.Context, state map[string]interface{}) (map[string]interface{}, error)

// RouterFunc picks the destinations of a conditional branch. It returns
// router keys (or node IDs when the branch has no path map).
type RouterFunc func(ctx context.Context, state map[string]interface{}) ([]string, error)

// EventSink receives run events; it must not block for long.
type EventSink func(event dto.Event)

// GraphRepository defines the interface for graph storage and retrieval
// PRINCIPLES:
// - SRP: Only responsible for graph persistence
// - DIP: Used for dependency injection
type GraphRepository interface {
	Save(ctx context.Context, g *graph.Graph) error
	Get(ctx context.Context, id string) (*graph.Graph, error)
	List(ctx context.Context) ([]*graph.Graph, error)
}

// GraphExecutor defines the interface for running compiled graphs
// PRINCIPLES:
// - SRP: Single responsibility for graph execution orchestration
// - DIP: Depends on abstractions, not concretions
type GraphExecutor interface {
	// Run executes the graph; a nil input resumes an interrupted thread
	Run(ctx context.Context, input map[string]interface{}, cfg dto.RunConfig, sink EventSink) (*dto.RunResult, error)

	// GetState returns the latest persisted state of a thread
	GetState(ctx context.Context, threadID string) (*dto.ThreadState, error)

	// UpdateState applies update to a thread as if asNode had written it
	UpdateState(ctx context.Context, threadID string, update map[string]interface{}, asNode string) (*dto.ThreadState, error)

	// History lists the checkpoints of a thread, newest first
	History(ctx context.Context, threadID string, limit int) ([]*dto.ThreadState, error)
}

// NodeProcessor defines the interface for processing individual nodes
type NodeProcessor interface {
	// Process executes a single node against a state snapshot
	Process(ctx context.Context, node *graph.Node, state map[string]interface{}) (map[string]interface{}, error)

	// CanProcess returns true if a function is registered for the node
	CanProcess(nodeID string) bool
}

// EdgeEvaluator defines the interface for routing between nodes
type EdgeEvaluator interface {
	// Next returns the destinations of source given the state after its step
	Next(ctx context.Context, source string, state map[string]interface{}) ([]string, error)
}

// CheckpointManager defines the interface for checkpoint operations during execution
type CheckpointManager interface {
	Create(ctx context.Context, cp *checkpoint.Checkpoint) (string, error)
	Latest(ctx context.Context, graphID, threadID string) (*checkpoint.Checkpoint, error)
	History(ctx context.Context, graphID, threadID string, limit int) ([]*checkpoint.Checkpoint, error)
}
