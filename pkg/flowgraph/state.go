package flowgraph

import (
	"context"

	"github.com/flowgraph/ragagent/internal/app/dto"
	"github.com/flowgraph/ragagent/internal/core/channel"
	"github.com/flowgraph/ragagent/internal/core/checkpoint"
	coregraph "github.com/flowgraph/ragagent/internal/core/graph"
	"github.com/flowgraph/ragagent/internal/core/message"
)

// Sentinels marking where a run enters and leaves the graph.
const (
	START = coregraph.Start
	END   = coregraph.End
)

// MessagesKey is the state key of the conversation.
const MessagesKey = "messages"

// State is the shared state passed to nodes. Nodes return partial updates
// that are merged into it by the schema's reducers.
type State = map[string]any

// NodeFunc computes a partial state update from a state snapshot.
type NodeFunc func(ctx context.Context, state State) (State, error)

// RouterFunc selects the destinations of a conditional edge. With a path
// map the returned values are its keys, otherwise they are node names.
type RouterFunc func(ctx context.Context, state State) ([]string, error)

// Re-exported types so callers need not import internal packages.
type (
	Schema      = channel.Schema
	Reducer     = channel.KeyReducer
	Message     = message.Message
	Graph       = coregraph.Graph
	Node        = coregraph.Node
	NodeType    = coregraph.NodeType
	Edge        = coregraph.Edge
	RunResult   = dto.RunResult
	RunStatus   = dto.RunStatus
	StepResult  = dto.StepResult
	Event       = dto.Event
	EventType   = dto.EventType
	ThreadState = dto.ThreadState
	Saver       = checkpoint.Saver
)

// Node types recorded with WithNodeType.
const (
	NodeTypeFunction = coregraph.NodeTypeFunction
	NodeTypeTool     = coregraph.NodeTypeTool
	NodeTypeAgent    = coregraph.NodeTypeAgent
)

// Run statuses reported in RunResult.Status.
const (
	RunStatusCompleted   = dto.RunStatusCompleted
	RunStatusInterrupted = dto.RunStatusInterrupted
	RunStatusFailed      = dto.RunStatusFailed
)

// Reducers for use with Schema.WithReducer.
var (
	AddMessages Reducer = channel.Messages
	Append      Reducer = channel.Append
	Replace     Reducer = channel.Replace
	Merge       Reducer = channel.Merge
)

// NewSchema returns a schema where every key is replaced on write.
func NewSchema() *Schema {
	return channel.NewSchema()
}

// MessagesState is the schema of a chat agent: messages accumulate through
// AddMessages, deduplicated by ID.
func MessagesState() *Schema {
	return channel.NewSchema().WithReducer(MessagesKey, AddMessages)
}

// Messages returns the conversation held in state.
func Messages(state State) ([]Message, error) {
	return message.Coerce(state[MessagesKey])
}
