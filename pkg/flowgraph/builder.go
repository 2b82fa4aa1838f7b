package flowgraph

import (
	"fmt"
	"time"

	"github.com/flowgraph/ragagent/internal/app/dto"
	"github.com/flowgraph/ragagent/internal/app/usecases"
	coregraph "github.com/flowgraph/ragagent/internal/core/graph"
)

// StateGraph declares nodes and edges over a state schema. Builder methods
// return the graph for chaining and record the first error, which Err and
// Compile report.
type StateGraph struct {
	schema    *Schema
	graph     *coregraph.Graph
	processor *usecases.DefaultNodeProcessor
	evaluator *usecases.DefaultEdgeEvaluator
	err       error
}

// NewStateGraph starts a graph over schema. A nil schema replaces every
// key on write.
func NewStateGraph(schema *Schema) *StateGraph {
	if schema == nil {
		schema = NewSchema()
	}
	g := coregraph.New("graph", "graph")
	return &StateGraph{
		schema:    schema,
		graph:     g,
		processor: usecases.NewDefaultNodeProcessor(),
		evaluator: usecases.NewDefaultEdgeEvaluator(g),
	}
}

// NodeOption configures a node added with AddNode.
type NodeOption interface {
	applyNode(n *coregraph.Node)
}

// RunOption configures a single run.
type RunOption interface {
	applyRun(c *dto.RunConfig)
}

type nodeOptionFunc func(*coregraph.Node)

func (f nodeOptionFunc) applyNode(n *coregraph.Node) { f(n) }

type runOptionFunc func(*dto.RunConfig)

func (f runOptionFunc) applyRun(c *dto.RunConfig) { f(c) }

// TimeoutOption bounds a node attempt when passed to AddNode and a whole
// run when passed to Run, Invoke or Stream.
type TimeoutOption time.Duration

func (t TimeoutOption) applyNode(n *coregraph.Node) { n.Timeout = time.Duration(t) }
func (t TimeoutOption) applyRun(c *dto.RunConfig)   { c.Timeout = time.Duration(t) }

// WithTimeout sets a node or run timeout.
func WithTimeout(d time.Duration) TimeoutOption {
	return TimeoutOption(d)
}

// WithRetries retries a failing node up to n more times.
func WithRetries(n int) NodeOption {
	return nodeOptionFunc(func(node *coregraph.Node) { node.Retries = n })
}

// WithDescription documents a node in exports.
func WithDescription(desc string) NodeOption {
	return nodeOptionFunc(func(node *coregraph.Node) { node.Description = desc })
}

// WithNodeType tags a node as a function, tool or agent step.
func WithNodeType(t NodeType) NodeOption {
	return nodeOptionFunc(func(node *coregraph.Node) { node.Type = t })
}

// AddNode registers fn under name.
func (sg *StateGraph) AddNode(name string, fn NodeFunc, opts ...NodeOption) *StateGraph {
	if sg.err != nil {
		return sg
	}
	if fn == nil {
		sg.err = fmt.Errorf("add node %s: %w", name, ErrNilNodeFunc)
		return sg
	}
	node := coregraph.NewNode(name)
	for _, opt := range opts {
		opt.applyNode(node)
	}
	if err := sg.graph.AddNode(node); err != nil {
		sg.err = fmt.Errorf("add node %s: %w", name, err)
		return sg
	}
	sg.processor.Register(name, usecases.NodeFunc(fn))
	return sg
}

// AddEdge adds a fixed transition. Both ends must already be nodes or
// sentinels.
func (sg *StateGraph) AddEdge(from, to string) *StateGraph {
	if sg.err != nil {
		return sg
	}
	if err := sg.graph.AddEdge(&coregraph.Edge{Source: from, Target: to}); err != nil {
		sg.err = fmt.Errorf("add edge %s -> %s: %w", from, to, err)
	}
	return sg
}

// AddConditionalEdges routes from with router. pathMap maps router results
// to node names or END; when it is nil the router returns node names.
func (sg *StateGraph) AddConditionalEdges(from string, router RouterFunc, pathMap map[string]string) *StateGraph {
	if sg.err != nil {
		return sg
	}
	if router == nil {
		sg.err = fmt.Errorf("add conditional edges from %s: %w", from, ErrNilRouter)
		return sg
	}
	branch := &coregraph.ConditionalBranch{Conditions: make(map[string]string, len(pathMap))}
	for k, v := range pathMap {
		branch.Conditions[k] = v
	}
	if err := sg.graph.AddBranch(from, branch); err != nil {
		sg.err = fmt.Errorf("add conditional edges from %s: %w", from, err)
		return sg
	}
	sg.evaluator.RegisterRouter(from, usecases.RouterFunc(router))
	return sg
}

// SetEntryPoint is AddEdge(START, name).
func (sg *StateGraph) SetEntryPoint(name string) *StateGraph {
	return sg.AddEdge(START, name)
}

// SetFinishPoint is AddEdge(name, END).
func (sg *StateGraph) SetFinishPoint(name string) *StateGraph {
	return sg.AddEdge(name, END)
}

// Err returns the first builder error.
func (sg *StateGraph) Err() error {
	return sg.err
}
