package flowgraph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flowgraph/ragagent/internal/app/dto"
	"github.com/flowgraph/ragagent/internal/app/services"
	"github.com/flowgraph/ragagent/internal/app/usecases"
	coregraph "github.com/flowgraph/ragagent/internal/core/graph"
	"github.com/flowgraph/ragagent/pkg/validation"
)

type compileConfig struct {
	saver           Saver
	interruptBefore []string
	interruptAfter  []string
	logger          *slog.Logger
	graphID         string
	name            string
}

// CompileOption configures Compile.
type CompileOption func(*compileConfig)

// WithCheckpointer persists every step of every run. Runs then require a
// thread ID.
func WithCheckpointer(saver Saver) CompileOption {
	return func(c *compileConfig) { c.saver = saver }
}

// WithInterruptBefore pauses a run before any of nodes executes.
func WithInterruptBefore(nodes ...string) CompileOption {
	return func(c *compileConfig) { c.interruptBefore = append(c.interruptBefore, nodes...) }
}

// WithInterruptAfter pauses a run after any of nodes executes.
func WithInterruptAfter(nodes ...string) CompileOption {
	return func(c *compileConfig) { c.interruptAfter = append(c.interruptAfter, nodes...) }
}

// WithLogger sets the run logger.
func WithLogger(l *slog.Logger) CompileOption {
	return func(c *compileConfig) { c.logger = l }
}

// WithGraphID sets the ID checkpoints are stored under.
func WithGraphID(id string) CompileOption {
	return func(c *compileConfig) { c.graphID = id }
}

// WithName sets the graph name used in logs and exports.
func WithName(name string) CompileOption {
	return func(c *compileConfig) { c.name = name }
}

// CompiledGraph is an executable StateGraph.
type CompiledGraph struct {
	graph     *coregraph.Graph
	executor  *usecases.DefaultGraphExecutor
	persisted bool
}

// Compile validates the graph and returns an executable version of it.
// Every node must be reachable from START and must reach END.
func (sg *StateGraph) Compile(opts ...CompileOption) (*CompiledGraph, error) {
	if sg.err != nil {
		return nil, sg.err
	}
	var cfg compileConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	// The compiled graph owns copies; later builder calls do not reach it.
	g := sg.graph.Clone()
	processor := sg.processor.Clone()
	evaluator := sg.evaluator.CloneFor(g)
	if cfg.graphID != "" {
		g.ID = cfg.graphID
	}
	if cfg.name != "" {
		g.Name = cfg.name
	}

	if len(g.Successors(START)) == 0 && g.Branches[START] == nil {
		return nil, ErrNoEntryEdge
	}
	if err := validation.ValidateCoreGraph(g, validation.GraphValidationOptions{CheckReachability: true}); err != nil {
		return nil, fmt.Errorf("compile %s: %w", g.Name, err)
	}
	for _, id := range g.NodeIDs() {
		if !processor.CanProcess(id) {
			return nil, fmt.Errorf("compile %s: %w: %s", g.Name, ErrMissingNodeFunc, id)
		}
	}
	for _, id := range append(append([]string{}, cfg.interruptBefore...), cfg.interruptAfter...) {
		if _, ok := g.Nodes[id]; !ok {
			return nil, fmt.Errorf("compile %s: %w: %s", g.Name, ErrUnknownInterrupt, id)
		}
	}
	interrupts := usecases.NewInterruptManager(cfg.interruptBefore, cfg.interruptAfter)
	if interrupts.Enabled() && cfg.saver == nil {
		return nil, ErrInterruptNeedsSaver
	}
	g.Config.InterruptBefore = cfg.interruptBefore
	g.Config.InterruptAfter = cfg.interruptAfter

	execOpts := []usecases.ExecutorOption{
		usecases.WithInterrupts(interrupts),
		usecases.WithLogger(cfg.logger),
	}
	if cfg.saver != nil {
		execOpts = append(execOpts, usecases.WithCheckpoints(services.NewCheckpointService(cfg.saver)))
	}

	return &CompiledGraph{
		graph:     g,
		executor:  usecases.NewDefaultGraphExecutor(g, sg.schema, processor, evaluator, execOpts...),
		persisted: cfg.saver != nil,
	}, nil
}

// WithThreadID selects the conversation thread checkpoints belong to.
func WithThreadID(id string) RunOption {
	return runOptionFunc(func(c *dto.RunConfig) { c.ThreadID = id })
}

// WithRecursionLimit bounds the number of supersteps of a run.
func WithRecursionLimit(n int) RunOption {
	return runOptionFunc(func(c *dto.RunConfig) { c.RecursionLimit = n })
}

// WithParallelism bounds how many nodes of a step run at once.
func WithParallelism(n int) RunOption {
	return runOptionFunc(func(c *dto.RunConfig) { c.Parallelism = n })
}

// WithTags labels the checkpoints written by a run.
func WithTags(tags ...string) RunOption {
	return runOptionFunc(func(c *dto.RunConfig) { c.Tags = append(c.Tags, tags...) })
}

// WithDebug marks the run's log lines.
func WithDebug() RunOption {
	return runOptionFunc(func(c *dto.RunConfig) { c.Debug = true })
}

func (cg *CompiledGraph) runConfig(opts []RunOption) (dto.RunConfig, error) {
	var cfg dto.RunConfig
	for _, opt := range opts {
		opt.applyRun(&cfg)
	}
	if err := validation.ValidateStruct(&cfg); err != nil {
		return cfg, err
	}
	if cg.persisted && cfg.ThreadID == "" {
		return cfg, ErrThreadRequired
	}
	return cfg, nil
}

// Run executes the graph and reports every step. A nil input resumes the
// thread's pending nodes after an interrupt or UpdateState.
func (cg *CompiledGraph) Run(ctx context.Context, input State, opts ...RunOption) (*RunResult, error) {
	cfg, err := cg.runConfig(opts)
	if err != nil {
		return nil, err
	}
	return cg.executor.Run(ctx, input, cfg, nil)
}

// Invoke runs the graph and returns its final state. An interrupted run
// returns the state reached so far.
func (cg *CompiledGraph) Invoke(ctx context.Context, input State, opts ...RunOption) (State, error) {
	result, err := cg.Run(ctx, input, opts...)
	if result == nil {
		return nil, err
	}
	return result.State, err
}

// Stream runs the graph in the background and delivers its events. The
// channel is closed when the run ends; a failure arrives as a run_failed
// event. Cancelling ctx stops the run.
func (cg *CompiledGraph) Stream(ctx context.Context, input State, opts ...RunOption) (<-chan Event, error) {
	cfg, err := cg.runConfig(opts)
	if err != nil {
		return nil, err
	}
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		_, _ = cg.executor.Run(ctx, input, cfg, usecases.ChannelSink(ctx, events))
	}()
	return events, nil
}

// GetState returns the latest checkpoint of a thread.
func (cg *CompiledGraph) GetState(ctx context.Context, threadID string) (*ThreadState, error) {
	return cg.executor.GetState(ctx, threadID)
}

// UpdateState merges update into a thread as if asNode had produced it.
func (cg *CompiledGraph) UpdateState(ctx context.Context, threadID string, update State, asNode string) (*ThreadState, error) {
	return cg.executor.UpdateState(ctx, threadID, update, asNode)
}

// History lists a thread's checkpoints, newest first. limit 0 means all.
func (cg *CompiledGraph) History(ctx context.Context, threadID string, limit int) ([]*ThreadState, error) {
	return cg.executor.History(ctx, threadID, limit)
}

// Nodes returns the node names in the order they were added.
func (cg *CompiledGraph) Nodes() []string {
	return cg.graph.NodeIDs()
}

// Edges returns every edge, fixed and conditional, in insertion order.
func (cg *CompiledGraph) Edges() []Edge {
	out := make([]Edge, len(cg.graph.Edges))
	for i, e := range cg.graph.Edges {
		out[i] = *e
	}
	return out
}

// Graph returns the underlying graph definition.
func (cg *CompiledGraph) Graph() *Graph {
	return cg.graph
}

// Mermaid renders the graph as a mermaid flowchart.
func (cg *CompiledGraph) Mermaid() string {
	return cg.graph.ToMermaid()
}
