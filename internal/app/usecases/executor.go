package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flowgraph/ragagent/internal/app/dto"
	"github.com/flowgraph/ragagent/internal/app/services"
	"github.com/flowgraph/ragagent/internal/core/channel"
	"github.com/flowgraph/ragagent/internal/core/checkpoint"
	"github.com/flowgraph/ragagent/internal/core/graph"
	"github.com/flowgraph/ragagent/internal/core/pregel"
	"github.com/flowgraph/ragagent/internal/infrastructure/metrics"
	"github.com/flowgraph/ragagent/internal/logging"
)

// DefaultGraphExecutor runs a graph in supersteps
// PRINCIPLES:
// - KISS: One loop, one superstep per iteration
// - SRP: Orchestration only; nodes, routing and persistence are injected
type DefaultGraphExecutor struct {
	graph       *graph.Graph
	reducer     channel.StateReducer
	processor   NodeProcessor
	evaluator   EdgeEvaluator
	checkpoints CheckpointManager
	interrupts  *InterruptManager
	logger      *slog.Logger
}

// ExecutorOption configures a DefaultGraphExecutor.
type ExecutorOption func(*DefaultGraphExecutor)

// WithCheckpoints enables persistence; runs then require a thread ID.
func WithCheckpoints(cm CheckpointManager) ExecutorOption {
	return func(e *DefaultGraphExecutor) { e.checkpoints = cm }
}

// WithInterrupts sets where runs pause.
func WithInterrupts(im *InterruptManager) ExecutorOption {
	return func(e *DefaultGraphExecutor) { e.interrupts = im }
}

// WithLogger sets the executor logger.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *DefaultGraphExecutor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewDefaultGraphExecutor creates a new graph executor with dependencies
func NewDefaultGraphExecutor(
	g *graph.Graph,
	reducer channel.StateReducer,
	processor NodeProcessor,
	evaluator EdgeEvaluator,
	opts ...ExecutorOption,
) *DefaultGraphExecutor {
	e := &DefaultGraphExecutor{
		graph:     g,
		reducer:   reducer,
		processor: processor,
		evaluator: evaluator,
		logger:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run carries the mutable bookkeeping of one Run call.
type run struct {
	id       string
	cfg      dto.RunConfig
	sink     EventSink
	state    map[string]interface{}
	step     int
	parentID string
	result   *dto.RunResult
	logger   *slog.Logger
}

func (r *run) emit(ev dto.Event) {
	if r.sink == nil {
		return
	}
	ev.RunID = r.id
	ev.ThreadID = r.cfg.ThreadID
	ev.Timestamp = time.Now()
	r.sink(ev)
}

// Run executes the graph. A non-empty input is reduced into the thread's
// state and the graph starts from START. A nil or empty input resumes the
// nodes left pending by an interrupted run on the same thread.
func (e *DefaultGraphExecutor) Run(ctx context.Context, input map[string]interface{}, cfg dto.RunConfig, sink EventSink) (*dto.RunResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if e.checkpoints != nil && cfg.ThreadID == "" {
		return nil, dto.ErrThreadRequired
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	r := &run{
		id:   uuid.NewString(),
		cfg:  cfg,
		sink: sink,
		result: &dto.RunResult{
			GraphID:   e.graph.ID,
			ThreadID:  cfg.ThreadID,
			Status:    dto.RunStatusRunning,
			Steps:     make([]dto.StepResult, 0),
			StartTime: time.Now(),
		},
	}
	r.result.RunID = r.id
	r.logger = e.logger.With(slog.String("run_id", r.id), slog.String("graph", e.graph.Name))
	if cfg.ThreadID != "" {
		r.logger = r.logger.With(slog.String("thread_id", cfg.ThreadID))
	}
	if cfg.Debug {
		r.logger = r.logger.With(slog.Bool("debug", true))
	}
	ctx = logging.WithLogger(ctx, r.logger)

	metrics.IncRuns(metrics.RunStarted)
	r.logger.Info("run started")
	r.emit(dto.Event{Type: dto.EventRunStarted})

	err := e.execute(ctx, r, input)

	r.result.EndTime = time.Now()
	r.result.Duration = r.result.EndTime.Sub(r.result.StartTime)
	r.result.State = r.state
	if err != nil {
		r.result.Status = dto.RunStatusFailed
		r.result.Error = err.Error()
		metrics.IncRuns(metrics.RunFailed)
		r.logger.Error("run failed", slog.Any("error", err))
		r.emit(dto.Event{Type: dto.EventRunFailed, Step: r.step, Error: err.Error()})
		return r.result, err
	}
	if r.result.Status == dto.RunStatusInterrupted {
		metrics.IncRuns(metrics.RunInterrupted)
		r.logger.Info("run interrupted", slog.Any("next", r.result.Next))
		return r.result, nil
	}
	r.result.Status = dto.RunStatusCompleted
	metrics.IncRuns(metrics.RunCompleted)
	r.logger.Info("run completed", slog.Int("steps", len(r.result.Steps)), slog.Duration("duration", r.result.Duration))
	r.emit(dto.Event{Type: dto.EventRunFinished, Step: r.step, State: r.state})
	return r.result, nil
}

// execute orchestrates the supersteps of a run
func (e *DefaultGraphExecutor) execute(ctx context.Context, r *run, input map[string]interface{}) error {
	var latest *checkpoint.Checkpoint
	if e.checkpoints != nil {
		cp, err := e.checkpoints.Latest(ctx, e.graph.ID, r.cfg.ThreadID)
		if err != nil && !checkpoint.IsNotFound(err) {
			return fmt.Errorf("failed to load thread: %w", err)
		}
		latest = cp
	}
	if latest != nil {
		r.state = latest.State
		r.step = latest.Metadata.Step
		r.parentID = latest.ID
	}

	var next []string
	resumed := false
	if len(input) == 0 {
		switch {
		case latest == nil:
			return dto.ErrEmptyInput
		case !latest.Pending():
			return dto.ErrNoPendingRun
		}
		next = latest.Next
		// A paused or edited thread continues past its interrupt-before nodes.
		resumed = latest.Metadata.Source == checkpoint.SourceInterrupt || latest.Metadata.Source == checkpoint.SourceUpdate
		r.logger.Info("resuming thread", slog.Any("next", next))
	} else {
		state, err := e.reducer.Reduce(r.state, input)
		if err != nil {
			return fmt.Errorf("invalid input: %w", err)
		}
		r.state = state
		if next, err = e.evaluator.Next(ctx, graph.Start, r.state); err != nil {
			return err
		}
		if err := e.save(ctx, r, checkpoint.SourceInput, next, map[string]interface{}{graph.Start: input}); err != nil {
			return err
		}
	}

	for supersteps := 0; len(next) > 0; supersteps++ {
		if supersteps >= r.cfg.RecursionLimit {
			return fmt.Errorf("%w (limit %d)", dto.ErrRecursionLimit, r.cfg.RecursionLimit)
		}
		if hit := e.interrupts.Before(next); len(hit) > 0 && !(resumed && supersteps == 0) {
			return e.interrupt(ctx, r, next, map[string]interface{}{"interrupt_before": hit})
		}

		executed, nextSet, err := e.superstep(ctx, r, next)
		if err != nil {
			return err
		}
		if hit := e.interrupts.After(executed); len(hit) > 0 && len(nextSet) > 0 {
			r.result.Status = dto.RunStatusInterrupted
			r.result.Next = nextSet
			r.emit(dto.Event{Type: dto.EventInterrupted, Step: r.step, Next: nextSet})
			return nil
		}
		next = nextSet
	}
	return nil
}

// superstep runs every node of next against the same state, reduces their
// writes in order and computes the following step.
func (e *DefaultGraphExecutor) superstep(ctx context.Context, r *run, next []string) ([]string, []string, error) {
	tasks := make([]pregel.Task, 0, len(next))
	for _, id := range next {
		node, exists := e.graph.Nodes[id]
		if !exists {
			return nil, nil, fmt.Errorf("%w: %s", dto.ErrUnknownNode, id)
		}
		state := r.state
		tasks = append(tasks, pregel.Task{
			Node: id,
			Run: func(ctx context.Context) (map[string]interface{}, error) {
				return e.processor.Process(ctx, node, state)
			},
		})
	}

	ss, writes, err := pregel.Run(ctx, r.step+1, tasks, r.cfg.Parallelism)
	if err != nil {
		return nil, nil, err
	}
	metrics.IncSupersteps()

	updates := make(map[string]map[string]interface{}, len(writes))
	for _, w := range writes {
		state, err := e.reducer.Reduce(r.state, w.Update)
		if err != nil {
			return nil, nil, fmt.Errorf("node %s: %w", w.Node, err)
		}
		r.state = state
		updates[w.Node] = w.Update
		r.emit(dto.Event{Type: dto.EventNodeFinished, Step: ss.StepNumber, Node: w.Node, Update: w.Update})
	}

	var nextSet []string
	seen := make(map[string]bool)
	for _, id := range ss.Nodes {
		dests, err := e.evaluator.Next(ctx, id, r.state)
		if err != nil {
			return nil, nil, err
		}
		for _, d := range dests {
			if d == graph.End || seen[d] {
				continue
			}
			seen[d] = true
			nextSet = append(nextSet, d)
		}
	}

	writesMeta := make(map[string]interface{}, len(updates))
	for k, v := range updates {
		writesMeta[k] = v
	}
	if err := e.save(ctx, r, checkpoint.SourceLoop, nextSet, writesMeta); err != nil {
		return nil, nil, err
	}

	r.result.Steps = append(r.result.Steps, dto.StepResult{
		StepNumber:   ss.StepNumber,
		Nodes:        ss.Nodes,
		Writes:       updates,
		StartTime:    ss.StartTime,
		EndTime:      ss.EndTime,
		Duration:     ss.Duration(),
		CheckpointID: r.result.CheckpointID,
	})
	r.logger.Debug("superstep finished",
		slog.Int("step", ss.StepNumber),
		slog.Any("nodes", ss.Nodes),
		slog.Any("next", nextSet),
		slog.Duration("duration", ss.Duration()))
	r.emit(dto.Event{Type: dto.EventStepFinished, Step: ss.StepNumber, State: r.state, Next: nextSet})
	return ss.Nodes, nextSet, nil
}

func (e *DefaultGraphExecutor) interrupt(ctx context.Context, r *run, next []string, writes map[string]interface{}) error {
	if err := e.save(ctx, r, checkpoint.SourceInterrupt, next, writes); err != nil {
		return err
	}
	r.result.Status = dto.RunStatusInterrupted
	r.result.Next = next
	r.emit(dto.Event{Type: dto.EventInterrupted, Step: r.step, Next: next})
	return nil
}

// save writes a checkpoint when persistence is enabled. The step counter
// advances with every checkpoint so a thread's history is totally ordered.
func (e *DefaultGraphExecutor) save(ctx context.Context, r *run, source string, next []string, writes map[string]interface{}) error {
	r.step++
	if e.checkpoints == nil {
		return nil
	}
	cp := &checkpoint.Checkpoint{
		GraphID:  e.graph.ID,
		ThreadID: r.cfg.ThreadID,
		ParentID: r.parentID,
		State:    r.state,
		Next:     next,
		Metadata: checkpoint.Metadata{
			Step:   r.step,
			Source: source,
			Writes: writes,
			RunID:  r.id,
			Tags:   r.cfg.Tags,
		},
	}
	id, err := e.checkpoints.Create(ctx, cp)
	if err != nil {
		return err
	}
	r.parentID = id
	r.result.CheckpointID = id
	return nil
}

// GetState returns the latest persisted state of a thread
func (e *DefaultGraphExecutor) GetState(ctx context.Context, threadID string) (*dto.ThreadState, error) {
	if e.checkpoints == nil {
		return nil, dto.ErrNoCheckpointer
	}
	cp, err := e.checkpoints.Latest(ctx, e.graph.ID, threadID)
	if err != nil {
		return nil, err
	}
	return services.ThreadState(cp), nil
}

// UpdateState reduces update into the thread's state. When asNode is set
// the pending nodes become that node's successors, as if it had just run;
// otherwise the pending nodes are kept.
func (e *DefaultGraphExecutor) UpdateState(ctx context.Context, threadID string, update map[string]interface{}, asNode string) (*dto.ThreadState, error) {
	if e.checkpoints == nil {
		return nil, dto.ErrNoCheckpointer
	}
	if asNode != "" && asNode != graph.Start {
		if _, exists := e.graph.Nodes[asNode]; !exists {
			return nil, fmt.Errorf("%w: %s", dto.ErrUnknownNode, asNode)
		}
	}

	cp, err := e.checkpoints.Latest(ctx, e.graph.ID, threadID)
	if err != nil && !checkpoint.IsNotFound(err) {
		return nil, err
	}
	r := &run{
		id:     uuid.NewString(),
		cfg:    dto.RunConfig{ThreadID: threadID},
		result: &dto.RunResult{},
	}
	var next []string
	if cp != nil {
		r.state, r.step, r.parentID, next = cp.State, cp.Metadata.Step, cp.ID, cp.Next
	}

	state, err := e.reducer.Reduce(r.state, update)
	if err != nil {
		return nil, err
	}
	r.state = state
	if asNode != "" {
		dests, err := e.evaluator.Next(ctx, asNode, r.state)
		if err != nil {
			return nil, err
		}
		next = nil
		for _, d := range dests {
			if d != graph.End {
				next = append(next, d)
			}
		}
	}

	key := asNode
	if key == "" {
		key = checkpoint.SourceUpdate
	}
	writes := map[string]interface{}{key: update}
	if err := e.save(ctx, r, checkpoint.SourceUpdate, next, writes); err != nil {
		return nil, err
	}
	return e.GetState(ctx, threadID)
}

// History lists the checkpoints of a thread, newest first
func (e *DefaultGraphExecutor) History(ctx context.Context, threadID string, limit int) ([]*dto.ThreadState, error) {
	if e.checkpoints == nil {
		return nil, dto.ErrNoCheckpointer
	}
	cps, err := e.checkpoints.History(ctx, e.graph.ID, threadID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.ThreadState, len(cps))
	for i, cp := range cps {
		out[i] = services.ThreadState(cp)
	}
	return out, nil
}

var _ GraphExecutor = (*DefaultGraphExecutor)(nil)
