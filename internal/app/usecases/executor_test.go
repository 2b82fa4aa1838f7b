package usecases

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/ragagent/internal/adapters/repository/memory"
	"github.com/flowgraph/ragagent/internal/app/dto"
	"github.com/flowgraph/ragagent/internal/app/services"
	"github.com/flowgraph/ragagent/internal/core/channel"
	"github.com/flowgraph/ragagent/internal/core/checkpoint"
	"github.com/flowgraph/ragagent/internal/core/graph"
	"github.com/flowgraph/ragagent/internal/core/message"
	"github.com/flowgraph/ragagent/internal/core/pregel"
)

// fixture wires a graph, its node functions and an executor.
type fixture struct {
	g         *graph.Graph
	processor *DefaultNodeProcessor
	evaluator *DefaultEdgeEvaluator
	schema    *channel.Schema
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		g:         graph.New("test", "test"),
		processor: NewDefaultNodeProcessor().WithBackoff(time.Millisecond),
		schema: channel.NewSchema().
			WithReducer("messages", channel.Messages).
			WithReducer("log", channel.Append),
	}
}

func (f *fixture) node(t *testing.T, id string, fn NodeFunc, opts ...func(*graph.Node)) {
	t.Helper()
	n := graph.NewNode(id)
	for _, o := range opts {
		o(n)
	}
	require.NoError(t, f.g.AddNode(n))
	f.processor.Register(id, fn)
}

func (f *fixture) edge(t *testing.T, from, to string) {
	t.Helper()
	require.NoError(t, f.g.AddEdge(&graph.Edge{Source: from, Target: to}))
}

func (f *fixture) executor(opts ...ExecutorOption) *DefaultGraphExecutor {
	if f.evaluator == nil {
		f.evaluator = NewDefaultEdgeEvaluator(f.g)
	}
	return NewDefaultGraphExecutor(f.g, f.schema, f.processor, f.evaluator, opts...)
}

func logNode(name string) NodeFunc {
	return func(_ context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"log": name}, nil
	}
}

// ragFixture builds START -> retrieve -> generate -> END over messages.
func ragFixture(t *testing.T, generateCalls *int32) *fixture {
	f := newFixture(t)
	f.node(t, "retrieve", func(_ context.Context, s map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"messages": message.Tool("doc-1", "retrieve")}, nil
	})
	f.node(t, "generate", func(_ context.Context, s map[string]interface{}) (map[string]interface{}, error) {
		if generateCalls != nil {
			atomic.AddInt32(generateCalls, 1)
		}
		msgs, err := message.Coerce(s["messages"])
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"messages": message.AI("answer from " + msgs[len(msgs)-1].Content)}, nil
	})
	f.edge(t, graph.Start, "retrieve")
	f.edge(t, "retrieve", "generate")
	f.edge(t, "generate", graph.End)
	return f
}

func withSaver(t *testing.T) (ExecutorOption, *memory.InMemorySaver) {
	saver := memory.DefaultInMemorySaver()
	t.Cleanup(func() { saver.Close() })
	return WithCheckpoints(services.NewCheckpointService(saver)), saver
}

func messagesOf(t *testing.T, state map[string]interface{}) []message.Message {
	t.Helper()
	msgs, err := message.Coerce(state["messages"])
	require.NoError(t, err)
	return msgs
}

func TestExecutor_LinearRun(t *testing.T) {
	f := ragFixture(t, nil)
	var events []dto.Event
	sink := func(ev dto.Event) { events = append(events, ev) }

	result, err := f.executor().Run(context.Background(), map[string]interface{}{"messages": "what is pregel?"}, dto.RunConfig{}, sink)
	require.NoError(t, err)

	assert.Equal(t, dto.RunStatusCompleted, result.Status)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, []string{"retrieve"}, result.Steps[0].Nodes)
	assert.Equal(t, []string{"generate"}, result.Steps[1].Nodes)
	assert.Empty(t, result.CheckpointID)

	msgs := messagesOf(t, result.State)
	require.Len(t, msgs, 3)
	assert.Equal(t, message.RoleHuman, msgs[0].Role)
	assert.Equal(t, message.RoleTool, msgs[1].Role)
	assert.Equal(t, "answer from doc-1", msgs[2].Content)
	for _, m := range msgs {
		assert.NotEmpty(t, m.ID)
	}

	var types []dto.EventType
	for _, ev := range events {
		types = append(types, ev.Type)
		assert.Equal(t, result.RunID, ev.RunID)
	}
	assert.Equal(t, []dto.EventType{
		dto.EventRunStarted,
		dto.EventNodeFinished, dto.EventStepFinished,
		dto.EventNodeFinished, dto.EventStepFinished,
		dto.EventRunFinished,
	}, types)
}

func TestExecutor_FanOutAndJoin(t *testing.T) {
	for _, parallelism := range []int{0, 1} {
		f := newFixture(t)
		var dRuns int32
		f.node(t, "a", logNode("a"))
		f.node(t, "b", func(_ context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
			time.Sleep(5 * time.Millisecond) // finishes after c but is reduced first
			return map[string]interface{}{"log": "b"}, nil
		})
		f.node(t, "c", logNode("c"))
		f.node(t, "d", func(_ context.Context, s map[string]interface{}) (map[string]interface{}, error) {
			atomic.AddInt32(&dRuns, 1)
			return map[string]interface{}{"log": "d"}, nil
		})
		f.edge(t, graph.Start, "a")
		f.edge(t, "a", "b")
		f.edge(t, "a", "c")
		f.edge(t, "b", "d")
		f.edge(t, "c", "d")
		f.edge(t, "d", graph.End)

		result, err := f.executor().Run(context.Background(), map[string]interface{}{"log": "start"}, dto.RunConfig{Parallelism: parallelism}, nil)
		require.NoError(t, err)

		require.Len(t, result.Steps, 3)
		assert.Equal(t, []string{"b", "c"}, result.Steps[1].Nodes)
		assert.Equal(t, []interface{}{"start", "a", "b", "c", "d"}, result.State["log"])
		assert.Equal(t, int32(1), dRuns)
	}
}

func loopFixture(t *testing.T, stopAt int) *fixture {
	f := newFixture(t)
	f.node(t, "inc", func(_ context.Context, s map[string]interface{}) (map[string]interface{}, error) {
		n, _ := s["count"].(int)
		return map[string]interface{}{"count": n + 1}, nil
	})
	f.edge(t, graph.Start, "inc")
	require.NoError(t, f.g.AddBranch("inc", &graph.ConditionalBranch{
		Conditions: map[string]string{"again": "inc", "done": graph.End},
	}))
	f.evaluator = NewDefaultEdgeEvaluator(f.g)
	f.evaluator.RegisterRouter("inc", func(_ context.Context, s map[string]interface{}) ([]string, error) {
		if n, _ := s["count"].(int); stopAt > 0 && n >= stopAt {
			return []string{"done"}, nil
		}
		return []string{"again"}, nil
	})
	return f
}

func TestExecutor_ConditionalLoop(t *testing.T) {
	f := loopFixture(t, 3)

	result, err := f.executor().Run(context.Background(), map[string]interface{}{"count": 0}, dto.RunConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.State["count"])
	assert.Len(t, result.Steps, 3)
}

func TestExecutor_RecursionLimit(t *testing.T) {
	f := loopFixture(t, 0)

	result, err := f.executor().Run(context.Background(), map[string]interface{}{"count": 0}, dto.RunConfig{RecursionLimit: 5}, nil)
	assert.ErrorIs(t, err, dto.ErrRecursionLimit)
	require.NotNil(t, result)
	assert.Equal(t, dto.RunStatusFailed, result.Status)
	assert.Equal(t, 5, result.State["count"])
	assert.Contains(t, result.Error, "recursion limit")
}

func TestExecutor_NodeFailure(t *testing.T) {
	boom := errors.New("index offline")
	f := newFixture(t)
	f.node(t, "retrieve", func(context.Context, map[string]interface{}) (map[string]interface{}, error) {
		return nil, boom
	})
	f.edge(t, graph.Start, "retrieve")
	f.edge(t, "retrieve", graph.End)

	var last dto.Event
	result, err := f.executor().Run(context.Background(), map[string]interface{}{"log": "x"}, dto.RunConfig{}, func(ev dto.Event) { last = ev })
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var nodeErr *pregel.NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "retrieve", nodeErr.Node)
	assert.Equal(t, "node retrieve: index offline", err.Error())

	assert.Equal(t, dto.RunStatusFailed, result.Status)
	assert.Equal(t, dto.EventRunFailed, last.Type)
}

func TestExecutor_RetriesAndTimeouts(t *testing.T) {
	t.Run("retry until success", func(t *testing.T) {
		var calls int32
		f := newFixture(t)
		f.node(t, "flaky", func(context.Context, map[string]interface{}) (map[string]interface{}, error) {
			if atomic.AddInt32(&calls, 1) < 3 {
				return nil, errors.New("transient")
			}
			return map[string]interface{}{"log": "ok"}, nil
		}, func(n *graph.Node) { n.Retries = 2 })
		f.edge(t, graph.Start, "flaky")
		f.edge(t, "flaky", graph.End)

		result, err := f.executor().Run(context.Background(), map[string]interface{}{"log": "go"}, dto.RunConfig{}, nil)
		require.NoError(t, err)
		assert.Equal(t, int32(3), calls)
		assert.Equal(t, []interface{}{"go", "ok"}, result.State["log"])
	})

	t.Run("node timeout", func(t *testing.T) {
		f := newFixture(t)
		f.node(t, "slow", func(ctx context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}, func(n *graph.Node) { n.Timeout = 10 * time.Millisecond })
		f.edge(t, graph.Start, "slow")
		f.edge(t, "slow", graph.End)

		_, err := f.executor().Run(context.Background(), map[string]interface{}{"log": "go"}, dto.RunConfig{}, nil)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("run timeout", func(t *testing.T) {
		f := loopFixture(t, 0)
		f.processor.Register("inc", func(ctx context.Context, s map[string]interface{}) (map[string]interface{}, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Millisecond):
			}
			n, _ := s["count"].(int)
			return map[string]interface{}{"count": n + 1}, nil
		})

		_, err := f.executor().Run(context.Background(), map[string]interface{}{"count": 0},
			dto.RunConfig{Timeout: 30 * time.Millisecond, RecursionLimit: 1000}, nil)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestExecutor_MissingNodeFunc(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.g.AddNode(graph.NewNode("ghost")))
	f.edge(t, graph.Start, "ghost")
	f.edge(t, "ghost", graph.End)

	_, err := f.executor().Run(context.Background(), map[string]interface{}{"log": "x"}, dto.RunConfig{}, nil)
	assert.ErrorIs(t, err, ErrMissingNodeFunc)
}

func TestExecutor_InputErrors(t *testing.T) {
	opt, _ := withSaver(t)
	exec := ragFixture(t, nil).executor(opt)
	ctx := context.Background()

	_, err := exec.Run(ctx, map[string]interface{}{"messages": "hi"}, dto.RunConfig{}, nil)
	assert.ErrorIs(t, err, dto.ErrThreadRequired)

	_, err = exec.Run(ctx, nil, dto.RunConfig{ThreadID: "fresh"}, nil)
	assert.ErrorIs(t, err, dto.ErrEmptyInput)

	_, err = exec.Run(ctx, map[string]interface{}{"messages": "hi"}, dto.RunConfig{ThreadID: "done"}, nil)
	require.NoError(t, err)
	_, err = exec.Run(ctx, nil, dto.RunConfig{ThreadID: "done"}, nil)
	assert.ErrorIs(t, err, dto.ErrNoPendingRun)

	_, err = exec.Run(ctx, map[string]interface{}{"messages": 42}, dto.RunConfig{ThreadID: "bad"}, nil)
	assert.ErrorIs(t, err, channel.ErrReduce)

	_, err = exec.Run(ctx, map[string]interface{}{"messages": "hi"}, dto.RunConfig{ThreadID: "t", RecursionLimit: -1}, nil)
	assert.ErrorIs(t, err, dto.ErrInvalidConfig)
}

func TestExecutor_CheckpointsAndMultiTurn(t *testing.T) {
	opt, _ := withSaver(t)
	exec := ragFixture(t, nil).executor(opt)
	ctx := context.Background()
	cfg := dto.RunConfig{ThreadID: "chat", Tags: []string{"unit"}}

	first, err := exec.Run(ctx, map[string]interface{}{"messages": "first question"}, cfg, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, first.CheckpointID)
	assert.Equal(t, first.CheckpointID, first.Steps[1].CheckpointID)

	second, err := exec.Run(ctx, map[string]interface{}{"messages": "second question"}, cfg, nil)
	require.NoError(t, err)
	msgs := messagesOf(t, second.State)
	require.Len(t, msgs, 6)
	assert.Equal(t, "first question", msgs[0].Content)
	assert.Equal(t, "second question", msgs[3].Content)

	history, err := exec.History(ctx, "chat", 0)
	require.NoError(t, err)
	require.Len(t, history, 6)
	var sources []string
	for i, h := range history {
		sources = append(sources, h.Source)
		assert.Equal(t, 6-i, h.Step)
		if i+1 < len(history) {
			assert.Equal(t, history[i+1].CheckpointID, h.ParentID)
		}
	}
	assert.Equal(t, []string{
		checkpoint.SourceLoop, checkpoint.SourceLoop, checkpoint.SourceInput,
		checkpoint.SourceLoop, checkpoint.SourceLoop, checkpoint.SourceInput,
	}, sources)

	state, err := exec.GetState(ctx, "chat")
	require.NoError(t, err)
	assert.Equal(t, second.CheckpointID, state.CheckpointID)
	assert.Empty(t, state.Next)
}

func TestExecutor_InterruptBeforeAndResume(t *testing.T) {
	var generated int32
	opt, _ := withSaver(t)
	exec := ragFixture(t, &generated).executor(opt, WithInterrupts(NewInterruptManager([]string{"generate"}, nil)))
	ctx := context.Background()
	cfg := dto.RunConfig{ThreadID: "review"}

	var interrupted []dto.Event
	result, err := exec.Run(ctx, map[string]interface{}{"messages": "q"}, cfg, func(ev dto.Event) {
		if ev.Type == dto.EventInterrupted {
			interrupted = append(interrupted, ev)
		}
	})
	require.NoError(t, err)
	assert.True(t, result.Interrupted())
	assert.Equal(t, []string{"generate"}, result.Next)
	assert.Equal(t, int32(0), generated)
	require.Len(t, interrupted, 1)

	state, err := exec.GetState(ctx, "review")
	require.NoError(t, err)
	assert.Equal(t, checkpoint.SourceInterrupt, state.Source)
	assert.Equal(t, []string{"generate"}, state.Next)

	resumed, err := exec.Run(ctx, nil, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, dto.RunStatusCompleted, resumed.Status)
	assert.Equal(t, int32(1), generated)
	require.Len(t, resumed.Steps, 1)
	assert.Equal(t, []string{"generate"}, resumed.Steps[0].Nodes)

	msgs := messagesOf(t, resumed.State)
	require.Len(t, msgs, 3)
	assert.Equal(t, message.RoleAI, msgs[2].Role)
}

func TestExecutor_InterruptAfterAndResume(t *testing.T) {
	opt, _ := withSaver(t)
	exec := ragFixture(t, nil).executor(opt, WithInterrupts(NewInterruptManager(nil, []string{"retrieve", "generate"})))
	ctx := context.Background()
	cfg := dto.RunConfig{ThreadID: "after"}

	result, err := exec.Run(ctx, map[string]interface{}{"messages": "q"}, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, dto.RunStatusInterrupted, result.Status)
	assert.Equal(t, []string{"generate"}, result.Next)

	state, err := exec.GetState(ctx, "after")
	require.NoError(t, err)
	assert.Equal(t, checkpoint.SourceLoop, state.Source)

	// generate is the last node: nothing is pending after it, so no pause.
	resumed, err := exec.Run(ctx, nil, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, dto.RunStatusCompleted, resumed.Status)
}

func TestExecutor_UpdateState(t *testing.T) {
	var generated int32
	opt, _ := withSaver(t)
	exec := ragFixture(t, &generated).executor(opt)
	ctx := context.Background()

	// Pretend retrieve already ran for a fresh thread.
	state, err := exec.UpdateState(ctx, "manual", map[string]interface{}{
		"messages": []message.Message{message.Human("q"), message.Tool("hand-picked doc", "retrieve")},
	}, "retrieve")
	require.NoError(t, err)
	assert.Equal(t, []string{"generate"}, state.Next)
	assert.Equal(t, checkpoint.SourceUpdate, state.Source)

	result, err := exec.Run(ctx, nil, dto.RunConfig{ThreadID: "manual"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), generated)
	msgs := messagesOf(t, result.State)
	assert.Equal(t, "answer from hand-picked doc", msgs[len(msgs)-1].Content)

	// Without asNode the pending nodes are kept (none here).
	state, err = exec.UpdateState(ctx, "manual", map[string]interface{}{"log": "note"}, "")
	require.NoError(t, err)
	assert.Empty(t, state.Next)
	assert.Equal(t, "note", state.State["log"])

	_, err = exec.UpdateState(ctx, "manual", nil, "nope")
	assert.ErrorIs(t, err, dto.ErrUnknownNode)

	noSaver := ragFixture(t, nil).executor()
	_, err = noSaver.UpdateState(ctx, "manual", nil, "")
	assert.ErrorIs(t, err, dto.ErrNoCheckpointer)
	_, err = noSaver.GetState(ctx, "manual")
	assert.ErrorIs(t, err, dto.ErrNoCheckpointer)
	_, err = noSaver.History(ctx, "manual", 0)
	assert.ErrorIs(t, err, dto.ErrNoCheckpointer)
}

func TestExecutor_ChannelSink(t *testing.T) {
	f := ragFixture(t, nil)
	ch := make(chan dto.Event, 16)
	ctx := context.Background()

	_, err := f.executor().Run(ctx, map[string]interface{}{"messages": "q"}, dto.RunConfig{}, MultiSink(nil, ChannelSink(ctx, ch)))
	require.NoError(t, err)
	close(ch)

	var nodes []string
	for ev := range ch {
		if ev.Type == dto.EventNodeFinished {
			nodes = append(nodes, ev.Node)
		}
	}
	assert.Equal(t, []string{"retrieve", "generate"}, nodes)
}
