package flowgraph

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/ragagent/internal/adapters/repository/memory"
	"github.com/flowgraph/ragagent/internal/core/message"
	"github.com/flowgraph/ragagent/pkg/validation"
)

func retrieve(_ context.Context, _ State) (State, error) {
	return State{MessagesKey: message.Tool("Pregel runs nodes in supersteps.", "retrieve")}, nil
}

func generate(_ context.Context, s State) (State, error) {
	msgs, err := Messages(s)
	if err != nil {
		return nil, err
	}
	return State{MessagesKey: message.AI("context: " + msgs[len(msgs)-1].Content)}, nil
}

func workflow() *StateGraph {
	return NewStateGraph(MessagesState()).
		AddNode("retrieve", retrieve).
		AddNode("generate", generate).
		AddEdge(START, "retrieve").
		AddEdge("retrieve", "generate").
		AddEdge("generate", END)
}

func TestStateGraph_CompileStructure(t *testing.T) {
	app, err := workflow().Compile()
	require.NoError(t, err)

	assert.Equal(t, []string{"retrieve", "generate"}, app.Nodes())
	var edges []string
	for _, e := range app.Edges() {
		edges = append(edges, e.Source+"->"+e.Target)
	}
	assert.Equal(t, []string{"__start__->retrieve", "retrieve->generate", "generate->__end__"}, edges)
	assert.Contains(t, app.Mermaid(), "retrieve --> generate")
	assert.Equal(t, "graph", app.Graph().ID)
}

func TestStateGraph_CompileIsolatedFromBuilder(t *testing.T) {
	sg := workflow()
	alpha, err := sg.Compile(WithGraphID("alpha"), WithName("alpha"))
	require.NoError(t, err)
	beta, err := sg.Compile(WithGraphID("beta"), WithName("beta"))
	require.NoError(t, err)

	sg.AddNode("extra", generate).AddEdge("generate", "extra").AddEdge("extra", END)
	require.NoError(t, sg.Err())

	assert.Equal(t, "alpha", alpha.Graph().ID)
	assert.Equal(t, "beta", beta.Graph().ID)
	assert.Equal(t, []string{"retrieve", "generate"}, alpha.Nodes())
	assert.Len(t, alpha.Edges(), 3)

	res, err := alpha.Run(context.Background(), State{MessagesKey: "what is a superstep?"})
	require.NoError(t, err)
	assert.Equal(t, "alpha", res.GraphID)
	msgs, err := Messages(res.State)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)

	extended, err := sg.Compile()
	require.NoError(t, err)
	assert.Equal(t, []string{"retrieve", "generate", "extra"}, extended.Nodes())
}

func TestStateGraph_CompileErrors(t *testing.T) {
	noop := func(context.Context, State) (State, error) { return nil, nil }

	tests := []struct {
		name  string
		build func() *StateGraph
		opts  []CompileOption
		want  error
	}{
		{"nil function", func() *StateGraph {
			return NewStateGraph(nil).AddNode("a", nil)
		}, nil, ErrNilNodeFunc},
		{"duplicate node", func() *StateGraph {
			return NewStateGraph(nil).AddNode("a", noop).AddNode("a", noop)
		}, nil, errors.New("duplicate node ID")},
		{"reserved name", func() *StateGraph {
			return NewStateGraph(nil).AddNode(END, noop)
		}, nil, errors.New("reserved")},
		{"edge to unknown node", func() *StateGraph {
			return NewStateGraph(nil).AddNode("a", noop).AddEdge("a", "b")
		}, nil, errors.New("target node not found")},
		{"nil router", func() *StateGraph {
			return NewStateGraph(nil).AddNode("a", noop).AddConditionalEdges("a", nil, nil)
		}, nil, ErrNilRouter},
		{"no entry edge", func() *StateGraph {
			return NewStateGraph(nil).AddNode("a", noop).SetFinishPoint("a")
		}, nil, ErrNoEntryEdge},
		{"unreachable node", func() *StateGraph {
			return NewStateGraph(nil).AddNode("a", noop).AddNode("b", noop).
				SetEntryPoint("a").SetFinishPoint("a").SetFinishPoint("b")
		}, nil, ErrUnreachable},
		{"dead end", func() *StateGraph {
			return NewStateGraph(nil).AddNode("a", noop).AddNode("b", noop).
				SetEntryPoint("a").AddEdge("a", "b")
		}, nil, ErrNoPathToEnd},
		{"interrupt without saver", workflow, []CompileOption{WithInterruptBefore("generate")}, ErrInterruptNeedsSaver},
		{"interrupt on unknown node", workflow, []CompileOption{WithInterruptAfter("grade")}, ErrUnknownInterrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build().Compile(tt.opts...)
			require.Error(t, err)
			if errors.Is(err, tt.want) {
				return
			}
			assert.Contains(t, err.Error(), tt.want.Error())
		})
	}
}

func TestCompiledGraph_Invoke(t *testing.T) {
	app, err := workflow().Compile()
	require.NoError(t, err)

	state, err := app.Invoke(context.Background(), State{MessagesKey: "what is a superstep?"})
	require.NoError(t, err)

	msgs, err := Messages(state)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, message.RoleHuman, msgs[0].Role)
	assert.Equal(t, "retrieve", msgs[1].Name)
	assert.Equal(t, "context: Pregel runs nodes in supersteps.", msgs[2].Content)
}

func TestCompiledGraph_RunOptions(t *testing.T) {
	slow := func(ctx context.Context, _ State) (State, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return State{}, nil
		}
	}

	t.Run("node timeout", func(t *testing.T) {
		app, err := NewStateGraph(nil).AddNode("slow", slow, WithTimeout(10*time.Millisecond), WithRetries(1)).
			SetEntryPoint("slow").SetFinishPoint("slow").Compile()
		require.NoError(t, err)
		assert.Equal(t, 10*time.Millisecond, app.Graph().Nodes["slow"].Timeout)

		_, err = app.Run(context.Background(), State{"q": 1})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("run timeout", func(t *testing.T) {
		app, err := NewStateGraph(nil).AddNode("slow", slow).
			SetEntryPoint("slow").SetFinishPoint("slow").Compile()
		require.NoError(t, err)

		_, err = app.Run(context.Background(), State{"q": 1}, WithTimeout(10*time.Millisecond))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("invalid options", func(t *testing.T) {
		app, err := workflow().Compile()
		require.NoError(t, err)

		_, err = app.Run(context.Background(), State{MessagesKey: "q"}, WithRecursionLimit(-1))
		assert.ErrorIs(t, err, validation.ErrValidation)
		_, err = app.Run(context.Background(), State{MessagesKey: "q"}, WithThreadID("bad thread"))
		assert.ErrorIs(t, err, validation.ErrValidation)
	})
}

func TestCompiledGraph_ConditionalEdges(t *testing.T) {
	count := func(_ context.Context, s State) (State, error) {
		n, _ := s["n"].(int)
		return State{"n": n + 1}, nil
	}
	router := func(_ context.Context, s State) ([]string, error) {
		if s["n"].(int) < 3 {
			return []string{"more"}, nil
		}
		return []string{"stop"}, nil
	}

	app, err := NewStateGraph(nil).
		AddNode("count", count).
		SetEntryPoint("count").
		AddConditionalEdges("count", router, map[string]string{"more": "count", "stop": END}).
		Compile()
	require.NoError(t, err)

	result, err := app.Run(context.Background(), State{"n": 0})
	require.NoError(t, err)
	assert.Equal(t, 3, result.State["n"])
	assert.Len(t, result.Steps, 3)

	_, err = app.Run(context.Background(), State{"n": 0}, WithRecursionLimit(2))
	assert.ErrorIs(t, err, ErrRecursionLimit)
}

func TestCompiledGraph_DynamicRouting(t *testing.T) {
	pick := func(_ context.Context, s State) ([]string, error) {
		return []string{s["route"].(string)}, nil
	}
	mark := func(name string) NodeFunc {
		return func(context.Context, State) (State, error) { return State{"visited": name}, nil }
	}

	app, err := NewStateGraph(nil).
		AddNode("router", func(context.Context, State) (State, error) { return nil, nil }).
		AddNode("left", mark("left")).
		AddNode("right", mark("right")).
		SetEntryPoint("router").
		AddConditionalEdges("router", pick, nil).
		SetFinishPoint("left").
		SetFinishPoint("right").
		Compile()
	require.NoError(t, err)

	state, err := app.Invoke(context.Background(), State{"route": "right"})
	require.NoError(t, err)
	assert.Equal(t, "right", state["visited"])
}

func TestCompiledGraph_Checkpointing(t *testing.T) {
	saver := memory.DefaultInMemorySaver()
	defer saver.Close()

	app, err := workflow().Compile(WithCheckpointer(saver), WithInterruptBefore("generate"), WithGraphID("rag"))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = app.Run(ctx, State{MessagesKey: "q"})
	assert.ErrorIs(t, err, ErrThreadRequired)

	result, err := app.Run(ctx, State{MessagesKey: "q"}, WithThreadID("t1"))
	require.NoError(t, err)
	assert.True(t, result.Interrupted())
	assert.Equal(t, []string{"generate"}, result.Next)

	// Swap the retrieved context before generation resumes.
	_, err = app.UpdateState(ctx, "t1", State{MessagesKey: message.Tool("edited context", "retrieve")}, "")
	require.NoError(t, err)

	state, err := app.GetState(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"generate"}, state.Next)

	final, err := app.Invoke(ctx, nil, WithThreadID("t1"))
	require.NoError(t, err)
	msgs, err := Messages(final)
	require.NoError(t, err)
	assert.Equal(t, "context: edited context", msgs[len(msgs)-1].Content)

	history, err := app.History(ctx, "t1", 0)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Empty(t, history[0].Next)

	_, err = app.Invoke(ctx, nil, WithThreadID("t1"))
	assert.ErrorIs(t, err, ErrNoPendingRun)
}

func TestCompiledGraph_Stream(t *testing.T) {
	app, err := workflow().Compile()
	require.NoError(t, err)

	events, err := app.Stream(context.Background(), State{MessagesKey: "q"})
	require.NoError(t, err)

	var seen []string
	for ev := range events {
		seen = append(seen, string(ev.Type)+":"+ev.Node)
	}
	assert.Equal(t, "run_started:", seen[0])
	assert.Equal(t, "run_finished:", seen[len(seen)-1])
	assert.Contains(t, strings.Join(seen, ","), "node_finished:retrieve,step_finished:,node_finished:generate")

	_, err = app.Stream(context.Background(), nil, WithParallelism(-1))
	assert.Error(t, err)
}
