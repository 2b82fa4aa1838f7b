package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/ragagent/internal/core/graph"
)

func TestDefaultNodeProcessor_Process(t *testing.T) {
	p := NewDefaultNodeProcessor().WithBackoff(time.Millisecond)
	p.Register("echo", func(_ context.Context, s map[string]interface{}) (map[string]interface{}, error) {
		s["mutated"] = true
		return map[string]interface{}{"echo": s["in"]}, nil
	})

	state := map[string]interface{}{"in": "x"}
	update, err := p.Process(context.Background(), graph.NewNode("echo"), state)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"echo": "x"}, update)
	assert.NotContains(t, state, "mutated", "node functions receive a copy of the state")

	assert.True(t, p.CanProcess("echo"))
	assert.False(t, p.CanProcess("other"))

	_, err = p.Process(context.Background(), graph.NewNode("other"), state)
	assert.ErrorIs(t, err, ErrMissingNodeFunc)
}

func TestDefaultNodeProcessor_Retries(t *testing.T) {
	tests := []struct {
		name      string
		retries   int
		failures  int
		wantCalls int
		wantErr   bool
	}{
		{"no retries, success", 0, 0, 1, false},
		{"no retries, failure", 0, 1, 1, true},
		{"recovers", 2, 2, 3, false},
		{"exhausted", 2, 5, 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			p := NewDefaultNodeProcessor().WithBackoff(time.Millisecond)
			p.Register("n", func(context.Context, map[string]interface{}) (map[string]interface{}, error) {
				calls++
				if calls <= tt.failures {
					return nil, errors.New("transient")
				}
				return map[string]interface{}{}, nil
			})
			node := graph.NewNode("n")
			node.Retries = tt.retries

			_, err := p.Process(context.Background(), node, nil)
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultNodeProcessor_StopsRetryingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := NewDefaultNodeProcessor().WithBackoff(time.Hour)
	p.Register("n", func(context.Context, map[string]interface{}) (map[string]interface{}, error) {
		calls++
		cancel()
		return nil, errors.New("failed")
	})
	node := graph.NewNode("n")
	node.Retries = 3

	_, err := p.Process(ctx, node, nil)
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
