package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowgraph/ragagent/internal/core/graph"
	"github.com/flowgraph/ragagent/internal/infrastructure/metrics"
	"github.com/flowgraph/ragagent/internal/logging"
)

// DefaultNodeProcessor runs registered node functions
// PRINCIPLES:
// - SRP: Handles only node processing logic
// - OCP: New nodes are registered, not coded in
type DefaultNodeProcessor struct {
	funcs   map[string]NodeFunc
	backoff time.Duration
}

// NewDefaultNodeProcessor creates a new node processor
func NewDefaultNodeProcessor() *DefaultNodeProcessor {
	return &DefaultNodeProcessor{
		funcs:   make(map[string]NodeFunc),
		backoff: 100 * time.Millisecond,
	}
}

// WithBackoff sets the base delay between retries; attempt n waits n*d.
func (p *DefaultNodeProcessor) WithBackoff(d time.Duration) *DefaultNodeProcessor {
	p.backoff = d
	return p
}

// Register binds fn to a node ID.
func (p *DefaultNodeProcessor) Register(nodeID string, fn NodeFunc) {
	p.funcs[nodeID] = fn
}

// Clone returns a processor with a snapshot of the registered functions.
func (p *DefaultNodeProcessor) Clone() *DefaultNodeProcessor {
	c := &DefaultNodeProcessor{funcs: make(map[string]NodeFunc, len(p.funcs)), backoff: p.backoff}
	for id, fn := range p.funcs {
		c.funcs[id] = fn
	}
	return c
}

// CanProcess returns true if a function is registered for nodeID
func (p *DefaultNodeProcessor) CanProcess(nodeID string) bool {
	_, exists := p.funcs[nodeID]
	return exists
}

// Process executes the node function, applying the node's timeout to each
// attempt and retrying up to node.Retries times.
func (p *DefaultNodeProcessor) Process(ctx context.Context, node *graph.Node, state map[string]interface{}) (map[string]interface{}, error) {
	fn, exists := p.funcs[node.ID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrMissingNodeFunc, node.ID)
	}
	logger := logging.FromContext(ctx).With(slog.String("node", node.ID))

	var lastErr error
	for attempt := 0; attempt <= node.Retries; attempt++ {
		if attempt > 0 {
			metrics.NodeRetried(node.ID)
			logger.Warn("retrying node", slog.Int("attempt", attempt), slog.Any("error", lastErr))
			if err := sleepCtx(ctx, time.Duration(attempt)*p.backoff); err != nil {
				return nil, err
			}
		}

		start := time.Now()
		update, err := p.attempt(ctx, node, fn, state)
		if err == nil {
			metrics.NodeExecuted(node.ID, time.Since(start).Milliseconds())
			logger.Debug("node finished", slog.Duration("duration", time.Since(start)))
			return update, nil
		}
		lastErr = err
		metrics.NodeFailed(node.ID)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (p *DefaultNodeProcessor) attempt(ctx context.Context, node *graph.Node, fn NodeFunc, state map[string]interface{}) (map[string]interface{}, error) {
	if node.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, node.Timeout)
		defer cancel()
	}
	snapshot := make(map[string]interface{}, len(state))
	for k, v := range state {
		snapshot[k] = v
	}
	return fn(ctx, snapshot)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
