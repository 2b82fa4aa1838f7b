// Package pregel runs graph nodes in bulk-synchronous supersteps: every
// active node of a step runs concurrently against the same state snapshot,
// and the step ends at a barrier once all of them have returned.
package pregel

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Task is one node execution scheduled in a superstep.
type Task struct {
	Node string
	Run  func(ctx context.Context) (map[string]interface{}, error)
}

// Write is the partial state update produced by a task.
type Write struct {
	Node   string
	Update map[string]interface{}
}

// Superstep records the timing of one barrier-synchronised step
// PRINCIPLES:
// - Bulk Synchronous Parallel (BSP) barrier
// - Data only, scheduling lives in Run
type Superstep struct {
	StepNumber int
	Nodes      []string
	StartTime  time.Time
	EndTime    time.Time
}

// Duration returns how long the step took.
func (s *Superstep) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// NodeError attributes a failure to the node that raised it.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// Run executes tasks concurrently, at most parallelism at a time
// (unbounded when parallelism <= 0). Writes are returned in task order so
// that reducing them is deterministic. The first failure cancels the
// context of the remaining tasks and is returned as a *NodeError.
func Run(ctx context.Context, step int, tasks []Task, parallelism int) (*Superstep, []Write, error) {
	ss := &Superstep{
		StepNumber: step,
		Nodes:      make([]string, len(tasks)),
		StartTime:  time.Now(),
	}
	for i, t := range tasks {
		ss.Nodes[i] = t.Node
	}

	writes := make([]Write, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}

	for i, task := range tasks {
		i, task := i, task
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &NodeError{Node: task.Node, Err: fmt.Errorf("%w: %v", ErrNodePanic, r)}
				}
			}()
			if err := gctx.Err(); err != nil {
				return &NodeError{Node: task.Node, Err: err}
			}
			update, err := task.Run(gctx)
			if err != nil {
				return &NodeError{Node: task.Node, Err: err}
			}
			writes[i] = Write{Node: task.Node, Update: update}
			return nil
		})
	}

	err := g.Wait()
	ss.EndTime = time.Now()
	if err != nil {
		return ss, nil, err
	}
	return ss, writes, nil
}
