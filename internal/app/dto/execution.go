package dto

import (
	"time"
)

// DefaultRecursionLimit bounds the number of supersteps per run.
const DefaultRecursionLimit = 25

// RunConfig contains configuration for one graph run
type RunConfig struct {
	ThreadID       string        `json:"thread_id,omitempty" validate:"omitempty,thread_id"`
	RecursionLimit int           `json:"recursion_limit" validate:"gte=0,lte=10000"` // maximum supersteps
	Timeout        time.Duration `json:"timeout" validate:"gte=0"`                   // whole-run timeout, 0 means none
	Parallelism    int           `json:"parallelism" validate:"gte=0"`               // concurrent nodes per step, 0 means unbounded
	Tags           []string      `json:"tags,omitempty"`                             // copied onto every checkpoint
	Debug          bool          `json:"debug"`
}

// Validate applies defaults and rejects impossible values.
func (c *RunConfig) Validate() error {
	if c.RecursionLimit < 0 || c.Timeout < 0 || c.Parallelism < 0 {
		return ErrInvalidConfig
	}
	if c.RecursionLimit == 0 {
		c.RecursionLimit = DefaultRecursionLimit
	}
	return nil
}

// RunStatus represents the status of a graph run
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusCompleted   RunStatus = "completed"
	RunStatusInterrupted RunStatus = "interrupted"
	RunStatusFailed      RunStatus = "failed"
)

// RunResult represents the outcome of a graph run
type RunResult struct {
	RunID        string                 `json:"run_id"`
	GraphID      string                 `json:"graph_id"`
	ThreadID     string                 `json:"thread_id,omitempty"`
	Status       RunStatus              `json:"status"`
	State        map[string]interface{} `json:"state"`
	Steps        []StepResult           `json:"steps"`
	Next         []string               `json:"next,omitempty"` // nodes pending after an interrupt
	CheckpointID string                 `json:"checkpoint_id,omitempty"`
	StartTime    time.Time              `json:"start_time"`
	EndTime      time.Time              `json:"end_time"`
	Duration     time.Duration          `json:"duration"`
	Error        string                 `json:"error,omitempty"`
}

// Interrupted reports whether the run paused before finishing.
func (r *RunResult) Interrupted() bool {
	return r.Status == RunStatusInterrupted
}

// StepResult represents the result of executing one superstep
type StepResult struct {
	StepNumber   int                               `json:"step_number"`
	Nodes        []string                          `json:"nodes"`
	Writes       map[string]map[string]interface{} `json:"writes"` // node -> partial update
	StartTime    time.Time                         `json:"start_time"`
	EndTime      time.Time                         `json:"end_time"`
	Duration     time.Duration                     `json:"duration"`
	CheckpointID string                            `json:"checkpoint_id,omitempty"`
}

// EventType names the points of a run reported to stream consumers.
type EventType string

const (
	EventRunStarted   EventType = "run_started"
	EventNodeFinished EventType = "node_finished"
	EventStepFinished EventType = "step_finished"
	EventInterrupted  EventType = "interrupted"
	EventRunFinished  EventType = "run_finished"
	EventRunFailed    EventType = "run_failed"
)

// Event represents something that happened during a run
type Event struct {
	Type      EventType              `json:"type"`
	RunID     string                 `json:"run_id"`
	ThreadID  string                 `json:"thread_id,omitempty"`
	Step      int                    `json:"step"`
	Node      string                 `json:"node,omitempty"`
	Update    map[string]interface{} `json:"update,omitempty"` // partial write of Node
	State     map[string]interface{} `json:"state,omitempty"`  // full state after a step
	Next      []string               `json:"next,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// ThreadState is the persisted state of a thread at its latest checkpoint
type ThreadState struct {
	ThreadID     string                 `json:"thread_id"`
	CheckpointID string                 `json:"checkpoint_id"`
	ParentID     string                 `json:"parent_id,omitempty"`
	State        map[string]interface{} `json:"state"`
	Next         []string               `json:"next,omitempty"`
	Step         int                    `json:"step"`
	Source       string                 `json:"source"`
	CreatedAt    time.Time              `json:"created_at"`
}
