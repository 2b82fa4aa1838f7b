package dto

import "errors"

// Execution errors
var (
	ErrInvalidConfig   = errors.New("invalid run configuration")
	ErrRecursionLimit  = errors.New("recursion limit reached without hitting a stop condition")
	ErrEmptyInput      = errors.New("input is empty and there is nothing to resume")
	ErrThreadRequired  = errors.New("a thread ID is required when a checkpointer is configured")
	ErrNoCheckpointer  = errors.New("no checkpointer configured")
	ErrNoPendingRun    = errors.New("thread has no pending nodes to resume")
	ErrExecutionFailed = errors.New("graph execution failed")
	ErrUnknownNode     = errors.New("unknown node")
)
