package flowgraph

import (
	"errors"

	"github.com/flowgraph/ragagent/internal/app/dto"
	"github.com/flowgraph/ragagent/internal/app/usecases"
	"github.com/flowgraph/ragagent/internal/core/channel"
	"github.com/flowgraph/ragagent/internal/core/checkpoint"
	"github.com/flowgraph/ragagent/pkg/validation"
)

// Builder and compile errors
var (
	ErrNilNodeFunc         = errors.New("node function cannot be nil")
	ErrNilRouter           = errors.New("router cannot be nil")
	ErrNoEntryEdge         = errors.New("graph has no edge leaving START")
	ErrInterruptNeedsSaver = errors.New("interrupts require a checkpointer")
	ErrUnknownInterrupt    = errors.New("interrupt names an unknown node")

	ErrUnreachable     = validation.ErrUnreachable
	ErrNoPathToEnd     = validation.ErrNoPathToEnd
	ErrMissingNodeFunc = usecases.ErrMissingNodeFunc
)

// Run errors
var (
	ErrRecursionLimit = dto.ErrRecursionLimit
	ErrThreadRequired = dto.ErrThreadRequired
	ErrEmptyInput     = dto.ErrEmptyInput
	ErrNoPendingRun   = dto.ErrNoPendingRun
	ErrNoCheckpointer = dto.ErrNoCheckpointer
	ErrUnknownNode    = dto.ErrUnknownNode
	// ErrThreadNotFound is returned by GetState and History for a thread
	// without checkpoints.
	ErrThreadNotFound = checkpoint.ErrCheckpointNotFound
	// ErrUndeclaredKey is returned when input or an update writes a key a
	// strict schema does not declare.
	ErrUndeclaredKey = channel.ErrUndeclaredKey
)
