package checkpoint

import "errors"

// Checkpoint errors. Savers wrap the persistence errors with the
// underlying cause.
var (
	ErrInvalidCheckpointID = errors.New("invalid checkpoint ID")
	ErrInvalidGraphID      = errors.New("invalid graph ID")
	ErrInvalidThreadID     = errors.New("invalid thread ID")
	ErrNilState            = errors.New("checkpoint state cannot be nil")
	ErrCheckpointNotFound  = errors.New("checkpoint not found")

	ErrInvalidLimit     = errors.New("limit cannot be negative")
	ErrInvalidOffset    = errors.New("offset cannot be negative")
	ErrInvalidTimeRange = errors.New("invalid time range: since is after before")

	ErrSaveFailed   = errors.New("failed to save checkpoint")
	ErrLoadFailed   = errors.New("failed to load checkpoint")
	ErrDeleteFailed = errors.New("failed to delete checkpoint")
)
