package validation

import "errors"

var (
	ErrValidation     = errors.New("validation failed")
	ErrNilGraph       = errors.New("graph is nil")
	ErrNilElement     = errors.New("nil node or edge encountered")
	ErrUnreachable    = errors.New("node is unreachable from start")
	ErrNoPathToEnd    = errors.New("node has no path to end")
	ErrDanglingBranch = errors.New("conditional branch without a source node")
)
