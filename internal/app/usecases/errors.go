package usecases

import "errors"

var (
	ErrUnknownDestination = errors.New("router returned an unknown destination")
	ErrMissingNodeFunc    = errors.New("node has no registered function")
)
