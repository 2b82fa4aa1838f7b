// Package channel defines domain-specific errors
package channel

import "errors"

// Domain errors - DRY principle: defined once, used everywhere
var (
	ErrInvalidKey    = errors.New("invalid state key")
	ErrUndeclaredKey = errors.New("state key not declared in schema")
	ErrReduce        = errors.New("reduce failed")
)
