// Package prebuilt provides ready-made state graphs for common agent
// patterns. Each prebuilt takes a typed configuration and returns a
// *flowgraph.StateGraph that can be compiled as is or extended first.
// The rag subpackage registers the retrieve/generate agent.
package prebuilt

import "errors"

// ErrUnknownPrebuilt is returned by Registry.Build for unregistered names.
var ErrUnknownPrebuilt = errors.New("unknown prebuilt")

// ErrInvalidConfig is returned when a builder receives the wrong config type.
var ErrInvalidConfig = errors.New("invalid prebuilt configuration")
