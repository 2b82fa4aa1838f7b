package pregel

import "errors"

var ErrNodePanic = errors.New("node panicked")
