package memory

import "errors"

var ErrMemoryLimit = errors.New("memory limit exceeded")
