package channel

import (
	"fmt"
	"sort"
)

// StateReducer folds a partial update into a full state
// PRINCIPLES:
// - ISP: Interface segregation with single method
// - SRP: Single responsibility - state reduction
type StateReducer interface {
	// Reduce returns a new state; current is left untouched
	Reduce(current, update map[string]interface{}) (map[string]interface{}, error)
}

// Schema declares the state keys of a graph and the reducer of each key.
// Keys without a declared reducer use the default (Replace) unless the
// schema is strict, in which case writing them is an error.
type Schema struct {
	reducers map[string]KeyReducer
	fallback KeyReducer
	strict   bool
}

// NewSchema creates an empty, non-strict schema.
func NewSchema() *Schema {
	return &Schema{
		reducers: make(map[string]KeyReducer),
		fallback: Replace,
	}
}

// WithReducer declares key with the given reducer; nil means Replace.
func (s *Schema) WithReducer(key string, r KeyReducer) *Schema {
	if r == nil {
		r = Replace
	}
	s.reducers[key] = r
	return s
}

// WithKey declares key with the Replace reducer.
func (s *Schema) WithKey(key string) *Schema {
	return s.WithReducer(key, Replace)
}

// WithDefault sets the reducer used for undeclared keys.
func (s *Schema) WithDefault(r KeyReducer) *Schema {
	if r != nil {
		s.fallback = r
	}
	return s
}

// Strict rejects writes to undeclared keys.
func (s *Schema) Strict() *Schema {
	s.strict = true
	return s
}

// Declared reports whether key has an explicit reducer.
func (s *Schema) Declared(key string) bool {
	_, ok := s.reducers[key]
	return ok
}

// Keys returns the declared keys in sorted order.
func (s *Schema) Keys() []string {
	keys := make([]string, 0, len(s.reducers))
	for k := range s.reducers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reduce applies update to current key by key, in sorted key order.
func (s *Schema) Reduce(current, update map[string]interface{}) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(current)+len(update))
	for k, v := range current {
		result[k] = v
	}

	keys := make([]string, 0, len(update))
	for k := range update {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if key == "" {
			return nil, ErrInvalidKey
		}
		reducer, ok := s.reducers[key]
		if !ok {
			if s.strict {
				return nil, fmt.Errorf("%w: %s", ErrUndeclaredKey, key)
			}
			reducer = s.fallback
		}
		next, err := reducer(result[key], update[key])
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %w", ErrReduce, key, err)
		}
		result[key] = next
	}
	return result, nil
}
