// Package channel provides per-key state reduction: every state key is a
// channel whose writes are folded into the current value by a reducer.
package channel

import (
	"fmt"
	"reflect"

	"github.com/flowgraph/ragagent/internal/core/message"
)

// KeyReducer folds an update into the current value of one state key.
// current is nil when the key has no value yet.
type KeyReducer func(current, update interface{}) (interface{}, error)

// Replace keeps the update. It is the default for undeclared keys.
func Replace(_, update interface{}) (interface{}, error) {
	return update, nil
}

// Append concatenates slices, wrapping scalars as needed
// PRINCIPLES:
// - KISS: reflect-based concat, no per-type code
func Append(current, update interface{}) (interface{}, error) {
	if current == nil {
		return update, nil
	}
	if update == nil {
		return current, nil
	}
	currentV := reflect.ValueOf(current)
	updateV := reflect.ValueOf(update)

	switch {
	case currentV.Kind() == reflect.Slice && updateV.Kind() == reflect.Slice:
		if currentV.Type() != updateV.Type() {
			return append(toInterfaces(currentV), toInterfaces(updateV)...), nil
		}
		out := reflect.MakeSlice(currentV.Type(), 0, currentV.Len()+updateV.Len())
		out = reflect.AppendSlice(out, currentV)
		return reflect.AppendSlice(out, updateV).Interface(), nil
	case currentV.Kind() == reflect.Slice:
		if !updateV.Type().AssignableTo(currentV.Type().Elem()) {
			return append(toInterfaces(currentV), update), nil
		}
		out := reflect.MakeSlice(currentV.Type(), 0, currentV.Len()+1)
		out = reflect.AppendSlice(out, currentV)
		return reflect.Append(out, updateV).Interface(), nil
	case updateV.Kind() == reflect.Slice:
		return append([]interface{}{current}, toInterfaces(updateV)...), nil
	default:
		return []interface{}{current, update}, nil
	}
}

func toInterfaces(v reflect.Value) []interface{} {
	out := make([]interface{}, v.Len())
	for i := range out {
		out[i] = v.Index(i).Interface()
	}
	return out
}

// Merge recursively merges maps; non-map values are replaced.
func Merge(current, update interface{}) (interface{}, error) {
	return mergeValues(current, update), nil
}

func mergeValues(current, update interface{}) interface{} {
	currentMap, ok := current.(map[string]interface{})
	if !ok {
		return update
	}
	updateMap, ok := update.(map[string]interface{})
	if !ok {
		return update
	}
	merged := make(map[string]interface{}, len(currentMap)+len(updateMap))
	for k, v := range currentMap {
		merged[k] = v
	}
	for k, v := range updateMap {
		if existing, exists := merged[k]; exists {
			merged[k] = mergeValues(existing, v)
		} else {
			merged[k] = v
		}
	}
	return merged
}

// Messages merges message lists with add_messages semantics. Both sides
// are coerced first, so strings, maps and decoded slices are accepted.
func Messages(current, update interface{}) (interface{}, error) {
	left, err := message.Coerce(current)
	if err != nil {
		return nil, fmt.Errorf("current messages: %w", err)
	}
	right, err := message.Coerce(update)
	if err != nil {
		return nil, fmt.Errorf("message update: %w", err)
	}
	return message.AddMessages(left, right)
}
