package message

import (
	"fmt"
)

// AddMessages merges right into left.
// Messages are matched by ID: a right message whose ID already exists
// replaces the existing one in place, a removal marker deletes it, and
// everything else is appended in order. Messages without an ID are
// assigned one. A RemoveAll marker in right discards left and every right
// message preceding the last marker. Neither input is modified, and
// merged messages carry their own metadata maps.
func AddMessages(left, right []Message) ([]Message, error) {
	left = withIDs(left)
	right = withIDs(right)

	if cut := lastRemoveAll(right); cut >= 0 {
		kept := make([]Message, 0, len(right)-cut-1)
		for _, m := range right[cut+1:] {
			kept = append(kept, m.Clone())
		}
		return kept, nil
	}

	merged := make([]Message, len(left), len(left)+len(right))
	copy(merged, left)
	index := make(map[string]int, len(merged))
	for i, m := range merged {
		index[m.ID] = i
	}

	removed := make(map[string]bool)
	for _, m := range right {
		i, exists := index[m.ID]
		switch {
		case exists && m.IsRemove():
			removed[m.ID] = true
		case exists:
			merged[i] = m.Clone()
			delete(removed, m.ID)
		case m.IsRemove():
			return nil, fmt.Errorf("%w: %s", ErrRemoveUnknownID, m.ID)
		default:
			index[m.ID] = len(merged)
			merged = append(merged, m.Clone())
		}
	}

	if len(removed) == 0 {
		return merged, nil
	}
	return Filter(merged, func(m Message) bool { return !removed[m.ID] }), nil
}

// withIDs returns msgs with every empty ID filled; the input is copied
// only when an ID is missing.
func withIDs(msgs []Message) []Message {
	var out []Message
	for i, m := range msgs {
		if m.ID != "" {
			continue
		}
		if out == nil {
			out = make([]Message, len(msgs))
			copy(out, msgs)
		}
		out[i].ID = newID()
	}
	if out == nil {
		return msgs
	}
	return out
}

func lastRemoveAll(msgs []Message) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].IsRemove() && msgs[i].ID == RemoveAllID {
			return i
		}
	}
	return -1
}
