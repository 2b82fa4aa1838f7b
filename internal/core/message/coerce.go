package message

import (
	"fmt"
	"strings"
)

// Coerce converts the loose values that show up in graph state into
// messages. Strings become human messages; maps use the role (or type),
// content, id, name, tool_call_id and metadata keys. Maps and []interface{}
// are what state looks like after a JSON or msgpack round trip.
func Coerce(v interface{}) ([]Message, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case Message:
		return []Message{val}, nil
	case *Message:
		if val == nil {
			return nil, nil
		}
		return []Message{*val}, nil
	case []Message:
		return val, nil
	case string:
		return []Message{Human(val)}, nil
	case []string:
		out := make([]Message, len(val))
		for i, s := range val {
			out[i] = Human(s)
		}
		return out, nil
	case map[string]interface{}:
		m, err := fromMap(val)
		if err != nil {
			return nil, err
		}
		return []Message{m}, nil
	case []map[string]interface{}:
		out := make([]Message, 0, len(val))
		for _, item := range val {
			m, err := fromMap(item)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil
	case []interface{}:
		out := make([]Message, 0, len(val))
		for i, item := range val {
			ms, err := Coerce(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out = append(out, ms...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedMessage, v)
	}
}

// ParseRole maps role aliases onto a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "human", "user":
		return RoleHuman, nil
	case "ai", "assistant":
		return RoleAI, nil
	case "system", "developer":
		return RoleSystem, nil
	case "tool", "function":
		return RoleTool, nil
	case "remove":
		return RoleRemove, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

func fromMap(raw map[string]interface{}) (Message, error) {
	roleName, _ := raw["role"].(string)
	if roleName == "" {
		roleName, _ = raw["type"].(string)
	}
	role, err := ParseRole(roleName)
	if err != nil {
		return Message{}, err
	}
	m := Message{Role: role}
	m.ID, _ = raw["id"].(string)
	m.Content, _ = raw["content"].(string)
	m.Name, _ = raw["name"].(string)
	m.ToolCallID, _ = raw["tool_call_id"].(string)
	if md, ok := raw["metadata"].(map[string]interface{}); ok {
		m.Metadata = md
	}
	return m, nil
}

// ToMap is the inverse of the map form accepted by Coerce.
func (m Message) ToMap() map[string]interface{} {
	out := map[string]interface{}{
		"id":      m.ID,
		"role":    string(m.Role),
		"content": m.Content,
	}
	if m.Name != "" {
		out["name"] = m.Name
	}
	if m.ToolCallID != "" {
		out["tool_call_id"] = m.ToolCallID
	}
	if len(m.Metadata) > 0 {
		out["metadata"] = m.Metadata
	}
	return out
}
