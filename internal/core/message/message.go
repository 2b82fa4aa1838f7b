// Package message defines the chat message model carried in agent state
// and the add_messages reducer that merges message lists across steps.
package message

import (
	"strings"

	"github.com/google/uuid"
)

// Role identifies who produced a message.
type Role string

const (
	// RoleHuman is a message written by the user
	RoleHuman Role = "human"
	// RoleAI is a model response
	RoleAI Role = "ai"
	// RoleSystem carries instructions for the model
	RoleSystem Role = "system"
	// RoleTool carries the output of a tool or retrieval step
	RoleTool Role = "tool"
	// RoleRemove marks the message with the same ID for deletion
	RoleRemove Role = "remove"
)

// RemoveAllID is the ID of the marker that clears every earlier message.
const RemoveAllID = "__remove_all__"

// Message represents a single entry in a conversation
// PRINCIPLES:
// - KISS: One flat struct for every role
// - SRP: Data only, merging lives in AddMessages
type Message struct {
	ID         string                 `json:"id" msgpack:"id"`
	Role       Role                   `json:"role" msgpack:"role"`
	Content    string                 `json:"content" msgpack:"content"`
	Name       string                 `json:"name,omitempty" msgpack:"name,omitempty"`
	ToolCallID string                 `json:"tool_call_id,omitempty" msgpack:"tool_call_id,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
}

// Human builds a user message.
func Human(content string) Message {
	return Message{Role: RoleHuman, Content: content}
}

// AI builds a model response.
func AI(content string) Message {
	return Message{Role: RoleAI, Content: content}
}

// System builds a system instruction.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// Tool builds a tool output attributed to name.
func Tool(content, name string) Message {
	return Message{Role: RoleTool, Content: content, Name: name}
}

// Remove builds a marker deleting the message with the given ID.
func Remove(id string) Message {
	return Message{ID: id, Role: RoleRemove}
}

// RemoveAll builds a marker that drops all messages merged before it.
func RemoveAll() Message {
	return Message{ID: RemoveAllID, Role: RoleRemove}
}

// WithID returns a copy of m carrying id.
func (m Message) WithID(id string) Message {
	m.ID = id
	return m
}

// IsRemove reports whether m is a removal marker.
func (m Message) IsRemove() bool {
	return m.Role == RoleRemove
}

// Clone returns a copy with its own metadata map.
func (m Message) Clone() Message {
	if m.Metadata != nil {
		md := make(map[string]interface{}, len(m.Metadata))
		for k, v := range m.Metadata {
			md[k] = v
		}
		m.Metadata = md
	}
	return m
}

func newID() string {
	return uuid.NewString()
}

// LastOfRole returns the index of the last message with the given role, or -1.
func LastOfRole(msgs []Message, role Role) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == role {
			return i
		}
	}
	return -1
}

// Filter returns the messages for which keep returns true.
func Filter(msgs []Message, keep func(Message) bool) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

// Text renders a plain transcript, one "role: content" line per message.
func Text(msgs []Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(m.Role))
		if m.Name != "" {
			b.WriteString("(" + m.Name + ")")
		}
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}
