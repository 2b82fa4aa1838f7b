package rag

import (
	"github.com/flowgraph/ragagent/internal/core/message"
	"github.com/flowgraph/ragagent/pkg/flowgraph"
)

// AgentState is the typed view of the agent's graph state: the
// conversation, merged across steps by AddMessages.
type AgentState struct {
	Messages []message.Message `json:"messages"`
}

// Schema declares messages with the AddMessages reducer. It is strict:
// AgentState has no other keys, so writing one is an error.
func Schema() *flowgraph.Schema {
	return flowgraph.MessagesState().Strict()
}

// ToState converts the typed state into graph input.
func (s AgentState) ToState() flowgraph.State {
	return flowgraph.State{flowgraph.MessagesKey: s.Messages}
}

// AgentStateFrom reads the typed state back from graph state, including
// state restored from a checkpoint.
func AgentStateFrom(state flowgraph.State) (AgentState, error) {
	msgs, err := flowgraph.Messages(state)
	if err != nil {
		return AgentState{}, err
	}
	return AgentState{Messages: msgs}, nil
}

// Answer returns the content of the last AI message, or "".
func (s AgentState) Answer() string {
	if i := message.LastOfRole(s.Messages, message.RoleAI); i >= 0 {
		return s.Messages[i].Content
	}
	return ""
}

// Question builds the input of one conversational turn.
func Question(q string) flowgraph.State {
	return AgentState{Messages: []message.Message{message.Human(q)}}.ToState()
}
