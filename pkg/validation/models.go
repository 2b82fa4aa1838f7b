package validation

import (
	"strings"
)

// AskRequest is the body of POST /v1/ask.
type AskRequest struct {
	Question       string `json:"question" validate:"required,max=8000"`
	ThreadID       string `json:"thread_id,omitempty" validate:"omitempty,thread_id"`
	RecursionLimit int    `json:"recursion_limit,omitempty" validate:"omitempty,min=1,max=1000"`
}

// Validate rejects questions that are only whitespace.
func (r *AskRequest) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return ValidationErrors{{Field: "question", Value: r.Question, Message: "field is required"}}
	}
	return nil
}

// DocumentInput is one document to index.
type DocumentInput struct {
	ID       string                 `json:"id,omitempty" validate:"omitempty,max=255"`
	Content  string                 `json:"content" validate:"required"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// IngestRequest is the body of POST /v1/documents.
type IngestRequest struct {
	Documents []DocumentInput `json:"documents" validate:"required,min=1,max=1000,dive"`
}

// Validate rejects duplicate document IDs within one request.
func (r *IngestRequest) Validate() error {
	var errs ValidationErrors
	seen := make(map[string]bool)
	for _, d := range r.Documents {
		if d.ID == "" {
			continue
		}
		if seen[d.ID] {
			errs = append(errs, ValidationError{Field: "documents.id", Value: d.ID, Message: "duplicate document ID"})
		}
		seen[d.ID] = true
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// StateUpdateRequest is the body of PATCH /v1/threads/{id}/state.
type StateUpdateRequest struct {
	AsNode   string                 `json:"as_node,omitempty" validate:"omitempty,node_id"`
	Messages []MessageInput         `json:"messages,omitempty" validate:"omitempty,dive"`
	Values   map[string]interface{} `json:"values,omitempty"`
}

// MessageInput is a chat message supplied by an API client.
type MessageInput struct {
	ID      string `json:"id,omitempty"`
	Role    string `json:"role" validate:"required,message_role"`
	Content string `json:"content" validate:"required"`
}
