package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/ragagent/internal/app/dto"
)

func TestValidationError(t *testing.T) {
	err := ValidationError{Field: "question", Value: "", Message: "field is required"}
	assert.Equal(t, "validation error on field 'question': field is required (got: )", err.Error())
}

func TestValidationErrors(t *testing.T) {
	errs := ValidationErrors{
		{Field: "question", Value: "", Message: "field is required"},
		{Field: "top_k", Value: -1, Message: "must be positive"},
	}

	expected := "validation error on field 'question': field is required (got: ); validation error on field 'top_k': must be positive (got: -1)"
	assert.Equal(t, expected, errs.Error())
	assert.ErrorIs(t, errs, ErrValidation)
	assert.Equal(t, "no validation errors", ValidationErrors{}.Error())
}

func TestValidateStruct(t *testing.T) {
	type sample struct {
		Name  string `json:"name" validate:"required"`
		Limit int    `json:"limit" validate:"min=0,max=120"`
		Node  string `json:"node" validate:"omitempty,node_id"`
	}

	tests := []struct {
		name       string
		input      interface{}
		wantFields []string
	}{
		{"valid", sample{Name: "a", Limit: 3, Node: "retrieve"}, nil},
		{"pointer", &sample{Name: "a"}, nil},
		{"missing name", sample{Limit: 3}, []string{"name"}},
		{"limit too large", sample{Name: "a", Limit: 121}, []string{"limit"}},
		{"sentinel node", sample{Name: "a", Node: "__end__"}, []string{"node"}},
		{"bad node chars", sample{Name: "a", Node: "has space"}, []string{"node"}},
		{"several", sample{Limit: -1}, []string{"name", "limit"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}
			var errs ValidationErrors
			require.True(t, errors.As(err, &errs))
			var fields []string
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestValidateStruct_NotAStruct(t *testing.T) {
	err := ValidateStruct("plain string")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestValidateStruct_RunConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     dto.RunConfig
		wantErr bool
	}{
		{"empty", dto.RunConfig{}, false},
		{"thread", dto.RunConfig{ThreadID: "user-42:session@1"}, false},
		{"thread with space", dto.RunConfig{ThreadID: "user 42"}, true},
		{"thread too long", dto.RunConfig{ThreadID: strings.Repeat("a", 129)}, true},
		{"negative limit", dto.RunConfig{RecursionLimit: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestModels(t *testing.T) {
	tests := []struct {
		name      string
		input     interface{}
		wantField string
	}{
		{"ask ok", &AskRequest{Question: "what is pgvector?", ThreadID: "t1"}, ""},
		{"ask blank", &AskRequest{Question: "   "}, "question"},
		{"ask missing", &AskRequest{}, "question"},
		{"ask bad thread", &AskRequest{Question: "q", ThreadID: "a b"}, "thread_id"},
		{"ingest ok", &IngestRequest{Documents: []DocumentInput{{ID: "d1", Content: "x"}, {Content: "y"}}}, ""},
		{"ingest empty", &IngestRequest{}, "documents"},
		{"ingest empty content", &IngestRequest{Documents: []DocumentInput{{ID: "d1"}}}, "documents[0].content"},
		{"ingest duplicate", &IngestRequest{Documents: []DocumentInput{{ID: "d1", Content: "x"}, {ID: "d1", Content: "y"}}}, "documents.id"},
		{"update ok", &StateUpdateRequest{AsNode: "generate", Messages: []MessageInput{{Role: "user", Content: "hi"}}}, ""},
		{"update bad role", &StateUpdateRequest{Messages: []MessageInput{{Role: "remove", Content: "hi"}}}, "messages[0].role"},
		{"update reserved node", &StateUpdateRequest{AsNode: "__start__"}, "as_node"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var errs ValidationErrors
			require.True(t, errors.As(err, &errs), "got %v", err)
			require.NotEmpty(t, errs)
			assert.Equal(t, tt.wantField, errs[0].Field)
		})
	}
}

func TestValidateWithConfig_MaxErrors(t *testing.T) {
	type many struct {
		A string `validate:"required"`
		B string `validate:"required"`
		C string `validate:"required"`
	}
	err := ValidateWithConfig(many{}, &ValidationConfig{MaxErrors: 2})
	var errs ValidationErrors
	require.True(t, errors.As(err, &errs))
	assert.Len(t, errs, 2)
}

func TestValidationMiddleware(t *testing.T) {
	middleware := NewMiddleware(nil)

	var got *AskRequest
	handler := middleware.ValidateJSON(AskRequest{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = Body[AskRequest](r)
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", `{"question":"what is a superstep?","thread_id":"t1"}`, http.StatusOK},
		{"missing question", `{"thread_id":"t1"}`, http.StatusBadRequest},
		{"unknown field", `{"question":"q","extra":1}`, http.StatusBadRequest},
		{"malformed", `{invalid json`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			req := httptest.NewRequest(http.MethodPost, "/v1/ask", bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusOK {
				require.NotNil(t, got)
				assert.Equal(t, "t1", got.ThreadID)
				return
			}
			assert.Nil(t, got)
			errs, err := UnmarshalValidationErrors(rr.Body.Bytes())
			require.NoError(t, err)
			assert.NotEmpty(t, errs)
		})
	}
}

func TestRequestValidator(t *testing.T) {
	handler := NewRequestValidator(nil).
		JSON(&AskRequest{}).
		QueryParams(map[string]string{"limit": "numeric", "thread": "thread_id"}).
		Build()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		url        string
		wantStatus int
	}{
		{"valid", "/x?limit=10&thread=t1", http.StatusNoContent},
		{"bad limit", "/x?limit=-3", http.StatusBadRequest},
		{"bad thread", "/x?thread=a%20b", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.url, bytes.NewBufferString(`{"question":"q"}`))
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestMarshalUnmarshalValidationErrors(t *testing.T) {
	errs := ValidationErrors{{Field: "question", Message: "field is required"}}

	data, err := MarshalValidationErrors(errs)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.EqualValues(t, 1, raw["count"])

	back, err := UnmarshalValidationErrors(data)
	require.NoError(t, err)
	assert.Equal(t, errs, back)
}
