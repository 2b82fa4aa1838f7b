// Package openai adapts the OpenAI API to the rag embedder and generator
// interfaces.
package openai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/flowgraph/ragagent/internal/core/message"
	"github.com/flowgraph/ragagent/pkg/prebuilt/rag"
)

const (
	DefaultModel          = openai.GPT3Dot5Turbo
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultTimeout        = 30 * time.Second
)

// SystemPrompt instructs the model to stay inside the retrieved context.
const SystemPrompt = `You are a helpful assistant that answers questions based on the provided context.
Use only the information from the context to answer questions. If the context doesn't contain enough
information to answer the question, say so clearly. Be concise but comprehensive in your responses.`

var (
	ErrNoAPIKey     = errors.New("openai api key is required")
	ErrNoChoices    = errors.New("no choices returned from API")
	ErrNoEmbeddings = errors.New("embedding count does not match input")
)

// Config holds client settings. Zero values fall back to the defaults.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	// Dimensions truncates embeddings to the vector column width. Zero
	// keeps the model's native size.
	Dimensions     int
	MaxTokens      int
	Temperature    float32
	Timeout        time.Duration
}

// Client wraps the go-openai client.
type Client struct {
	client *openai.Client
	cfg    Config
}

var (
	_ rag.Embedder  = (*Client)(nil)
	_ rag.Generator = (*Client)(nil)
)

// New creates a client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &Client{client: openai.NewClientWithConfig(oc), cfg: cfg}, nil
}

// Embed creates one embedding per text in a single request.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(c.cfg.EmbeddingModel),
		Dimensions: c.cfg.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d for %d texts", ErrNoEmbeddings, len(resp.Data), len(texts))
	}
	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}
	return out, nil
}

// Generate answers req.Question with a chat completion grounded on the
// retrieved documents. Earlier human and ai turns are sent as history.
func (c *Client) Generate(ctx context.Context, req rag.GenerateRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    ChatMessages(req),
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ChatMessages builds the request transcript: the system prompt, prior
// conversation turns, then the question with its context.
func ChatMessages(req rag.GenerateRequest) []openai.ChatCompletionMessage {
	out := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt}}
	// Earlier retrieval tool messages are dropped; only the current context is sent.
	for _, m := range req.History {
		switch m.Role {
		case message.RoleHuman:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		case message.RoleAI:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content})
		case message.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: m.Content})
		}
	}

	var b strings.Builder
	b.WriteString("Context:\n")
	if len(req.Documents) == 0 {
		b.WriteString("(no relevant documents)\n")
	}
	for i, d := range req.Documents {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, d.Content)
	}
	fmt.Fprintf(&b, "Question: %s\n\nPlease answer the question based on the provided context.", req.Question)
	return append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: b.String()})
}
