// Package rag is the retrieve/generate agent: a two-node graph that looks
// up documents for the latest question and answers from them. Retrieval
// and generation are pluggable so the same graph runs against an
// in-memory index with an extractive answerer or against pgvector and an
// LLM.
package rag

import (
	"context"

	"github.com/flowgraph/ragagent/internal/core/message"
)

// Document is a retrievable passage. Score is the similarity to the query
// when the document comes from a retriever.
type Document struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score,omitempty"`
}

// Retriever finds the documents most relevant to a query, best first.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)
}

// Indexer stores documents for later retrieval. Documents with an existing
// ID are replaced.
type Indexer interface {
	Index(ctx context.Context, docs []Document) error
}

// Embedder maps texts to vectors of a fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// GenerateRequest is what a Generator answers from.
type GenerateRequest struct {
	Question  string
	Documents []Document
	History   []message.Message // conversation before the question
}

// Generator produces an answer to a question given retrieved documents.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// RetrieverFunc adapts a function to Retriever.
type RetrieverFunc func(ctx context.Context, query string, topK int) ([]Document, error)

func (f RetrieverFunc) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	return f(ctx, query, topK)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req GenerateRequest) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return f(ctx, req)
}
