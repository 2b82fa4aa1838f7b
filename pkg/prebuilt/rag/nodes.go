package rag

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/flowgraph/ragagent/internal/core/message"
	"github.com/flowgraph/ragagent/internal/infrastructure/metrics"
	"github.com/flowgraph/ragagent/internal/logging"
	"github.com/flowgraph/ragagent/pkg/flowgraph"
)

// Node names of the workflow.
const (
	RetrieveNodeName = "retrieve"
	GenerateNodeName = "generate"
)

// NoDocuments is the content of a retrieval message that found nothing.
const NoDocuments = "No relevant documents found."

// Metadata keys of the retrieval message.
const (
	metaDocumentIDs = "document_ids"
	metaScores      = "scores"
	metaPassages    = "passages"
)

var passageMarker = regexp.MustCompile(`(?m)^\[\d+\] `)

// RetrieveNode looks up documents for the last human message and appends
// them to the conversation as a tool message named "retrieve".
func RetrieveNode(retriever Retriever, topK int) flowgraph.NodeFunc {
	return func(ctx context.Context, state flowgraph.State) (flowgraph.State, error) {
		msgs, err := flowgraph.Messages(state)
		if err != nil {
			return nil, err
		}
		i := message.LastOfRole(msgs, message.RoleHuman)
		if i < 0 || strings.TrimSpace(msgs[i].Content) == "" {
			return nil, ErrNoQuestion
		}

		docs, err := retriever.Retrieve(ctx, msgs[i].Content, topK)
		if err != nil {
			return nil, fmt.Errorf("retrieve: %w", err)
		}
		metrics.AddDocumentsRetrieved(len(docs))
		logging.FromContext(ctx).Debug("documents retrieved",
			slog.String("node", RetrieveNodeName),
			slog.Int("count", len(docs)))

		return flowgraph.State{flowgraph.MessagesKey: RetrievalMessage(docs)}, nil
	}
}

// RetrievalMessage renders documents as a numbered tool message. Document
// IDs, scores and passage texts travel in its metadata.
func RetrievalMessage(docs []Document) message.Message {
	msg := message.Tool(NoDocuments, RetrieveNodeName)
	ids := make([]string, len(docs))
	scores := make([]float64, len(docs))
	passages := make([]string, len(docs))
	var b strings.Builder
	for i, d := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		passages[i] = strings.TrimSpace(d.Content)
		fmt.Fprintf(&b, "[%d] %s", i+1, passages[i])
		ids[i] = d.ID
		scores[i] = d.Score
	}
	if len(docs) > 0 {
		msg.Content = b.String()
	}
	msg.Metadata = map[string]any{metaDocumentIDs: ids, metaScores: scores, metaPassages: passages}
	return msg
}

// DocumentsFrom recovers the documents carried by a retrieval message.
// Passages come from the metadata; a message without them, such as one
// written through UpdateState, is split on its "[n] " markers.
func DocumentsFrom(msg message.Message) []Document {
	if msg.Content == NoDocuments {
		return nil
	}
	passages := toStrings(msg.Metadata[metaPassages])
	if len(passages) == 0 {
		passages = splitPassages(msg.Content)
	}
	ids := toStrings(msg.Metadata[metaDocumentIDs])
	scores := toFloats(msg.Metadata[metaScores])

	docs := make([]Document, len(passages))
	for i, p := range passages {
		docs[i] = Document{Content: p}
		if i < len(ids) {
			docs[i].ID = ids[i]
		}
		if i < len(scores) {
			docs[i].Score = scores[i]
		}
	}
	return docs
}

func splitPassages(content string) []string {
	marks := passageMarker.FindAllStringIndex(content, -1)
	if len(marks) == 0 {
		if s := strings.TrimSpace(content); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, len(marks))
	for i, m := range marks {
		end := len(content)
		if i+1 < len(marks) {
			end = marks[i+1][0]
		}
		out[i] = strings.TrimSpace(content[m[1]:end])
	}
	return out
}

// GenerateNode answers the last human message from the retrieval message
// that follows it and appends the answer as an AI message.
func GenerateNode(generator Generator) flowgraph.NodeFunc {
	return func(ctx context.Context, state flowgraph.State) (flowgraph.State, error) {
		msgs, err := flowgraph.Messages(state)
		if err != nil {
			return nil, err
		}
		q := message.LastOfRole(msgs, message.RoleHuman)
		if q < 0 {
			return nil, ErrNoQuestion
		}
		r := -1
		for j := q + 1; j < len(msgs); j++ {
			if msgs[j].Role == message.RoleTool && msgs[j].Name == RetrieveNodeName {
				r = j
			}
		}
		if r < 0 {
			return nil, ErrNoRetrieval
		}

		answer, err := generator.Generate(ctx, GenerateRequest{
			Question:  msgs[q].Content,
			Documents: DocumentsFrom(msgs[r]),
			History:   msgs[:q],
		})
		if err != nil {
			return nil, fmt.Errorf("generate: %w", err)
		}
		if strings.TrimSpace(answer) == "" {
			return nil, ErrEmptyAnswer
		}
		metrics.IncGenerations()
		return flowgraph.State{flowgraph.MessagesKey: message.AI(answer)}, nil
	}
}

func toStrings(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		out := make([]string, len(val))
		for i, x := range val {
			out[i], _ = x.(string)
		}
		return out
	}
	return nil
}

func toFloats(v any) []float64 {
	switch val := v.(type) {
	case []float64:
		return val
	case []any:
		out := make([]float64, len(val))
		for i, x := range val {
			out[i] = toFloat(x)
		}
		return out
	}
	return nil
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	}
	return 0
}
