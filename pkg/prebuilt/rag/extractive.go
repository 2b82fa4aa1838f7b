package rag

import (
	"context"
	"fmt"
	"strings"
)

// ExtractiveGenerator answers offline by quoting the best documents. It
// needs no model, which makes it the default for local runs and tests.
type ExtractiveGenerator struct {
	MaxDocuments int // documents quoted, default 1
	MaxChars     int // per document, 0 means no limit
}

// Generate quotes the top documents, or reports that nothing relevant was
// found.
func (g ExtractiveGenerator) Generate(_ context.Context, req GenerateRequest) (string, error) {
	if len(req.Documents) == 0 {
		return fmt.Sprintf("I could not find any relevant context for %q.", req.Question), nil
	}
	n := g.MaxDocuments
	if n <= 0 {
		n = 1
	}
	if n > len(req.Documents) {
		n = len(req.Documents)
	}

	parts := make([]string, 0, n)
	for _, d := range req.Documents[:n] {
		parts = append(parts, truncate(d.Content, g.MaxChars))
	}
	return strings.Join(parts, "\n\n"), nil
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := strings.LastIndexByte(s[:max], ' ')
	if cut <= 0 {
		cut = max
	}
	return s[:cut] + "..."
}
