// Package memory is an in-process document index ranked by cosine
// similarity.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/flowgraph/ragagent/internal/infrastructure/metrics"
	"github.com/flowgraph/ragagent/pkg/prebuilt/rag"
)

var (
	ErrNilEmbedder     = errors.New("embedder is required")
	ErrEmptyDocumentID = errors.New("document ID is required")
	ErrDimension       = errors.New("embedding dimension mismatch")
)

type entry struct {
	doc    rag.Document
	vector []float32
	seq    int
}

// Store keeps documents and their embeddings in memory
// PRINCIPLES:
// - KISS: Linear scan, no index structure
// - Thread-safe
type Store struct {
	mu        sync.RWMutex
	embedder  rag.Embedder
	threshold float64
	docs      map[string]*entry
	seq       int
}

var (
	_ rag.Retriever = (*Store)(nil)
	_ rag.Indexer   = (*Store)(nil)
)

// New creates a store. Documents scoring at or below threshold are never
// returned.
func New(embedder rag.Embedder, threshold float64) (*Store, error) {
	if embedder == nil {
		return nil, ErrNilEmbedder
	}
	return &Store{
		embedder:  embedder,
		threshold: threshold,
		docs:      make(map[string]*entry),
	}, nil
}

// Index embeds and stores docs, replacing documents with the same ID.
func (s *Store) Index(ctx context.Context, docs []rag.Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("document %d: %w", i, ErrEmptyDocumentID)
		}
		texts[i] = d.Content
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("%w: got %d embeddings for %d documents", ErrDimension, len(vectors), len(docs))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range docs {
		d.Score = 0
		if prev, ok := s.docs[d.ID]; ok {
			prev.doc, prev.vector = d, vectors[i]
			continue
		}
		s.seq++
		s.docs[d.ID] = &entry{doc: d, vector: vectors[i], seq: s.seq}
	}
	metrics.AddDocumentsIndexed(len(docs))
	return nil
}

// Retrieve returns up to topK documents scoring above the threshold, best
// first. Ties keep indexing order.
func (s *Store) Retrieve(ctx context.Context, query string, topK int) ([]rag.Document, error) {
	if topK <= 0 {
		return nil, nil
	}
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: got %d query embeddings", ErrDimension, len(vectors))
	}
	q := vectors[0]

	s.mu.RLock()
	type scored struct {
		e     *entry
		score float64
	}
	hits := make([]scored, 0, len(s.docs))
	for _, e := range s.docs {
		if len(e.vector) != len(q) {
			s.mu.RUnlock()
			return nil, fmt.Errorf("%w: document %s has %d, query has %d", ErrDimension, e.doc.ID, len(e.vector), len(q))
		}
		if score := Cosine(q, e.vector); score > s.threshold {
			hits = append(hits, scored{e, score})
		}
	}
	s.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].e.seq < hits[j].e.seq
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	out := make([]rag.Document, len(hits))
	for i, h := range hits {
		out[i] = h.e.doc
		out[i].Score = h.score
	}
	return out, nil
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Cosine returns the cosine similarity of a and b, 0 when either is zero.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
