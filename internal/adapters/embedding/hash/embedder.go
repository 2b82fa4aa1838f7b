// Package hash embeds text offline with the hashing trick: every token is
// hashed into one of a fixed number of buckets and the resulting counts are
// L2-normalised. Texts sharing words end up close under cosine similarity,
// which is enough for local runs and tests without an embedding API.
package hash

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/flowgraph/ragagent/pkg/prebuilt/rag"
)

// DefaultDimensions matches the size used by the pgvector schema default.
const DefaultDimensions = 256

var ErrInvalidDimensions = errors.New("dimensions must be positive")

// Embedder is a deterministic bag-of-words embedder.
type Embedder struct {
	dims int
}

var _ rag.Embedder = (*Embedder)(nil)

// New creates an embedder producing vectors of dims entries.
func New(dims int) (*Embedder, error) {
	if dims <= 0 {
		return nil, ErrInvalidDimensions
	}
	return &Embedder{dims: dims}, nil
}

// Dimensions returns the vector size.
func (e *Embedder) Dimensions() int {
	return e.dims
}

// Embed returns one vector per text. Empty texts embed to the zero vector.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *Embedder) embed(text string) []float32 {
	vec := make([]float32, e.dims)
	for _, tok := range Tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		sum := h.Sum32()
		// The top bit picks the sign so unrelated tokens cancel out on average.
		if sum&(1<<31) != 0 {
			vec[sum%uint32(e.dims)] -= 1
		} else {
			vec[sum%uint32(e.dims)] += 1
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// Tokenize lowercases text and splits it on anything that is not a letter
// or digit. Tokens shorter than two runes are dropped.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			out = append(out, f)
		}
	}
	return out
}
