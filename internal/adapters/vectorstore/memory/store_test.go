package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/ragagent/internal/adapters/embedding/hash"
	"github.com/flowgraph/ragagent/pkg/prebuilt/rag"
)

var docs = []rag.Document{
	{ID: "pregel", Content: "Pregel runs graph nodes in supersteps separated by barriers."},
	{ID: "reducers", Content: "Reducers merge node updates into the shared state."},
	{ID: "pgvector", Content: "pgvector stores embeddings in Postgres and ranks them by cosine distance."},
}

func newStore(t *testing.T, threshold float64) *Store {
	t.Helper()
	e, err := hash.New(256)
	require.NoError(t, err)
	s, err := New(e, threshold)
	require.NoError(t, err)
	require.NoError(t, s.Index(context.Background(), docs))
	return s
}

func TestStore_Retrieve(t *testing.T) {
	s := newStore(t, 0)
	ctx := context.Background()

	tests := []struct {
		name    string
		query   string
		topK    int
		wantTop string
		wantMax int
	}{
		{"supersteps", "what are supersteps in pregel?", 3, "pregel", 3},
		{"reducers", "how do reducers merge updates", 1, "reducers", 1},
		{"embeddings", "where are embeddings stored", 2, "pgvector", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Retrieve(ctx, tt.query, tt.topK)
			require.NoError(t, err)
			require.NotEmpty(t, got)
			assert.LessOrEqual(t, len(got), tt.wantMax)
			assert.Equal(t, tt.wantTop, got[0].ID)
			assert.Greater(t, got[0].Score, 0.0)
			for i := 1; i < len(got); i++ {
				assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
			}
		})
	}

	none, err := s.Retrieve(ctx, "pregel", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_Threshold(t *testing.T) {
	s := newStore(t, 0.99)
	got, err := s.Retrieve(context.Background(), "zebra crossing", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_IndexReplaces(t *testing.T) {
	s := newStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Index(ctx, []rag.Document{{ID: "pregel", Content: "Bulk synchronous parallel barriers."}}))
	assert.Equal(t, 3, s.Len())

	got, err := s.Retrieve(ctx, "bulk synchronous parallel", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Bulk synchronous parallel barriers.", got[0].Content)

	err = s.Index(ctx, []rag.Document{{Content: "no id"}})
	assert.ErrorIs(t, err, ErrEmptyDocumentID)
}

type mockEmbedder struct {
	mock.Mock
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	v, _ := args.Get(0).([][]float32)
	return v, args.Error(1)
}

func TestStore_EmbedderErrors(t *testing.T) {
	_, err := New(nil, 0)
	assert.ErrorIs(t, err, ErrNilEmbedder)

	boom := errors.New("quota exceeded")
	e := new(mockEmbedder)
	e.On("Embed", mock.Anything, []string{"a"}).Return(nil, boom)
	e.On("Embed", mock.Anything, []string{"b"}).Return([][]float32{}, nil)
	e.On("Embed", mock.Anything, []string{"ok"}).Return([][]float32{{1, 0}}, nil)
	e.On("Embed", mock.Anything, []string{"wide"}).Return([][]float32{{1, 0, 0}}, nil)

	s, err := New(e, 0)
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, s.Index(ctx, []rag.Document{{ID: "1", Content: "a"}}), boom)
	assert.ErrorIs(t, s.Index(ctx, []rag.Document{{ID: "1", Content: "b"}}), ErrDimension)
	require.NoError(t, s.Index(ctx, []rag.Document{{ID: "1", Content: "ok"}}))

	_, err = s.Retrieve(ctx, "wide", 1)
	assert.ErrorIs(t, err, ErrDimension)
	got, err := s.Retrieve(ctx, "ok", 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestStore_WithWorkflow(t *testing.T) {
	s := newStore(t, 0.05)
	app, err := rag.Compile(rag.Config{Retriever: s, Generator: rag.ExtractiveGenerator{}, TopK: 2})
	require.NoError(t, err)

	state, err := app.Invoke(context.Background(), rag.Question("What does pgvector store?"))
	require.NoError(t, err)
	as, err := rag.AgentStateFrom(state)
	require.NoError(t, err)
	assert.Equal(t, docs[2].Content, as.Answer())
}
