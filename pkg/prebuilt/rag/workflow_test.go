package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/ragagent/internal/adapters/repository/memory"
	"github.com/flowgraph/ragagent/internal/core/message"
	"github.com/flowgraph/ragagent/pkg/flowgraph"
	"github.com/flowgraph/ragagent/pkg/prebuilt"
)

// keywordRetriever returns corpus documents sharing a word with the query.
func keywordRetriever(docs []Document) Retriever {
	return RetrieverFunc(func(_ context.Context, query string, topK int) ([]Document, error) {
		var out []Document
		for _, d := range docs {
			for _, w := range strings.Fields(strings.ToLower(query)) {
				if strings.Contains(strings.ToLower(d.Content), strings.Trim(w, "?")) {
					out = append(out, d)
					break
				}
			}
		}
		if len(out) > topK {
			out = out[:topK]
		}
		return out, nil
	})
}

func testConfig() Config {
	return Config{Retriever: keywordRetriever(corpus), Generator: ExtractiveGenerator{}}
}

func TestWorkflow_Structure(t *testing.T) {
	app, err := Compile(testConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"retrieve", "generate"}, app.Nodes())
	edges := app.Edges()
	require.Len(t, edges, 3)
	assert.Equal(t, [][2]string{
		{flowgraph.START, "retrieve"},
		{"retrieve", "generate"},
		{"generate", flowgraph.END},
	}, [][2]string{
		{edges[0].Source, edges[0].Target},
		{edges[1].Source, edges[1].Target},
		{edges[2].Source, edges[2].Target},
	})
	assert.Equal(t, PrebuiltName, app.Graph().ID)
	assert.Equal(t, flowgraph.NodeTypeTool, app.Graph().Nodes["retrieve"].Type)
	assert.Equal(t, flowgraph.NodeTypeAgent, app.Graph().Nodes["generate"].Type)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"nil retriever", Config{Generator: ExtractiveGenerator{}}, ErrNilRetriever},
		{"nil generator", Config{Retriever: keywordRetriever(nil)}, ErrNilGenerator},
		{"top k too large", Config{Retriever: keywordRetriever(nil), Generator: ExtractiveGenerator{}, TopK: 1000}, ErrInvalidConfig},
		{"negative retries", Config{Retriever: keywordRetriever(nil), Generator: ExtractiveGenerator{}, Retries: -1}, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWorkflow(tt.cfg)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	cfg := testConfig()
	require.NoError(t, ValidateConfig(&cfg))
	assert.Equal(t, DefaultTopK, cfg.TopK)
}

func TestWorkflow_RejectsUndeclaredKeys(t *testing.T) {
	app, err := Compile(testConfig())
	require.NoError(t, err)

	_, err = app.Invoke(context.Background(), flowgraph.State{"topic": "pregel"})
	assert.ErrorIs(t, err, flowgraph.ErrUndeclaredKey)

	out, err := app.Invoke(context.Background(), Question("What are supersteps?"))
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestWorkflow_Registered(t *testing.T) {
	assert.Contains(t, prebuilt.DefaultRegistry.Names(), PrebuiltName)

	sg, err := prebuilt.DefaultRegistry.Build(context.Background(), PrebuiltName, testConfig())
	require.NoError(t, err)
	_, err = sg.Compile()
	require.NoError(t, err)

	_, err = prebuilt.DefaultRegistry.Build(context.Background(), PrebuiltName, "not a config")
	assert.ErrorIs(t, err, prebuilt.ErrInvalidConfig)
}

func TestWorkflow_AnswersAcrossTurns(t *testing.T) {
	saver := memory.DefaultInMemorySaver()
	defer saver.Close()
	app, err := Compile(testConfig(), flowgraph.WithCheckpointer(saver))
	require.NoError(t, err)
	ctx := context.Background()

	state, err := app.Invoke(ctx, Question("How does pregel work?"), flowgraph.WithThreadID("chat"))
	require.NoError(t, err)
	turn1, err := AgentStateFrom(state)
	require.NoError(t, err)
	assert.Equal(t, corpus[0].Content, turn1.Answer())

	state, err = app.Invoke(ctx, Question("what do reducers merge?"), flowgraph.WithThreadID("chat"))
	require.NoError(t, err)
	turn2, err := AgentStateFrom(state)
	require.NoError(t, err)
	assert.Equal(t, corpus[1].Content, turn2.Answer())

	var roles []message.Role
	for _, m := range turn2.Messages {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []message.Role{
		message.RoleHuman, message.RoleTool, message.RoleAI,
		message.RoleHuman, message.RoleTool, message.RoleAI,
	}, roles)

	state, err = app.Invoke(ctx, Question("zebra"), flowgraph.WithThreadID("other"))
	require.NoError(t, err)
	miss, err := AgentStateFrom(state)
	require.NoError(t, err)
	assert.Contains(t, miss.Answer(), "could not find any relevant context")
}
