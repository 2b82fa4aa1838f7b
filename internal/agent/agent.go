// Package agent assembles the retrieve/generate workflow from
// configuration: checkpoint saver, embedder, document store and generator.
// The CLI and the HTTP server both run the agent through it.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowgraph/ragagent/internal/adapters/embedding/hash"
	"github.com/flowgraph/ragagent/internal/adapters/llm/openai"
	graphrepo "github.com/flowgraph/ragagent/internal/adapters/repository/graph"
	"github.com/flowgraph/ragagent/internal/adapters/repository/memory"
	"github.com/flowgraph/ragagent/internal/adapters/repository/postgres"
	"github.com/flowgraph/ragagent/internal/adapters/repository/sqlite"
	memstore "github.com/flowgraph/ragagent/internal/adapters/vectorstore/memory"
	"github.com/flowgraph/ragagent/internal/adapters/vectorstore/pgvector"
	"github.com/flowgraph/ragagent/internal/config"
	"github.com/flowgraph/ragagent/internal/core/message"
	"github.com/flowgraph/ragagent/internal/logging"
	"github.com/flowgraph/ragagent/pkg/flowgraph"
	"github.com/flowgraph/ragagent/pkg/prebuilt/rag"
	"github.com/flowgraph/ragagent/pkg/serialization"
)

// Store is a document store the agent retrieves from and indexes into.
type Store interface {
	rag.Retriever
	rag.Indexer
}

// Agent is a compiled workflow plus the backends it owns.
type Agent struct {
	Graph  *flowgraph.CompiledGraph
	Store  Store
	Graphs *graphrepo.InMemoryGraphRepository

	cfg     config.Config
	log     *slog.Logger
	closers []func()
}

// Answer is the outcome of one conversational turn.
type Answer struct {
	ThreadID  string            `json:"thread_id"`
	Answer    string            `json:"answer"`
	Documents []rag.Document    `json:"documents"`
	Messages  []message.Message `json:"messages"`
	Duration  time.Duration     `json:"duration"`
}

// New builds every backend named in cfg. On error, whatever was opened is
// closed again.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (a *Agent, err error) {
	if logger == nil {
		logger = logging.Nop()
	}
	a = &Agent{cfg: cfg, log: logger, Graphs: graphrepo.NewInMemoryGraphRepository()}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	ser, err := serialization.FromOptions(cfg.Checkpoint.Codec, cfg.Checkpoint.Compression, cfg.Checkpoint.EncryptionKey)
	if err != nil {
		return a, fmt.Errorf("checkpoint serializer: %w", err)
	}

	var pool *pgxpool.Pool
	if cfg.Retriever.Backend == "pgvector" || cfg.Checkpoint.Backend == "postgres" {
		pool, err = postgres.NewPool(ctx, cfg.Database.URL, postgres.PoolConfig{
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return a, err
		}
		a.closers = append(a.closers, pool.Close)
	}

	saver, err := a.openSaver(ctx, pool, ser)
	if err != nil {
		return a, err
	}

	var llm *openai.Client
	if cfg.Generator.Backend == "openai" || cfg.Retriever.Embedder == "openai" {
		llm, err = openai.New(openai.Config{
			APIKey:         cfg.OpenAI.APIKey,
			BaseURL:        cfg.OpenAI.BaseURL,
			Model:          cfg.OpenAI.Model,
			EmbeddingModel: cfg.OpenAI.EmbeddingModel,
			Dimensions:     cfg.Retriever.Dimensions,
			MaxTokens:      cfg.OpenAI.MaxTokens,
			Temperature:    cfg.OpenAI.Temperature,
			Timeout:        cfg.OpenAI.Timeout,
		})
		if err != nil {
			return a, err
		}
	}

	var embedder rag.Embedder = llm
	if cfg.Retriever.Embedder != "openai" {
		h, err := hash.New(cfg.Retriever.Dimensions)
		if err != nil {
			return a, err
		}
		embedder = h
	}

	if a.Store, err = a.openStore(ctx, pool, embedder); err != nil {
		return a, err
	}

	var generator rag.Generator = rag.ExtractiveGenerator{MaxChars: cfg.Generator.MaxChars}
	if cfg.Generator.Backend == "openai" {
		generator = llm
	}

	a.Graph, err = rag.Compile(
		rag.Config{Retriever: a.Store, Generator: generator, TopK: cfg.Retriever.TopK},
		flowgraph.WithCheckpointer(saver),
		flowgraph.WithLogger(logger),
	)
	if err != nil {
		return a, err
	}
	if err := a.Graphs.Save(ctx, a.Graph.Graph()); err != nil {
		return a, err
	}

	if cfg.Retriever.Corpus != "" {
		docs, err := LoadDocuments(cfg.Retriever.Corpus)
		if err != nil {
			return a, err
		}
		if err := a.Store.Index(ctx, docs); err != nil {
			return a, fmt.Errorf("index corpus: %w", err)
		}
		logger.Info("corpus indexed", slog.String("path", cfg.Retriever.Corpus), slog.Int("documents", len(docs)))
	}

	logger.Debug("agent ready",
		slog.String("retriever", cfg.Retriever.Backend),
		slog.String("embedder", cfg.Retriever.Embedder),
		slog.String("generator", cfg.Generator.Backend),
		slog.String("checkpoint", cfg.Checkpoint.Backend))
	return a, nil
}

func (a *Agent) openSaver(ctx context.Context, pool *pgxpool.Pool, ser *serialization.Serializer) (flowgraph.Saver, error) {
	switch a.cfg.Checkpoint.Backend {
	case "sqlite":
		s, err := sqlite.Open(ctx, a.cfg.Checkpoint.SQLitePath, ser)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = s.Close() })
		return s, nil
	case "postgres":
		s := postgres.NewCheckpointSaver(pool, ser)
		if err := s.CreateTables(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		s := memory.NewInMemorySaver(memory.InMemoryConfig{Serializer: ser})
		a.closers = append(a.closers, func() { _ = s.Close() })
		return s, nil
	}
}

func (a *Agent) openStore(ctx context.Context, pool *pgxpool.Pool, embedder rag.Embedder) (Store, error) {
	rc := a.cfg.Retriever
	if rc.Backend != "pgvector" {
		s, err := memstore.New(embedder, rc.Threshold)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := pgvector.New(pool, embedder, pgvector.Options{
		Table:      rc.Table,
		Dimensions: rc.Dimensions,
		Threshold:  rc.Threshold,
	})
	if err != nil {
		return nil, err
	}
	if err := s.InitializeSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Ask runs one turn on threadID, starting a new thread when it is empty.
func (a *Agent) Ask(ctx context.Context, threadID, question string, opts ...flowgraph.RunOption) (*Answer, error) {
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if threadID == "" {
		threadID = uuid.NewString()
	}
	run := []flowgraph.RunOption{
		flowgraph.WithThreadID(threadID),
		flowgraph.WithRecursionLimit(a.cfg.Graph.RecursionLimit),
	}
	if a.cfg.Graph.Timeout > 0 {
		run = append(run, flowgraph.WithTimeout(a.cfg.Graph.Timeout))
	}
	run = append(run, opts...)

	start := time.Now()
	state, err := a.Graph.Invoke(ctx, rag.Question(question), run...)
	if err != nil {
		return nil, err
	}
	as, err := rag.AgentStateFrom(state)
	if err != nil {
		return nil, err
	}

	ans := &Answer{ThreadID: threadID, Answer: as.Answer(), Messages: as.Messages, Duration: time.Since(start)}
	if i := lastRetrieval(as.Messages); i >= 0 {
		ans.Documents = rag.DocumentsFrom(as.Messages[i])
	}
	a.log.Info("question answered",
		slog.String("thread_id", threadID),
		slog.Int("documents", len(ans.Documents)),
		slog.Duration("duration", ans.Duration))
	return ans, nil
}

func lastRetrieval(msgs []message.Message) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == message.RoleTool && msgs[i].Name == rag.RetrieveNodeName {
			return i
		}
	}
	return -1
}

// Config returns the configuration the agent was built from.
func (a *Agent) Config() config.Config {
	return a.cfg
}

// Close releases backends in reverse order of creation.
func (a *Agent) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
