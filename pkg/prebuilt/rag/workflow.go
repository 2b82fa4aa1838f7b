package rag

import (
	"context"
	"fmt"

	"github.com/flowgraph/ragagent/pkg/flowgraph"
	"github.com/flowgraph/ragagent/pkg/prebuilt"
	"github.com/flowgraph/ragagent/pkg/validation"
)

// PrebuiltName is the registry name of the workflow.
const PrebuiltName = "retrieve_generate"

// DefaultTopK is the number of documents retrieved per question.
const DefaultTopK = 4

// Config wires the workflow to its backends.
type Config struct {
	Retriever Retriever `validate:"required"`
	Generator Generator `validate:"required"`
	TopK      int       `validate:"gte=0,lte=100"`
	Retries   int       `validate:"gte=0,lte=10"` // per node
}

// ValidateConfig checks cfg and fills defaults.
func ValidateConfig(cfg *Config) error {
	if cfg.Retriever == nil {
		return ErrNilRetriever
	}
	if cfg.Generator == nil {
		return ErrNilGenerator
	}
	if err := validation.ValidateStruct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.TopK == 0 {
		cfg.TopK = DefaultTopK
	}
	return nil
}

// NewWorkflow declares START -> retrieve -> generate -> END over the
// agent state.
func NewWorkflow(cfg Config) (*flowgraph.StateGraph, error) {
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	sg := flowgraph.NewStateGraph(Schema()).
		AddNode(RetrieveNodeName, RetrieveNode(cfg.Retriever, cfg.TopK),
			flowgraph.WithRetries(cfg.Retries),
			flowgraph.WithNodeType(flowgraph.NodeTypeTool),
			flowgraph.WithDescription("look up documents for the latest question")).
		AddNode(GenerateNodeName, GenerateNode(cfg.Generator),
			flowgraph.WithRetries(cfg.Retries),
			flowgraph.WithNodeType(flowgraph.NodeTypeAgent),
			flowgraph.WithDescription("answer from the retrieved documents")).
		AddEdge(flowgraph.START, RetrieveNodeName).
		AddEdge(RetrieveNodeName, GenerateNodeName).
		AddEdge(GenerateNodeName, flowgraph.END)
	return sg, sg.Err()
}

// Compile builds and compiles the workflow.
func Compile(cfg Config, opts ...flowgraph.CompileOption) (*flowgraph.CompiledGraph, error) {
	sg, err := NewWorkflow(cfg)
	if err != nil {
		return nil, err
	}
	opts = append([]flowgraph.CompileOption{flowgraph.WithGraphID(PrebuiltName), flowgraph.WithName(PrebuiltName)}, opts...)
	return sg.Compile(opts...)
}

func init() {
	prebuilt.DefaultRegistry.MustRegister(prebuilt.NewBuildFunc(PrebuiltName, func(_ context.Context, cfg any) (*flowgraph.StateGraph, error) {
		switch c := cfg.(type) {
		case Config:
			return NewWorkflow(c)
		case *Config:
			return NewWorkflow(*c)
		default:
			return nil, fmt.Errorf("%w: %s expects rag.Config, got %T", prebuilt.ErrInvalidConfig, PrebuiltName, cfg)
		}
	}))
}
