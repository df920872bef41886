package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/chatlens/server/internal/analyzer/capability"
	"github.com/chatlens/server/internal/analyzer/graph/observers"
	"github.com/chatlens/server/internal/analyzer/model"
	"github.com/chatlens/server/internal/analyzer/segment"
	logx "github.com/chatlens/server/pkg/logger"
)

// Runner is a thin wrapper to execute the compiled graph with the public AnalysisInput.
type Runner interface {
	Invoke(ctx context.Context, in model.AnalysisInput) (model.AnalysisResult, error)
}

// Config holds everything needed to compose the full analysis graph end-to-end.
// This is a convenience layer over GraphConfig that also constructs the
// Gemini-backed capabilities.
type Config struct {
	APIKey     string
	BaseURL    string
	Planner    model.PlannerModelConfig
	Extraction model.ExtractionModelConfig
	Synthesis  model.SynthesisModelConfig
	Engine     model.EngineConfig

	// TaskRepo is optional; a nil repo disables run tracking.
	TaskRepo model.TaskRepository
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	Capabilities model.Capabilities
	Engine       model.EngineConfig
	TaskRepo     model.TaskRepository
}

// GraphBuilder handles the construction of the analysis graph
type GraphBuilder struct {
	config    *GraphConfig
	segmenter *segment.Segmenter
	graph     *compose.Graph[model.AnalysisInput, model.AnalysisResult]
}

type graphRunner struct {
	runnable compose.Runnable[model.AnalysisInput, model.AnalysisResult]
}

func (r *graphRunner) Invoke(ctx context.Context, in model.AnalysisInput) (model.AnalysisResult, error) {
	return r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewNodeCallbacks()))
}

// BuildAnalysisGraph composes the Gemini capabilities, builds the graph,
// and returns a Runner.
func BuildAnalysisGraph(ctx context.Context, cfg Config) (Runner, error) {
	caps, err := capability.NewGeminiCapabilities(ctx, capability.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Planner:    cfg.Planner,
		Extraction: cfg.Extraction,
		Synthesis:  cfg.Synthesis,
	})
	if err != nil {
		return nil, err
	}

	runnable, err := BuildGraph(ctx, &GraphConfig{
		Capabilities: caps.Set(),
		Engine:       cfg.Engine,
		TaskRepo:     cfg.TaskRepo,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Analysis graph built successfully")
	return &graphRunner{runnable: runnable}, nil
}

// BuildGraph constructs and returns the compiled analysis graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.AnalysisInput, model.AnalysisResult], error) {
	// Basic config validation
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Capabilities.Planning == nil || config.Capabilities.Extraction == nil || config.Capabilities.Fusion == nil {
		return nil, fmt.Errorf("capabilities are not properly initialized")
	}
	if err := config.Engine.Validate(); err != nil {
		return nil, err
	}

	segmenter, err := segment.New(config.Engine)
	if err != nil {
		return nil, err
	}

	builder := &GraphBuilder{
		config:    config,
		segmenter: segmenter,
		graph:     compose.NewGraph[model.AnalysisInput, model.AnalysisResult](),
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() {
	t := tracker{repo: b.config.TaskRepo}

	b.graph.AddLambdaNode(NodeInputConverter, newInputConverterNode(t))
	b.graph.AddLambdaNode(NodePlanner, newPlannerNode(b.config.Capabilities, b.config.Engine, t))
	b.graph.AddLambdaNode(NodeChunker, newChunkerNode(b.segmenter, t))
	b.graph.AddLambdaNode(NodeExtractor, newExtractorNode(b.config.Capabilities, b.config.Engine, t))
	b.graph.AddLambdaNode(NodeReducer, newReducerNode(b.config.Capabilities, b.config.Engine, t))
	b.graph.AddLambdaNode(NodeSynthesizer, newSynthesizerNode(b.config.Capabilities, t))
	b.graph.AddLambdaNode(NodeErrorHandler, newErrorHandlerNode())
	b.graph.AddLambdaNode(NodeFinalizer, newFinalizerNode(t))
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, NodeInputConverter},
		{NodeInputConverter, NodePlanner},
		{NodeReducer, NodeSynthesizer},
		{NodeErrorHandler, NodeFinalizer},
		{NodeFinalizer, compose.END},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	plannerBranch := compose.NewGraphBranch(
		newStageCondition(NodeChunker),
		map[string]bool{
			NodeChunker:      true,
			NodeErrorHandler: true,
		},
	)
	if err := b.graph.AddBranch(NodePlanner, plannerBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding planner branch")
		return fmt.Errorf("error adding planner branch: %w", err)
	}

	chunkerBranch := compose.NewGraphBranch(
		newStageCondition(NodeExtractor),
		map[string]bool{
			NodeExtractor:    true,
			NodeErrorHandler: true,
		},
	)
	if err := b.graph.AddBranch(NodeChunker, chunkerBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding chunker branch")
		return fmt.Errorf("error adding chunker branch: %w", err)
	}

	extractorBranch := compose.NewGraphBranch(
		newExtractorCondition(b.config.Engine.FusionBudget),
		map[string]bool{
			NodeReducer:      true,
			NodeSynthesizer:  true,
			NodeErrorHandler: true,
		},
	)
	if err := b.graph.AddBranch(NodeExtractor, extractorBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding extractor branch")
		return fmt.Errorf("error adding extractor branch: %w", err)
	}

	synthesizerBranch := compose.NewGraphBranch(
		newStageCondition(NodeFinalizer),
		map[string]bool{
			NodeFinalizer:    true,
			NodeErrorHandler: true,
		},
	)
	if err := b.graph.AddBranch(NodeSynthesizer, synthesizerBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding synthesizer branch")
		return fmt.Errorf("error adding synthesizer branch: %w", err)
	}

	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.AnalysisInput, model.AnalysisResult], error) {
	// Limit total run steps to avoid infinite loops in branching
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(20))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
