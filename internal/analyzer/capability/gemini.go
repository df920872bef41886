package capability

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/chatlens/server/internal/analyzer/model"
	logx "github.com/chatlens/server/pkg/logger"
)

// Config holds what is needed to create the three Gemini-backed
// capability ports.
type Config struct {
	APIKey  string
	BaseURL string

	Planner    model.PlannerModelConfig
	Extraction model.ExtractionModelConfig
	Synthesis  model.SynthesisModelConfig
}

// GeminiCapabilities implements all three capability ports on top of
// one genai client with a dedicated chat model per role.
type GeminiCapabilities struct {
	planner    einomodel.BaseChatModel
	extraction einomodel.BaseChatModel
	synthesis  einomodel.BaseChatModel

	plannerName    string
	extractionName string
	synthesisName  string
}

// NewGeminiCapabilities creates the genai client and the per-role chat
// models with the given configuration.
func NewGeminiCapabilities(ctx context.Context, cfg Config) (*GeminiCapabilities, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	planner, err := newChatModel(ctx, client, cfg.Planner.Model, cfg.Planner.Temperature, cfg.Planner.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("error creating planner model: %w", err)
	}
	extraction, err := newChatModel(ctx, client, cfg.Extraction.Model, cfg.Extraction.Temperature, cfg.Extraction.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("error creating extraction model: %w", err)
	}
	synthesis, err := newChatModel(ctx, client, cfg.Synthesis.Model, cfg.Synthesis.Temperature, cfg.Synthesis.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("error creating synthesis model: %w", err)
	}

	return &GeminiCapabilities{
		planner:        planner,
		extraction:     extraction,
		synthesis:      synthesis,
		plannerName:    cfg.Planner.Model,
		extractionName: cfg.Extraction.Model,
		synthesisName:  cfg.Synthesis.Model,
	}, nil
}

func newChatModel(ctx context.Context, client *genai.Client, name string, temperature float32, maxTokens int) (*gemini.ChatModel, error) {
	return gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       name,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
}

// Set bundles the ports for injection into the orchestrator.
func (g *GeminiCapabilities) Set() model.Capabilities {
	return model.Capabilities{
		Planning:   g,
		Extraction: g,
		Fusion:     g,
	}
}

func (g *GeminiCapabilities) Plan(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, g.planner, g.plannerName, "plan", prompt)
}

func (g *GeminiCapabilities) Extract(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, g.extraction, g.extractionName, "extract", prompt)
}

func (g *GeminiCapabilities) Fuse(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, g.synthesis, g.synthesisName, "fuse", prompt)
}

func (g *GeminiCapabilities) Synthesize(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, g.synthesis, g.synthesisName, "synthesize", prompt)
}

func (g *GeminiCapabilities) generate(ctx context.Context, cm einomodel.BaseChatModel, modelName, op, prompt string) (string, error) {
	out, err := cm.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		logx.Error().Str("op", op).Str("model", modelName).Err(err).Msg("model call failed")
		return "", err
	}
	if out == nil {
		return "", fmt.Errorf("%s: model returned no message", op)
	}

	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		usage := out.ResponseMeta.Usage
		inC, outC, totalC := model.ComputeCost(usage, model.ResolvePricing(modelName))
		logx.Debug().
			Str("op", op).
			Str("model", modelName).
			Int("prompt_tokens", usage.PromptTokens).
			Int("completion_tokens", usage.CompletionTokens).
			Int("total_tokens", usage.TotalTokens).
			Float64("input_cost_usd", inC).
			Float64("output_cost_usd", outC).
			Float64("total_cost_usd", totalC).
			Msg("LLM usage")
	}

	return out.Content, nil
}

var (
	_ model.PlanningCapability   = (*GeminiCapabilities)(nil)
	_ model.ExtractionCapability = (*GeminiCapabilities)(nil)
	_ model.FusionCapability     = (*GeminiCapabilities)(nil)
)
