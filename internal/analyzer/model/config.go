package model

import "fmt"

// ================ Config ================

// EngineConfig carries the byte budgets and pacing knobs of the
// analysis pipeline. Budgets are measured in encoded UTF-8 bytes.
type EngineConfig struct {
	ChunkBudget    int    `envconfig:"ANALYZER_CHUNK_BUDGET" default:"12000"`
	FusionBudget   int    `envconfig:"ANALYZER_FUSION_BUDGET" default:"12000"`
	PromptOverhead int    `envconfig:"ANALYZER_PROMPT_OVERHEAD" default:"500"`
	DepthCeiling   int    `envconfig:"ANALYZER_DEPTH_CEILING" default:"7"`
	RPMLimit       int    `envconfig:"ANALYZER_RPM_LIMIT" default:"10"`
	Encoding       string `envconfig:"ANALYZER_ENCODING" default:"utf-8"`
}

// EffectiveChunkBudget is the per-segment byte allowance after the
// estimated prompt overhead is subtracted.
func (c EngineConfig) EffectiveChunkBudget() int {
	return c.ChunkBudget - c.PromptOverhead
}

// Validate fails fast on configurations that would make the pipeline
// misbehave long after startup.
func (c EngineConfig) Validate() error {
	if c.EffectiveChunkBudget() <= 0 {
		return fmt.Errorf("chunk budget %d too small for prompt overhead %d", c.ChunkBudget, c.PromptOverhead)
	}
	if c.FusionBudget <= 0 {
		return fmt.Errorf("fusion budget must be positive, got %d", c.FusionBudget)
	}
	if c.DepthCeiling < 0 {
		return fmt.Errorf("depth ceiling must be non-negative, got %d", c.DepthCeiling)
	}
	if c.Encoding != "" && c.Encoding != "utf-8" {
		return fmt.Errorf("unsupported encoding %q, only utf-8 is supported", c.Encoding)
	}
	return nil
}

// PlannerModelConfig configures the query-planning model. A stronger
// model pays off here since its single output steers every later call.
type PlannerModelConfig struct {
	Model       string  `envconfig:"PLANNER_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"PLANNER_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"PLANNER_TEMPERATURE" default:"0.1"`
}

// ExtractionModelConfig configures the per-segment extraction model.
// This is the dominant token consumer, so a cheap model is preferred.
type ExtractionModelConfig struct {
	Model       string  `envconfig:"EXTRACTION_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"EXTRACTION_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"EXTRACTION_TEMPERATURE" default:"0.2"`
}

// SynthesisModelConfig configures the model used for fusion rounds and
// the final answer.
type SynthesisModelConfig struct {
	Model       string  `envconfig:"SYNTHESIS_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"SYNTHESIS_MAX_TOKENS" default:"4000"`
	Temperature float32 `envconfig:"SYNTHESIS_TEMPERATURE" default:"0.4"`
}

// TaskConfig configures the analysis task store.
type TaskConfig struct {
	TTL string `envconfig:"ANALYZER_TASK_TTL" default:"168h"`
}
