package model

import "context"

// Capability ports. Each port is one "send a fully rendered prompt to a
// model, get text back" boundary. They are independently swappable and
// hold no pipeline state; implementations live outside this package and
// are injected into the orchestrator at construction time.

// PlanningCapability answers the one planning call per run.
type PlanningCapability interface {
	Plan(ctx context.Context, prompt string) (string, error)
}

// ExtractionCapability answers one call per transcript segment.
type ExtractionCapability interface {
	Extract(ctx context.Context, prompt string) (string, error)
}

// FusionCapability answers fusion-round calls and the final synthesis
// call. Both go through the same underlying model in the reference
// deployment, which is why they share a port.
type FusionCapability interface {
	Fuse(ctx context.Context, prompt string) (string, error)
	Synthesize(ctx context.Context, prompt string) (string, error)
}

// Capabilities bundles the three ports for injection.
type Capabilities struct {
	Planning   PlanningCapability
	Extraction ExtractionCapability
	Fusion     FusionCapability
}

// PlanFunc adapts a plain function to PlanningCapability.
type PlanFunc func(ctx context.Context, prompt string) (string, error)

func (f PlanFunc) Plan(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ExtractFunc adapts a plain function to ExtractionCapability.
type ExtractFunc func(ctx context.Context, prompt string) (string, error)

func (f ExtractFunc) Extract(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// FusionFuncs adapts two plain functions to FusionCapability.
type FusionFuncs struct {
	FuseFn       func(ctx context.Context, prompt string) (string, error)
	SynthesizeFn func(ctx context.Context, prompt string) (string, error)
}

func (f FusionFuncs) Fuse(ctx context.Context, prompt string) (string, error) {
	return f.FuseFn(ctx, prompt)
}

func (f FusionFuncs) Synthesize(ctx context.Context, prompt string) (string, error) {
	return f.SynthesizeFn(ctx, prompt)
}
