package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// Text-protocol constants shared by the extraction, fusion and
// synthesis stages.
const (
	// NoRelevantInformation is the literal sentinel the extraction model
	// replies with when a segment contains nothing relevant. Matching is
	// by trimmed, case-insensitive equality; this is a deliberate (if
	// brittle) contract with the model's phrasing.
	NoRelevantInformation = "no relevant information"

	// ContextSeparator joins snippets and fused outputs into one block.
	ContextSeparator = "\n\n---\n\n"

	// Caveat is appended to the final answer when some segments or
	// fusion groups could not be processed.
	Caveat = "\n\n[Note: parts of the source transcript could not be processed, which may affect the completeness of this answer.]"
)

//go:embed template/planner_prompt.txt
var plannerPrompt string

//go:embed template/fusion_template.txt
var fusionTemplate string

//go:embed template/synthesis_prompt.txt
var synthesisPrompt string

// render pushes prepared content through the Eino prompt component
// using a messages placeholder. The placeholder keeps literal braces in
// user content from being mis-read as template variables while still
// emitting prompt callbacks.
func render(ctx context.Context, content string) (string, error) {
	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("prompt render: empty result")
	}
	return msgs[0].Content, nil
}

// RenderPlanner builds the single planning prompt from the user query
// and optional background notes.
func RenderPlanner(ctx context.Context, query, background string) (string, error) {
	var b strings.Builder
	b.WriteString(plannerPrompt)
	b.WriteString("\n\nUser question:\n")
	b.WriteString(query)
	if strings.TrimSpace(background) != "" {
		b.WriteString("\n\nBackground notes about this conversation:\n")
		b.WriteString(background)
	}
	return render(ctx, b.String())
}

// RenderExtraction builds the per-segment extraction prompt: the
// planned instruction, the segment text, and the sentinel directive.
func RenderExtraction(ctx context.Context, instruction, segmentText string) (string, error) {
	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\nChat transcript segment:\n```\n")
	b.WriteString(segmentText)
	b.WriteString("\n```\n\nExtracted relevant information (reply exactly \"")
	b.WriteString(NoRelevantInformation)
	b.WriteString("\" if this segment contains nothing relevant):")
	return render(ctx, b.String())
}

// RenderFusion substitutes the query and the combined context into the
// fusion template. The reducer measures the returned string against the
// fusion byte budget before deciding to call the model.
func RenderFusion(ctx context.Context, query, context string) (string, error) {
	content := strings.NewReplacer(
		"{user_query}", query,
		"{context}", context,
	).Replace(fusionTemplate)
	return render(ctx, content)
}

// FusionOverhead reports the rendered size of the fusion prompt with an
// empty context slot, used to size fusion groups.
func FusionOverhead(ctx context.Context, query string) (int, error) {
	s, err := RenderFusion(ctx, query, "")
	if err != nil {
		return 0, err
	}
	return len(s), nil
}

// RenderSynthesis builds the final answer prompt.
func RenderSynthesis(ctx context.Context, query, intent, combinedContext string) (string, error) {
	if strings.TrimSpace(intent) == "" {
		intent = "answer the user's question"
	}
	content := strings.NewReplacer(
		"{user_query}", query,
		"{intent}", intent,
		"{combined_context}", combinedContext,
	).Replace(synthesisPrompt)
	return render(ctx, content)
}

// IsNoRelevant reports whether a capability reply is the "nothing
// relevant" sentinel.
func IsNoRelevant(reply string) bool {
	return strings.EqualFold(strings.TrimSpace(reply), NoRelevantInformation)
}
