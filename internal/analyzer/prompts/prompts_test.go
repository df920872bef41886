package prompts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNoRelevant(t *testing.T) {
	assert.True(t, IsNoRelevant("no relevant information"))
	assert.True(t, IsNoRelevant("  No Relevant Information \n"))
	assert.False(t, IsNoRelevant("no relevant information found here"))
	assert.False(t, IsNoRelevant(""))
}

func TestRenderFusionSubstitutes(t *testing.T) {
	out, err := RenderFusion(context.Background(), "where is the meeting?", "snippet-a\n\n---\n\nsnippet-b")
	require.NoError(t, err)

	assert.Contains(t, out, "where is the meeting?")
	assert.Contains(t, out, "snippet-a")
	assert.NotContains(t, out, "{user_query}")
	assert.NotContains(t, out, "{context}")
}

func TestRenderFusionKeepsLiteralBraces(t *testing.T) {
	payload := `the config was {"retries": 3, "timeout": "5s"}`
	out, err := RenderFusion(context.Background(), "what config?", payload)
	require.NoError(t, err)
	assert.Contains(t, out, payload)
}

func TestFusionOverheadMatchesRenderedSize(t *testing.T) {
	ctx := context.Background()
	overhead, err := FusionOverhead(ctx, "what config?")
	require.NoError(t, err)
	require.Positive(t, overhead)

	body := "0123456789"
	out, err := RenderFusion(ctx, "what config?", body)
	require.NoError(t, err)
	assert.Equal(t, overhead+len(body), len(out))
}

func TestRenderExtractionIncludesDirective(t *testing.T) {
	out, err := RenderExtraction(context.Background(), "Find launch dates", "10:00 - Alex: launch on the 15th")
	require.NoError(t, err)

	assert.Contains(t, out, "Find launch dates")
	assert.Contains(t, out, "launch on the 15th")
	assert.Contains(t, out, NoRelevantInformation)
}

func TestRenderPlannerIncludesBackground(t *testing.T) {
	ctx := context.Background()

	out, err := RenderPlanner(ctx, "who owns on-call?", "Weekly team sync.")
	require.NoError(t, err)
	assert.Contains(t, out, "who owns on-call?")
	assert.Contains(t, out, "Weekly team sync.")

	out, err = RenderPlanner(ctx, "who owns on-call?", "   ")
	require.NoError(t, err)
	assert.NotContains(t, out, "Background notes")
}

func TestRenderSynthesisDefaultsIntent(t *testing.T) {
	out, err := RenderSynthesis(context.Background(), "who owns on-call?", "", "Dana took the on-call shift.")
	require.NoError(t, err)

	assert.Contains(t, out, "answer the user's question")
	assert.Contains(t, out, "Dana took the on-call shift.")
	assert.NotContains(t, out, "{combined_context}")
}
