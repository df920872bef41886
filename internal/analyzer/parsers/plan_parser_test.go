package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlanPlainJSON(t *testing.T) {
	plan, err := ParsePlan(`{"intent":"find decision","entities":{"topic":"launch"},"segment_instruction":"Extract launch decisions"}`)
	require.NoError(t, err)

	assert.Equal(t, "find decision", plan.Intent)
	assert.Equal(t, "launch", plan.Entities["topic"])
	assert.Equal(t, "Extract launch decisions", plan.SegmentInstruction)
}

func TestParsePlanCodeFenced(t *testing.T) {
	reply := "Here is the plan:\n```json\n{\"intent\":\"summarize\",\"entities\":{},\"segment_instruction\":\"Summarize each segment\"}\n```\nDone."
	plan, err := ParsePlan(reply)
	require.NoError(t, err)

	assert.Equal(t, "summarize", plan.Intent)
	assert.Equal(t, "Summarize each segment", plan.SegmentInstruction)
}

func TestParsePlanCoercesEntityValues(t *testing.T) {
	plan, err := ParsePlan(`{"intent":"budget","entities":{"amount":40000,"person":"Dana","missing":null},"segment_instruction":"Find budget talk"}`)
	require.NoError(t, err)

	assert.Equal(t, "40000", plan.Entities["amount"])
	assert.Equal(t, "Dana", plan.Entities["person"])
	assert.NotContains(t, plan.Entities, "missing")
}

func TestParsePlanMissingInstruction(t *testing.T) {
	_, err := ParsePlan(`{"intent":"x","entities":{}}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "segment_instruction")

	_, err = ParsePlan(`{"intent":"x","entities":{},"segment_instruction":"   "}`)
	require.Error(t, err)
}

func TestParsePlanNotJSON(t *testing.T) {
	_, err := ParsePlan("I cannot produce a plan for this question.")
	require.Error(t, err)

	_, err = ParsePlan("{broken json")
	require.Error(t, err)
}

func TestParsePlanOversizedReply(t *testing.T) {
	// A giant garbage reply must error out, not hang or panic.
	_, err := ParsePlan(strings.Repeat("a", 100*1024))
	require.Error(t, err)
}
