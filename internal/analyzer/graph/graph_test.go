package graph

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatlens/server/internal/analyzer/model"
	"github.com/chatlens/server/internal/analyzer/prompts"
	"github.com/chatlens/server/internal/analyzer/repo"
)

const planReply = `{"intent":"find the launch decision","entities":{"topic":"launch"},"segment_instruction":"Extract anything about the launch date"}`

// callCounts tracks how often each capability port was exercised.
type callCounts struct {
	plan, extract, fuse, synthesize int
}

func testCapabilities(c *callCounts, overrides ...func(*model.Capabilities)) model.Capabilities {
	caps := model.Capabilities{
		Planning: model.PlanFunc(func(_ context.Context, prompt string) (string, error) {
			c.plan++
			return planReply, nil
		}),
		Extraction: model.ExtractFunc(func(_ context.Context, prompt string) (string, error) {
			c.extract++
			return fmt.Sprintf("extracted fact %d", c.extract), nil
		}),
		Fusion: model.FusionFuncs{
			FuseFn: func(_ context.Context, prompt string) (string, error) {
				c.fuse++
				return "fused context", nil
			},
			SynthesizeFn: func(_ context.Context, prompt string) (string, error) {
				c.synthesize++
				return "The launch is on the 15th.", nil
			},
		},
	}
	for _, o := range overrides {
		o(&caps)
	}
	return caps
}

func testEngine() model.EngineConfig {
	return model.EngineConfig{
		ChunkBudget:    12000,
		FusionBudget:   12000,
		PromptOverhead: 500,
		DepthCeiling:   7,
	}
}

func smallTranscript() []model.MessageRecord {
	return []model.MessageRecord{
		{ID: "m001", Sender: "Alex", Content: "Are we still good for the 15th?", Time: "2026-08-24 10:00:00"},
		{ID: "m002", Sender: "Sam", Content: "Assets land on the 12th, so yes.", Time: "2026-08-24 10:01:00"},
		{ID: "m003", Sender: "Alex", Content: "Then we launch on the 15th.", Time: "2026-08-24 10:02:00"},
	}
}

func largeTranscript(n, contentLen int) []model.MessageRecord {
	out := make([]model.MessageRecord, 0, n)
	for i := range n {
		out = append(out, model.MessageRecord{
			ID:      fmt.Sprintf("m%03d", i+1),
			Sender:  "Alex",
			Content: strings.Repeat("x", contentLen),
			Time:    "2026-08-24 10:00:00",
		})
	}
	return out
}

func buildTestRunner(t *testing.T, caps model.Capabilities, engine model.EngineConfig, taskRepo model.TaskRepository) Runner {
	t.Helper()
	runnable, err := BuildGraph(context.Background(), &GraphConfig{
		Capabilities: caps,
		Engine:       engine,
		TaskRepo:     taskRepo,
	})
	require.NoError(t, err)
	return &graphRunner{runnable: runnable}
}

func TestInvokeShortTranscriptSkipsFusion(t *testing.T) {
	counts := &callCounts{}
	tasks := repo.NewMemoryTaskRepository()
	runner := buildTestRunner(t, testCapabilities(counts), testEngine(), tasks)

	res, err := runner.Invoke(context.Background(), model.AnalysisInput{
		Transcript:     smallTranscript(),
		Query:          "What did the team decide about the launch date?",
		ConversationID: "c1",
	})
	require.NoError(t, err)

	assert.Equal(t, "The launch is on the 15th.", res.FinalAnswer)
	assert.Empty(t, res.Err)
	assert.Equal(t, 1, counts.plan)
	assert.Equal(t, 1, counts.extract, "three short messages must fit one segment")
	assert.Zero(t, counts.fuse, "context under the fusion budget must skip the reducer")
	assert.Equal(t, 1, counts.synthesize)

	stored, err := tasks.ListTasks(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, model.StageCompleted, stored[0].Status)
	assert.Equal(t, "The launch is on the 15th.", stored[0].FinalAnswer)
}

func TestInvokeLargeTranscriptRunsFusion(t *testing.T) {
	counts := &callCounts{}
	engine := model.EngineConfig{
		ChunkBudget:    2000,
		FusionBudget:   3000,
		PromptOverhead: 100,
		DepthCeiling:   7,
	}
	caps := testCapabilities(counts, func(c *model.Capabilities) {
		c.Extraction = model.ExtractFunc(func(_ context.Context, prompt string) (string, error) {
			counts.extract++
			return strings.Repeat("r", 800), nil
		})
	})
	runner := buildTestRunner(t, caps, engine, nil)

	res, err := runner.Invoke(context.Background(), model.AnalysisInput{
		Transcript: largeTranscript(30, 700),
		Query:      "What did the team decide?",
	})
	require.NoError(t, err)

	assert.Equal(t, "The launch is on the 15th.", res.FinalAnswer)
	assert.Greater(t, counts.extract, 5, "large transcript must produce many segments")
	assert.GreaterOrEqual(t, counts.fuse, 2, "oversized context must be fused in groups")
	assert.Equal(t, 1, counts.synthesize)
}

func TestInvokePlannerFailureShortCircuits(t *testing.T) {
	counts := &callCounts{}
	tasks := repo.NewMemoryTaskRepository()
	caps := testCapabilities(counts, func(c *model.Capabilities) {
		c.Planning = model.PlanFunc(func(_ context.Context, prompt string) (string, error) {
			counts.plan++
			return "", fmt.Errorf("quota exhausted")
		})
	})
	runner := buildTestRunner(t, caps, testEngine(), tasks)

	res, err := runner.Invoke(context.Background(), model.AnalysisInput{
		Transcript:     smallTranscript(),
		Query:          "What did the team decide?",
		ConversationID: "c1",
	})
	require.NoError(t, err)

	assert.Contains(t, res.FinalAnswer, "could not complete the request")
	assert.Contains(t, res.Err, "query planning failed")
	assert.Zero(t, counts.extract, "no extraction may run after a planning failure")
	assert.Zero(t, counts.fuse)
	assert.Zero(t, counts.synthesize)

	stored, err := tasks.ListTasks(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, model.StageFailed, stored[0].Status)
	assert.Contains(t, stored[0].ErrorMessage, "query planning failed")
}

func TestInvokeUnparsablePlanFails(t *testing.T) {
	counts := &callCounts{}
	caps := testCapabilities(counts, func(c *model.Capabilities) {
		c.Planning = model.PlanFunc(func(_ context.Context, prompt string) (string, error) {
			counts.plan++
			return "sorry, I cannot help with that", nil
		})
	})
	runner := buildTestRunner(t, caps, testEngine(), nil)

	res, err := runner.Invoke(context.Background(), model.AnalysisInput{
		Transcript: smallTranscript(),
		Query:      "What did the team decide?",
	})
	require.NoError(t, err)
	assert.Contains(t, res.Err, "query planning failed")
	assert.Zero(t, counts.extract)
}

func TestInvokeSegmentFailureAddsCaveat(t *testing.T) {
	counts := &callCounts{}
	engine := model.EngineConfig{
		ChunkBudget:    1000,
		FusionBudget:   12000,
		PromptOverhead: 100,
		DepthCeiling:   7,
	}
	caps := testCapabilities(counts, func(c *model.Capabilities) {
		c.Extraction = model.ExtractFunc(func(_ context.Context, prompt string) (string, error) {
			counts.extract++
			if counts.extract == 1 {
				return "", fmt.Errorf("model overloaded")
			}
			return "useful fact", nil
		})
	})
	runner := buildTestRunner(t, caps, engine, nil)

	res, err := runner.Invoke(context.Background(), model.AnalysisInput{
		Transcript: largeTranscript(10, 300),
		Query:      "What did the team decide?",
	})
	require.NoError(t, err)

	assert.Empty(t, res.Err, "one failed segment must not fail the run")
	assert.True(t, strings.HasSuffix(res.FinalAnswer, prompts.Caveat))
	assert.Greater(t, counts.extract, 1)
	assert.Equal(t, 1, counts.synthesize)
}

func TestInvokeNothingRelevantSkipsSynthesis(t *testing.T) {
	counts := &callCounts{}
	caps := testCapabilities(counts, func(c *model.Capabilities) {
		c.Extraction = model.ExtractFunc(func(_ context.Context, prompt string) (string, error) {
			counts.extract++
			return prompts.NoRelevantInformation, nil
		})
	})
	runner := buildTestRunner(t, caps, testEngine(), nil)

	res, err := runner.Invoke(context.Background(), model.AnalysisInput{
		Transcript: smallTranscript(),
		Query:      "What is the office wifi password?",
	})
	require.NoError(t, err)

	assert.Empty(t, res.Err)
	assert.Contains(t, res.FinalAnswer, "No information relevant")
	assert.Zero(t, counts.synthesize, "empty context must not trigger a synthesis call")
}

func TestInvokeEmptyQueryFails(t *testing.T) {
	counts := &callCounts{}
	runner := buildTestRunner(t, testCapabilities(counts), testEngine(), nil)

	res, err := runner.Invoke(context.Background(), model.AnalysisInput{
		Transcript: smallTranscript(),
		Query:      "   ",
	})
	require.NoError(t, err)

	assert.Contains(t, res.FinalAnswer, "could not complete the request")
	assert.Zero(t, counts.plan)
}

func TestInvokeEmptyTranscriptFails(t *testing.T) {
	counts := &callCounts{}
	runner := buildTestRunner(t, testCapabilities(counts), testEngine(), nil)

	res, err := runner.Invoke(context.Background(), model.AnalysisInput{
		Transcript: nil,
		Query:      "What did the team decide?",
	})
	require.NoError(t, err)

	assert.Contains(t, res.Err, "transcript chunking failed")
	assert.Equal(t, 1, counts.plan)
	assert.Zero(t, counts.extract)
}

func TestInvokeSynthesisFailureFails(t *testing.T) {
	counts := &callCounts{}
	caps := testCapabilities(counts, func(c *model.Capabilities) {
		c.Fusion = model.FusionFuncs{
			FuseFn: func(_ context.Context, prompt string) (string, error) {
				counts.fuse++
				return "fused", nil
			},
			SynthesizeFn: func(_ context.Context, prompt string) (string, error) {
				counts.synthesize++
				return "", fmt.Errorf("model down")
			},
		}
	})
	runner := buildTestRunner(t, caps, testEngine(), nil)

	res, err := runner.Invoke(context.Background(), model.AnalysisInput{
		Transcript: smallTranscript(),
		Query:      "What did the team decide?",
	})
	require.NoError(t, err)

	assert.Contains(t, res.Err, "answer synthesis failed")
	assert.Contains(t, res.FinalAnswer, "could not complete the request")
}

func TestBuildGraphValidation(t *testing.T) {
	_, err := BuildGraph(context.Background(), nil)
	require.Error(t, err)

	_, err = BuildGraph(context.Background(), &GraphConfig{Engine: testEngine()})
	require.Error(t, err, "missing capabilities must be rejected")

	bad := testEngine()
	bad.PromptOverhead = bad.ChunkBudget + 1
	_, err = BuildGraph(context.Background(), &GraphConfig{
		Capabilities: testCapabilities(&callCounts{}),
		Engine:       bad,
	})
	require.Error(t, err, "chunk budget smaller than prompt overhead must be rejected")
}
