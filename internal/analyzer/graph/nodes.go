package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"

	"github.com/chatlens/server/internal/analyzer/extract"
	"github.com/chatlens/server/internal/analyzer/fuse"
	"github.com/chatlens/server/internal/analyzer/model"
	"github.com/chatlens/server/internal/analyzer/parsers"
	"github.com/chatlens/server/internal/analyzer/prompts"
	"github.com/chatlens/server/internal/analyzer/segment"
	logx "github.com/chatlens/server/pkg/logger"
)

// Node name constants for the analysis graph
const (
	NodeInputConverter = "input_converter"
	NodePlanner        = "planner"
	NodeChunker        = "chunker"
	NodeExtractor      = "extractor"
	NodeReducer        = "reducer"
	NodeSynthesizer    = "synthesizer"
	NodeErrorHandler   = "error_handler"
	NodeFinalizer      = "finalizer"
)

// newInputConverterNode creates the fresh run state and registers the
// run in the task store.
func newInputConverterNode(t tracker) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.AnalysisInput) (*model.RunState, error) {
		st := &model.RunState{Input: in, Stage: model.StagePending}
		t.create(ctx, st)

		if strings.TrimSpace(in.Query) == "" {
			st.Fail(model.StagePlanning, fmt.Errorf("%w: query must not be empty", model.ErrPlanning))
		}
		return st, nil
	})
}

// newPlannerNode runs the single planning call and parses its reply
// into the structured plan that steers extraction.
func newPlannerNode(caps model.Capabilities, cfg model.EngineConfig, t tracker) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, st *model.RunState) (*model.RunState, error) {
		if st.Err != nil {
			return st, nil
		}
		t.status(ctx, st, model.StagePlanning)

		background := st.Input.Background
		if eff := cfg.EffectiveChunkBudget(); len(background) > eff {
			logx.Warn().Int("bytes", len(background)).Int("budget", eff).
				Msg("background notes exceed the chunk budget, truncating")
			background = segment.Truncate(background, eff)
		}

		prompt, err := prompts.RenderPlanner(ctx, st.Input.Query, background)
		if err != nil {
			st.Fail(model.StagePlanning, fmt.Errorf("%w: %v", model.ErrPlanning, err))
			return st, nil
		}

		reply, err := caps.Planning.Plan(ctx, prompt)
		if err != nil {
			if isCancel(err) {
				return nil, err
			}
			st.Fail(model.StagePlanning, fmt.Errorf("%w: %v", model.ErrPlanning, err))
			return st, nil
		}

		plan, err := parsers.ParsePlan(reply)
		if err != nil {
			st.Fail(model.StagePlanning, fmt.Errorf("%w: %v", model.ErrPlanning, err))
			return st, nil
		}

		st.Plan = plan
		logx.Debug().Str("intent", plan.Intent).Int("entities", len(plan.Entities)).
			Msg("query plan ready")
		return st, nil
	})
}

// newChunkerNode splits the transcript into byte-budgeted segments.
func newChunkerNode(seg *segment.Segmenter, t tracker) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, st *model.RunState) (*model.RunState, error) {
		if st.Err != nil {
			return st, nil
		}
		t.status(ctx, st, model.StageChunking)

		segments, dropped, err := seg.Split(st.Input.Transcript)
		if err != nil {
			st.Fail(model.StageChunking, err)
			return st, nil
		}
		st.Segments = segments
		st.DroppedMsg = dropped
		t.progress(ctx, st, -1, len(segments))
		return st, nil
	})
}

// newExtractorNode runs rate-limited per-segment extraction and joins
// the surviving snippets into the combined context.
func newExtractorNode(caps model.Capabilities, cfg model.EngineConfig, t tracker) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, st *model.RunState) (*model.RunState, error) {
		if st.Err != nil {
			return st, nil
		}
		t.status(ctx, st, model.StageExtracting)

		ex := extract.New(caps.Extraction, cfg.RPMLimit)
		ex.Progress = func(processed, total int) {
			t.progress(ctx, st, processed, total)
		}

		results, err := ex.Run(ctx, st.Segments, st.Plan.SegmentInstruction)
		if err != nil {
			return nil, err
		}
		st.Extraction = results
		for _, r := range results {
			if r.Failed {
				st.FailureCount++
			}
		}
		st.CombinedContext = strings.Join(st.ValidSnippets(), prompts.ContextSeparator)
		return st, nil
	})
}

// newReducerNode fuses the extraction snippets down to the fusion
// budget. A failing terminating call degrades to the raw concatenation
// instead of failing the run.
func newReducerNode(caps model.Capabilities, cfg model.EngineConfig, t tracker) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, st *model.RunState) (*model.RunState, error) {
		if st.Err != nil {
			return st, nil
		}
		t.status(ctx, st, model.StageReducing)

		res, err := fuse.New(caps.Fusion, cfg).Run(ctx, st.Input.Query, st.ValidSnippets())
		if err != nil {
			if isCancel(err) {
				return nil, err
			}
			logx.Warn().Err(err).Msg("fusion failed, falling back to unfused context")
			st.FailureCount++
			return st, nil
		}

		st.CombinedContext = res.Context
		st.FusionLevels = res.Levels
		st.DepthCapped = res.DepthCapped
		st.FailureCount += res.GroupFailures
		return st, nil
	})
}

// newSynthesizerNode produces the final answer from the combined
// context. An empty context short-circuits to a canned answer without
// a model call.
func newSynthesizerNode(caps model.Capabilities, t tracker) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, st *model.RunState) (*model.RunState, error) {
		if st.Err != nil {
			return st, nil
		}
		t.status(ctx, st, model.StageSynthesizing)

		if strings.TrimSpace(st.CombinedContext) == "" {
			logx.Debug().Msg("no relevant context extracted, skipping synthesis call")
			st.FinalAnswer = fmt.Sprintf("No information relevant to the question %q was found in the provided transcript.", st.Input.Query)
			if st.FailureCount > 0 {
				st.FinalAnswer += prompts.Caveat
			}
			return st, nil
		}

		intent := ""
		if st.Plan != nil {
			intent = st.Plan.Intent
		}
		prompt, err := prompts.RenderSynthesis(ctx, st.Input.Query, intent, st.CombinedContext)
		if err != nil {
			st.Fail(model.StageSynthesizing, fmt.Errorf("%w: %v", model.ErrSynthesis, err))
			return st, nil
		}

		answer, err := caps.Fusion.Synthesize(ctx, prompt)
		if err != nil {
			if isCancel(err) {
				return nil, err
			}
			st.Fail(model.StageSynthesizing, fmt.Errorf("%w: %v", model.ErrSynthesis, err))
			return st, nil
		}

		if st.FailureCount > 0 {
			answer += prompts.Caveat
		}
		st.FinalAnswer = answer
		return st, nil
	})
}

// newErrorHandlerNode converts a fatal pipeline error into a
// user-facing answer instead of a bare failure.
func newErrorHandlerNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, st *model.RunState) (*model.RunState, error) {
		err := st.Err
		if err == nil {
			err = fmt.Errorf("unknown error")
		}
		logx.Error().Err(err).Str("stage", string(st.Stage)).Msg("analysis run failed")
		st.FinalAnswer = fmt.Sprintf("could not complete the request: %v", err)
		st.Stage = model.StageFailed
		return st, nil
	})
}

// newFinalizerNode folds the run state into the public result and
// records completion in the task store.
func newFinalizerNode(t tracker) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, st *model.RunState) (model.AnalysisResult, error) {
		res := model.AnalysisResult{FinalAnswer: st.FinalAnswer}
		if st.Err != nil {
			res.Err = st.Err.Error()
		}
		if res.FinalAnswer == "" {
			res.FinalAnswer = "The analysis finished without producing an answer."
		}
		if st.Err == nil {
			st.Stage = model.StageCompleted
		}
		t.finish(ctx, st, res)

		logx.Info().Str("stage", string(st.Stage)).Int("segments", len(st.Segments)).
			Int("fusion_levels", st.FusionLevels).Int("failures", st.FailureCount).
			Bool("depth_capped", st.DepthCapped).Msg("analysis run finished")
		return res, nil
	})
}

// newStageCondition routes to the error handler when a fatal error is
// set, otherwise to the given next node.
func newStageCondition(next string) func(ctx context.Context, st *model.RunState) (string, error) {
	return func(_ context.Context, st *model.RunState) (string, error) {
		if st.Err != nil {
			return NodeErrorHandler, nil
		}
		return next, nil
	}
}

// newExtractorCondition decides whether the combined context needs a
// fusion pass before synthesis.
func newExtractorCondition(fusionBudget int) func(ctx context.Context, st *model.RunState) (string, error) {
	return func(_ context.Context, st *model.RunState) (string, error) {
		if st.Err != nil {
			return NodeErrorHandler, nil
		}
		if len(st.CombinedContext) > fusionBudget {
			logx.Debug().Int("bytes", len(st.CombinedContext)).Int("budget", fusionBudget).
				Msg("combined context exceeds fusion budget, routing through reducer")
			return NodeReducer, nil
		}
		return NodeSynthesizer, nil
	}
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
