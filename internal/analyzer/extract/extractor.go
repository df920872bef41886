package extract

import (
	"context"
	"errors"
	"time"

	"github.com/chatlens/server/internal/analyzer/model"
	"github.com/chatlens/server/internal/analyzer/prompts"
	"github.com/chatlens/server/internal/analyzer/rate"
	"github.com/chatlens/server/internal/analyzer/segment"
	logx "github.com/chatlens/server/pkg/logger"
)

// Extractor runs the extraction capability once per segment, strictly
// sequentially, pacing calls against the requests-per-minute budget.
// One segment's failure never aborts the run: it is recorded inline as
// a tagged result and the loop continues.
type Extractor struct {
	cap model.ExtractionCapability
	rpm int

	// Progress, when set, is told after each segment finishes
	// (successfully or not).
	Progress func(processed, total int)

	// clock override for tests
	clk func() time.Time
}

func New(cap model.ExtractionCapability, rpm int) *Extractor {
	return &Extractor{cap: cap, rpm: rpm}
}

// Run extracts query-relevant information from every non-empty segment
// in order. Sentinel "nothing relevant" replies are dropped. The only
// error returned is context cancellation; everything else degrades to
// per-segment failure tags.
func (e *Extractor) Run(ctx context.Context, segments []model.Segment, instruction string) ([]model.ExtractionResult, error) {
	results := make([]model.ExtractionResult, 0, len(segments))
	limiter := rate.NewInterval(e.rpm, e.clk)

	logx.Debug().Int("segments", len(segments)).Msg("extracting per-segment information")

	for i, seg := range segments {
		num := i + 1
		if seg.Empty() {
			logx.Debug().Int("segment", num).Msg("skipping empty segment")
			continue
		}
		text := segment.FormatSegment(seg)

		prompt, err := prompts.RenderExtraction(ctx, instruction, text)
		if err != nil {
			results = append(results, model.ExtractionResult{
				Segment: num,
				Text:    model.FailureTag(num, err),
				Failed:  true,
			})
			e.report(num, len(segments))
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			return results, err
		}
		reply, err := e.cap.Extract(ctx, prompt)
		limiter.Done()

		switch {
		case err != nil && isCancel(err):
			return results, err
		case err != nil:
			logx.Warn().Int("segment", num).Err(err).Msg("segment extraction failed, continuing")
			results = append(results, model.ExtractionResult{
				Segment: num,
				Text:    model.FailureTag(num, err),
				Failed:  true,
			})
		case prompts.IsNoRelevant(reply):
			logx.Debug().Int("segment", num).Msg("segment has no relevant information")
		default:
			results = append(results, model.ExtractionResult{Segment: num, Text: reply})
		}
		e.report(num, len(segments))
	}

	logx.Debug().Int("results", len(results)).Msg("extraction complete")
	return results, nil
}

func (e *Extractor) report(processed, total int) {
	if e.Progress != nil {
		e.Progress(processed, total)
	}
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
