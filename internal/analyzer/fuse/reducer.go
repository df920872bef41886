package fuse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chatlens/server/internal/analyzer/model"
	"github.com/chatlens/server/internal/analyzer/prompts"
	"github.com/chatlens/server/internal/analyzer/rate"
	"github.com/chatlens/server/internal/analyzer/segment"
	logx "github.com/chatlens/server/pkg/logger"
)

// safetyMargin is extra headroom subtracted from the per-group budget
// to cover separators and model-side prompt framing.
const safetyMargin = 150

// Result is the outcome of one reduction: the fused context plus how it
// was obtained.
type Result struct {
	Context       string
	Levels        int  // fusion rounds applied before the terminating call
	DepthCapped   bool // true when the ceiling forced truncated concatenation
	GroupFailures int  // failed group-level fusion calls, carried inline
}

// Reducer condenses extraction snippets until the rendered fusion
// prompt fits the byte budget. It runs as an explicit worklist loop
// carrying (level, items) instead of structural recursion, so a raised
// ceiling can never grow the call stack.
type Reducer struct {
	cap     model.FusionCapability
	budget  int
	ceiling int
	rpm     int

	// clock override for tests
	clk func() time.Time
}

func New(cap model.FusionCapability, cfg model.EngineConfig) *Reducer {
	return &Reducer{
		cap:     cap,
		budget:  cfg.FusionBudget,
		ceiling: cfg.DepthCeiling,
		rpm:     cfg.RPMLimit,
	}
}

// Run fuses items down to a single context string. Per-group failures
// are tagged inline and carried into the next round; only context
// cancellation and a failing terminating call surface as errors, and
// the caller is expected to fall back to raw concatenation for the
// latter.
func (r *Reducer) Run(ctx context.Context, query string, items []string) (Result, error) {
	res := Result{}
	limiter := rate.NewInterval(r.rpm, r.clk)

	for level := 0; ; level++ {
		combined := strings.Join(items, prompts.ContextSeparator)

		if level > r.ceiling {
			// Explicit, logged degradation path: give up on fusing and
			// truncate the concatenation to the budget.
			res.DepthCapped = true
			res.Levels = level
			if len(combined) > r.budget {
				logx.Warn().Int("level", level).Int("bytes", len(combined)).Int("budget", r.budget).
					Msg("fusion depth ceiling reached, truncating combined context")
				combined = segment.Truncate(combined, r.budget)
			} else {
				logx.Warn().Int("level", level).Msg("fusion depth ceiling reached, returning combined context")
			}
			res.Context = combined
			return res, nil
		}

		rendered, err := prompts.RenderFusion(ctx, query, combined)
		if err != nil {
			return res, err
		}
		logx.Debug().Int("level", level).Int("items", len(items)).
			Int("prompt_bytes", len(rendered)).Int("budget", r.budget).Msg("fusion round")

		if len(rendered) <= r.budget {
			// Terminating case: one fusion call over everything.
			if err := limiter.Wait(ctx); err != nil {
				return res, err
			}
			fused, err := r.cap.Fuse(ctx, rendered)
			limiter.Done()
			if err != nil {
				return res, fmt.Errorf("terminal fusion call: %w", err)
			}
			res.Context = fused
			res.Levels = level
			return res, nil
		}

		groups := r.group(items, ctxOverhead(ctx, query, r.budget))
		if len(groups) == 0 {
			// Nothing groupable (pathological sizes); degrade like the
			// ceiling path rather than looping forever.
			res.DepthCapped = true
			res.Levels = level
			res.Context = segment.Truncate(combined, r.budget)
			return res, nil
		}

		fused := make([]string, 0, len(groups))
		for gi, group := range groups {
			if err := limiter.Wait(ctx); err != nil {
				return res, err
			}
			prompt, err := prompts.RenderFusion(ctx, query, group)
			if err != nil {
				res.GroupFailures++
				fused = append(fused, fmt.Sprintf("fusion group %d failed: %v", gi+1, err))
				continue
			}
			out, err := r.cap.Fuse(ctx, prompt)
			limiter.Done()
			switch {
			case err != nil && isCancel(err):
				return res, err
			case err != nil:
				// Keep the failure visible to the next round instead of
				// silently dropping the whole group.
				logx.Warn().Int("level", level).Int("group", gi+1).Err(err).
					Msg("group fusion failed, carrying failure tag forward")
				res.GroupFailures++
				fused = append(fused, fmt.Sprintf("fusion group %d failed: %v", gi+1, err))
			default:
				fused = append(fused, out)
			}
		}
		items = fused
	}
}

// ctxOverhead computes the per-group content budget: the fusion budget
// minus the rendered template overhead and a safety margin.
func ctxOverhead(ctx context.Context, query string, budget int) int {
	overhead, err := prompts.FusionOverhead(ctx, query)
	if err != nil {
		overhead = 200
	}
	effective := budget - overhead - safetyMargin
	if effective <= 0 {
		logx.Warn().Int("effective", effective).Int("budget", budget).
			Msg("computed group budget too small, falling back to half the fusion budget")
		effective = budget / 2
	}
	return effective
}

// group greedily packs items into byte-bounded bundles. A single item
// larger than the group budget is truncated in place before packing.
func (r *Reducer) group(items []string, groupBudget int) []string {
	sepLen := len(prompts.ContextSeparator)

	var groups []string
	var current []string
	currentBytes := 0

	flush := func() {
		if len(current) > 0 {
			groups = append(groups, strings.Join(current, prompts.ContextSeparator))
			logx.Debug().Int("group", len(groups)).Int("items", len(current)).
				Int("bytes", currentBytes).Msg("fusion group closed")
			current = nil
			currentBytes = 0
		}
	}

	for _, item := range items {
		if len(item) > groupBudget {
			logx.Warn().Int("bytes", len(item)).Int("group_budget", groupBudget).
				Msg("single fused item exceeds group budget, truncating in place")
			item = segment.Truncate(item, groupBudget)
			if len(item) > groupBudget {
				continue
			}
		}

		added := currentBytes + len(item)
		if len(current) > 0 {
			added += sepLen
		}
		if added > groupBudget && len(current) > 0 {
			flush()
			added = len(item)
		}
		current = append(current, item)
		currentBytes = added
	}
	flush()

	return groups
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
