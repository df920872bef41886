package segment

import (
	"fmt"
	"unicode/utf8"

	"github.com/chatlens/server/internal/analyzer/model"
	logx "github.com/chatlens/server/pkg/logger"
)

const lineSeparatorBytes = 1 // "\n"

// Segmenter partitions an ordered transcript into segments whose
// formatted byte size stays within the chunk budget minus the estimated
// prompt overhead. Splitting is a single linear pass and performs no
// model calls.
type Segmenter struct {
	effectiveBudget int
}

// New validates the budget configuration up front so misconfiguration
// fails before any message is processed.
func New(cfg model.EngineConfig) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Segmenter{effectiveBudget: cfg.EffectiveChunkBudget()}, nil
}

// Split partitions messages into ordered segments. Message order is
// preserved within and across segments. A message whose formatted line
// alone exceeds the budget gets one truncation attempt; if it still
// does not fit it is dropped with a warning and counted in dropped.
func (s *Segmenter) Split(messages []model.MessageRecord) (segments []model.Segment, dropped int, err error) {
	if len(messages) == 0 {
		return nil, 0, fmt.Errorf("%w: transcript is empty", model.ErrChunking)
	}

	logx.Debug().Int("effective_budget", s.effectiveBudget).Int("messages", len(messages)).
		Msg("splitting transcript by byte budget")

	var current []model.MessageRecord
	currentBytes := 0

	flush := func() {
		if len(current) > 0 {
			segments = append(segments, model.Segment{Messages: current})
			logx.Debug().Int("segment", len(segments)).Int("messages", len(current)).
				Int("bytes", currentBytes).Msg("segment closed")
			current = nil
			currentBytes = 0
		}
	}

	for i, msg := range messages {
		line := FormatMessage(msg)
		size := len(line) + lineSeparatorBytes

		if size > s.effectiveBudget {
			fitted, ok := s.fitOversized(msg, line)
			if !ok {
				dropped++
				logx.Warn().Int("index", i).Str("message_id", msg.ID).Int("bytes", size).
					Int("effective_budget", s.effectiveBudget).
					Msg("dropping message that exceeds the segment budget even after truncation")
				continue
			}
			msg = fitted
			line = FormatMessage(msg)
			size = len(line) + lineSeparatorBytes
		}

		if currentBytes+size > s.effectiveBudget && len(current) > 0 {
			flush()
		}
		current = append(current, msg)
		currentBytes += size
	}
	flush()

	if len(segments) == 0 {
		return nil, dropped, fmt.Errorf("%w: no usable segments, all %d messages exceed the budget", model.ErrChunking, len(messages))
	}

	logx.Debug().Int("messages", len(messages)).Int("segments", len(segments)).
		Int("dropped", dropped).Msg("transcript split complete")
	return segments, dropped, nil
}

// fitOversized attempts a single content truncation so the formatted
// line fits the budget. The message identity (id, sender, metadata) is
// preserved; only the display content is cut.
func (s *Segmenter) fitOversized(msg model.MessageRecord, line string) (model.MessageRecord, bool) {
	content := displayContent(msg.Content)
	overhead := len(line) - len(content)
	allowed := s.effectiveBudget - lineSeparatorBytes - overhead - len(TruncationMarker)
	if allowed <= 0 {
		return msg, false
	}

	cut := allowed
	if cut > len(content) {
		cut = len(content)
	}
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}

	out := msg
	out.Content = content[:cut] + TruncationMarker
	if len(FormatMessage(out))+lineSeparatorBytes > s.effectiveBudget {
		return msg, false
	}
	logx.Warn().Str("message_id", msg.ID).Int("kept_bytes", cut).
		Msg("oversized message truncated to fit the segment budget")
	return out, true
}
