package model

import (
	"errors"
	"fmt"
)

// Stage names mirror the status column of the analysis task store, so
// one vocabulary covers both in-flight state and persisted progress.
type Stage string

const (
	StagePending      Stage = "PENDING"
	StagePlanning     Stage = "PLANNING"
	StageChunking     Stage = "CHUNKING"
	StageExtracting   Stage = "EXTRACTING"
	StageReducing     Stage = "REDUCING"
	StageSynthesizing Stage = "SYNTHESIZING"
	StageCompleted    Stage = "COMPLETED"
	StageFailed       Stage = "FAILED"
)

// Fatal pipeline errors. Anything wrapping one of these short-circuits
// the run to the error handler; everything else is recorded per item
// and the run continues.
var (
	ErrPlanning  = errors.New("query planning failed")
	ErrChunking  = errors.New("transcript chunking failed")
	ErrSynthesis = errors.New("answer synthesis failed")
)

// AnalysisInput is the full input of one engine invocation.
type AnalysisInput struct {
	Transcript []MessageRecord `json:"transcript"`
	Query      string          `json:"query"`
	Background string          `json:"background,omitempty"`

	// ConversationID and TriggeringMessageID only feed the task store;
	// the analysis itself never reads them.
	ConversationID      string `json:"conversation_id,omitempty"`
	TriggeringMessageID string `json:"triggering_message_id,omitempty"`
}

// AnalysisResult is what the caller receives. FinalAnswer is populated
// even when Err is set, so downstream delivery never has to special-case
// a missing answer.
type AnalysisResult struct {
	FinalAnswer string `json:"final_answer"`
	Err         string `json:"error,omitempty"`
}

// ExtractionResult is the outcome of one extraction call: either the
// model's snippet for that segment or a tagged failure note. Sentinel
// "nothing relevant" replies are dropped before results are recorded,
// so they never appear here.
type ExtractionResult struct {
	Segment int    // 1-based segment number
	Text    string // snippet, or the failure tag when Failed
	Failed  bool
}

// FailureTag renders the inline marker recorded for a failed segment.
func FailureTag(segment int, err error) string {
	return fmt.Sprintf("segment %d failed: %v", segment, err)
}

// RunState is the single mutable record threaded through the pipeline.
// It is created fresh per invocation, written only by the currently
// active stage, and discarded once the result is produced.
type RunState struct {
	Input AnalysisInput
	Plan  *Plan

	Segments   []Segment
	DroppedMsg int // oversized messages dropped by the segmenter

	Extraction []ExtractionResult

	// CombinedContext is what the synthesizer consumes: either the raw
	// concatenation of valid snippets or the output of fusion rounds.
	CombinedContext string
	FusionLevels    int // how many fusion rounds ran (0 = none)
	DepthCapped     bool

	FailureCount int // failed segments plus failed fusion groups

	FinalAnswer string
	Stage       Stage
	Err         error // fatal error; once set, only the error handler writes the state

	TaskID string
}

// ValidSnippets returns the non-failure extraction texts in segment order.
func (s *RunState) ValidSnippets() []string {
	out := make([]string, 0, len(s.Extraction))
	for _, r := range s.Extraction {
		if !r.Failed {
			out = append(out, r.Text)
		}
	}
	return out
}

// Fail marks the run fatally failed at the given stage. The first
// fatal error wins; later calls are ignored.
func (s *RunState) Fail(stage Stage, err error) {
	if s.Err != nil {
		return
	}
	s.Stage = stage
	s.Err = err
}
