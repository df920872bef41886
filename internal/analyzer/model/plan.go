package model

// Plan is the structured output of the query-planning call: a compact
// intent label, the entities the query pivots on, and one reusable
// instruction applied unmodified to every transcript segment.
type Plan struct {
	Intent             string            `json:"intent"`
	Entities           map[string]string `json:"entities"`
	SegmentInstruction string            `json:"segment_instruction"`
}
