package model

// MessageRecord is one transcript entry as produced by the upstream
// transcript service. Content is a finished display string: special
// message types (images, files, system notices) are pre-rendered to
// bracketed placeholders before they reach the analyzer.
type MessageRecord struct {
	ID       string   `json:"id,omitempty"`
	Sender   string   `json:"sender"`
	Remark   string   `json:"remark,omitempty"`
	Content  string   `json:"content"`
	Time     string   `json:"time"`
	SenderID string   `json:"sender_id,omitempty"`
	ReplyTo  string   `json:"reply_to,omitempty"`
	Mentions []string `json:"mentions,omitempty"`
}

// Segment is an ordered, contiguous slice of transcript messages whose
// formatted size fits the configured chunk budget. Segments are created
// once by the segmenter and never mutated afterwards.
type Segment struct {
	Messages []MessageRecord
}

// Empty reports whether the segment holds no messages.
func (s Segment) Empty() bool {
	return len(s.Messages) == 0
}
