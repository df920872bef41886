package model

import (
	"context"
	"time"
)

// TaskRecord tracks one analysis run in the task store so a frontend
// can poll progress and recover answers after the fact.
type TaskRecord struct {
	TaskID              string    `json:"task_id"`
	ConversationID      string    `json:"conversation_id"`
	TriggeringMessageID string    `json:"triggering_message_id,omitempty"`
	Query               string    `json:"query"`
	Status              Stage     `json:"status"`
	TotalSegments       int       `json:"total_segments"`
	ProcessedSegment    int       `json:"processed_segment"` // last finished segment index, -1 before start
	FinalAnswer         string    `json:"final_answer,omitempty"`
	ErrorMessage        string    `json:"error_message,omitempty"`
	RetryCount          int       `json:"retry_count"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// TaskRepository persists analysis task records. Implementations must
// tolerate concurrent runs; the engine treats every call as
// best-effort and never fails a run on a store error.
type TaskRepository interface {
	// CreateTask stores a fresh record. Missing TaskID and timestamps
	// are filled in by the implementation.
	CreateTask(ctx context.Context, rec *TaskRecord) error

	// UpdateStatus moves the task to a new status, optionally recording
	// the final answer or error message.
	UpdateStatus(ctx context.Context, taskID string, status Stage, finalAnswer, errorMessage string) error

	// UpdateProgress records segment-level progress.
	UpdateProgress(ctx context.Context, taskID string, processed, total int) error

	// GetTask loads one record by ID.
	GetTask(ctx context.Context, taskID string) (*TaskRecord, error)

	// ListTasks returns the records of a conversation, oldest first.
	ListTasks(ctx context.Context, conversationID string) ([]*TaskRecord, error)
}
