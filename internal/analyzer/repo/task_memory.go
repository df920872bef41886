package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chatlens/server/internal/analyzer/model"
)

// MemoryTaskRepository keeps task records in process memory. It backs
// tests and deployments that run without Redis.
type MemoryTaskRepository struct {
	mu     sync.RWMutex
	tasks  map[string]*model.TaskRecord
	byConv map[string][]string
}

func NewMemoryTaskRepository() *MemoryTaskRepository {
	return &MemoryTaskRepository{
		tasks:  make(map[string]*model.TaskRecord),
		byConv: make(map[string][]string),
	}
}

func (r *MemoryTaskRepository) CreateTask(_ context.Context, rec *model.TaskRecord) error {
	if rec == nil {
		return fmt.Errorf("task record is nil")
	}
	if rec.TaskID == "" {
		rec.TaskID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = model.StagePending
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.ProcessedSegment = -1

	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.tasks[rec.TaskID] = &cp
	if rec.ConversationID != "" {
		r.byConv[rec.ConversationID] = append(r.byConv[rec.ConversationID], rec.TaskID)
	}
	return nil
}

func (r *MemoryTaskRepository) UpdateStatus(_ context.Context, taskID string, status model.Stage, finalAnswer, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s not found", taskID)
	}
	rec.Status = status
	if finalAnswer != "" {
		rec.FinalAnswer = finalAnswer
	}
	if errorMessage != "" {
		rec.ErrorMessage = errorMessage
	}
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryTaskRepository) UpdateProgress(_ context.Context, taskID string, processed, total int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s not found", taskID)
	}
	rec.ProcessedSegment = processed
	if total > 0 {
		rec.TotalSegments = total
	}
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryTaskRepository) GetTask(_ context.Context, taskID string) (*model.TaskRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s not found", taskID)
	}
	cp := *rec
	return &cp, nil
}

func (r *MemoryTaskRepository) ListTasks(_ context.Context, conversationID string) ([]*model.TaskRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byConv[conversationID]
	out := make([]*model.TaskRecord, 0, len(ids))
	for _, id := range ids {
		if rec, ok := r.tasks[id]; ok {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

var _ model.TaskRepository = (*MemoryTaskRepository)(nil)
