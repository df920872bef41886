package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatlens/server/internal/analyzer/model"
)

func TestMemoryCreateFillsDefaults(t *testing.T) {
	r := NewMemoryTaskRepository()
	rec := &model.TaskRecord{ConversationID: "c1", Query: "q"}

	require.NoError(t, r.CreateTask(context.Background(), rec))
	assert.NotEmpty(t, rec.TaskID)
	assert.Equal(t, model.StagePending, rec.Status)
	assert.Equal(t, -1, rec.ProcessedSegment)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestMemoryUpdateStatusAndProgress(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryTaskRepository()
	rec := &model.TaskRecord{ConversationID: "c1", Query: "q"}
	require.NoError(t, r.CreateTask(ctx, rec))

	require.NoError(t, r.UpdateStatus(ctx, rec.TaskID, model.StageExtracting, "", ""))
	require.NoError(t, r.UpdateProgress(ctx, rec.TaskID, 2, 5))
	require.NoError(t, r.UpdateStatus(ctx, rec.TaskID, model.StageCompleted, "the answer", ""))

	got, err := r.GetTask(ctx, rec.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.StageCompleted, got.Status)
	assert.Equal(t, 2, got.ProcessedSegment)
	assert.Equal(t, 5, got.TotalSegments)
	assert.Equal(t, "the answer", got.FinalAnswer)
}

func TestMemoryUpdateUnknownTask(t *testing.T) {
	r := NewMemoryTaskRepository()
	assert.Error(t, r.UpdateStatus(context.Background(), "nope", model.StageFailed, "", "boom"))
	assert.Error(t, r.UpdateProgress(context.Background(), "nope", 1, 2))
}

func TestMemoryListTasksPerConversation(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryTaskRepository()

	a := &model.TaskRecord{ConversationID: "c1", Query: "first"}
	b := &model.TaskRecord{ConversationID: "c1", Query: "second"}
	c := &model.TaskRecord{ConversationID: "c2", Query: "other"}
	require.NoError(t, r.CreateTask(ctx, a))
	require.NoError(t, r.CreateTask(ctx, b))
	require.NoError(t, r.CreateTask(ctx, c))

	got, err := r.ListTasks(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Query)
	assert.Equal(t, "second", got[1].Query)
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryTaskRepository()
	rec := &model.TaskRecord{ConversationID: "c1", Query: "q"}
	require.NoError(t, r.CreateTask(ctx, rec))

	got, err := r.GetTask(ctx, rec.TaskID)
	require.NoError(t, err)
	got.Status = model.StageFailed

	again, err := r.GetTask(ctx, rec.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.StagePending, again.Status)
}
