package graph

import (
	"context"

	"github.com/chatlens/server/internal/analyzer/model"
	logx "github.com/chatlens/server/pkg/logger"
)

// tracker mirrors run progress into the optional task store. Every
// operation is best-effort: a store failure is logged and never fails
// the analysis run.
type tracker struct {
	repo model.TaskRepository
}

func (t tracker) create(ctx context.Context, st *model.RunState) {
	if t.repo == nil {
		return
	}
	rec := &model.TaskRecord{
		ConversationID:      st.Input.ConversationID,
		TriggeringMessageID: st.Input.TriggeringMessageID,
		Query:               st.Input.Query,
		Status:              model.StagePending,
	}
	if err := t.repo.CreateTask(ctx, rec); err != nil {
		logx.Warn().Err(err).Msg("failed to create task record, continuing without tracking")
		return
	}
	st.TaskID = rec.TaskID
}

func (t tracker) status(ctx context.Context, st *model.RunState, stage model.Stage) {
	st.Stage = stage
	if t.repo == nil || st.TaskID == "" {
		return
	}
	if err := t.repo.UpdateStatus(ctx, st.TaskID, stage, "", ""); err != nil {
		logx.Warn().Err(err).Str("task_id", st.TaskID).Str("stage", string(stage)).
			Msg("failed to update task status")
	}
}

func (t tracker) progress(ctx context.Context, st *model.RunState, processed, total int) {
	if t.repo == nil || st.TaskID == "" {
		return
	}
	if err := t.repo.UpdateProgress(ctx, st.TaskID, processed, total); err != nil {
		logx.Warn().Err(err).Str("task_id", st.TaskID).Msg("failed to update task progress")
	}
}

func (t tracker) finish(ctx context.Context, st *model.RunState, res model.AnalysisResult) {
	if t.repo == nil || st.TaskID == "" {
		return
	}
	status := model.StageCompleted
	errMsg := ""
	if st.Err != nil {
		status = model.StageFailed
		errMsg = st.Err.Error()
	}
	if err := t.repo.UpdateStatus(ctx, st.TaskID, status, res.FinalAnswer, errMsg); err != nil {
		logx.Warn().Err(err).Str("task_id", st.TaskID).Msg("failed to record task completion")
	}
}
