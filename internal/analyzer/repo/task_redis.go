package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/chatlens/server/internal/analyzer/model"
	errx "github.com/chatlens/server/internal/core/error"
	logx "github.com/chatlens/server/pkg/logger"
)

// RedisTaskRepository stores analysis task records as JSON values with
// a TTL, plus a per-conversation index list for history lookups.
type RedisTaskRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisTaskRepository(rdb redis.Cmdable, ttl time.Duration) *RedisTaskRepository {
	return &RedisTaskRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisTaskRepository) taskKey(taskID string) string {
	return fmt.Sprintf("analysis:task:%s", taskID)
}

func (r *RedisTaskRepository) conversationKey(conversationID string) string {
	return fmt.Sprintf("analysis:conversation:%s:tasks", conversationID)
}

func (r *RedisTaskRepository) CreateTask(ctx context.Context, rec *model.TaskRecord) error {
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

	if err := r.save(ctx, rec); err != nil {
		return err
	}

	if rec.ConversationID != "" {
		key := r.conversationKey(rec.ConversationID)
		if err := r.rdb.RPush(ctx, key, rec.TaskID).Err(); err != nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to index task in conversation list")
			return errx.WrapRedis(err)
		}
		if r.ttl > 0 {
			if err := r.rdb.Expire(ctx, key, r.ttl).Err(); err != nil {
				logx.Warn().Err(err).Str("key", key).Msg("failed to set TTL on conversation task index")
			}
		}
	}
	return nil
}

func (r *RedisTaskRepository) UpdateStatus(ctx context.Context, taskID string, status model.Stage, finalAnswer, errorMessage string) error {
	rec, err := r.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	rec.Status = status
	if finalAnswer != "" {
		rec.FinalAnswer = finalAnswer
	}
	if errorMessage != "" {
		rec.ErrorMessage = errorMessage
		if status != model.StageFailed {
			logx.Warn().Str("task_id", taskID).Str("status", string(status)).
				Msg("error message set on a task whose status is not FAILED")
		}
	}
	rec.UpdatedAt = time.Now().UTC()
	return r.save(ctx, rec)
}

func (r *RedisTaskRepository) UpdateProgress(ctx context.Context, taskID string, processed, total int) error {
	rec, err := r.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	rec.ProcessedSegment = processed
	if total > 0 {
		rec.TotalSegments = total
	}
	rec.UpdatedAt = time.Now().UTC()
	return r.save(ctx, rec)
}

func (r *RedisTaskRepository) GetTask(ctx context.Context, taskID string) (*model.TaskRecord, error) {
	raw, err := r.rdb.Get(ctx, r.taskKey(taskID)).Result()
	if err != nil {
		if err != redis.Nil {
			logx.Error().Err(err).Str("task_id", taskID).Msg("failed to load task from redis")
		}
		return nil, errx.WrapRedis(err)
	}
	var rec model.TaskRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		logx.Error().Err(err).Str("task_id", taskID).Msg("failed to unmarshal task record")
		return nil, fmt.Errorf("unmarshal task %s: %w", taskID, err)
	}
	return &rec, nil
}

func (r *RedisTaskRepository) ListTasks(ctx context.Context, conversationID string) ([]*model.TaskRecord, error) {
	key := r.conversationKey(conversationID)
	ids, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to list conversation tasks")
		return nil, errx.WrapRedis(err)
	}

	out := make([]*model.TaskRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := r.GetTask(ctx, id)
		if err != nil {
			// Task value may have expired ahead of the index entry.
			logx.Warn().Err(err).Str("task_id", id).Msg("skipping unreadable task record")
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *RedisTaskRepository) save(ctx context.Context, rec *model.TaskRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		logx.Error().Err(err).Str("task_id", rec.TaskID).Msg("failed to marshal task record")
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := r.rdb.Set(ctx, r.taskKey(rec.TaskID), b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("task_id", rec.TaskID).Msg("failed to store task record in redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.TaskRepository = (*RedisTaskRepository)(nil)
