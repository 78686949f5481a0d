package broker

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"captioner/internal/config"
)

// TaskRenderExecute is the asynq task type carrying a render job id.
const TaskRenderExecute = "render:execute"

// RenderPayload is the body of a render:execute task.
type RenderPayload struct {
	JobID string `json:"job_id"`
}

// NewRenderTask builds the task for jobID. Tasks are never retried; a failed
// render is final. timeout must be positive: asynq's own default of 30
// minutes would cancel long renders.
func NewRenderTask(jobID string, timeout time.Duration) (*asynq.Task, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, fmt.Errorf("render task: job id is required")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("render task: timeout must be positive, got %s", timeout)
	}
	body, err := json.Marshal(RenderPayload{JobID: jobID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRenderExecute, body, renderTaskOptions(jobID, timeout)...), nil
}

func renderTaskOptions(jobID string, timeout time.Duration) []asynq.Option {
	return []asynq.Option{asynq.MaxRetry(0), asynq.TaskID(jobID), asynq.Timeout(timeout)}
}

// ParseRenderPayload decodes a render:execute task body.
func ParseRenderPayload(body []byte) (RenderPayload, error) {
	var payload RenderPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return RenderPayload{}, fmt.Errorf("decode render payload: %w", err)
	}
	if strings.TrimSpace(payload.JobID) == "" {
		return RenderPayload{}, fmt.Errorf("decode render payload: job id is empty")
	}
	return payload, nil
}

// RedisOpt converts the redis config section into asynq connection options.
func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		Password: cfg.Redis.Password,
	}
}
