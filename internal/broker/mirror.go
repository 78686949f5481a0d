package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"captioner/internal/config"
	"captioner/internal/database"
	"captioner/internal/logging"
	"captioner/internal/queue"
)

const statusKeyPrefix = "captioner:job:"

// StatusKey is the Redis hash holding the mirrored status of a job.
func StatusKey(jobID string) string {
	return statusKeyPrefix + jobID
}

// StatusMirror copies job transitions into Redis hashes. It implements
// queue.Observer; mirror failures are logged and never affect the job.
type StatusMirror struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisClient builds a go-redis client from cfg.Redis.
func NewRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		Password: cfg.Redis.Password,
	})
}

// NewStatusMirror wraps client. Terminal job hashes expire after ttl.
func NewStatusMirror(client *redis.Client, ttl time.Duration, logger *slog.Logger) *StatusMirror {
	return &StatusMirror{
		client: client,
		ttl:    ttl,
		logger: logging.NewComponentLogger(logger, "status-mirror"),
	}
}

// Ping verifies the Redis connection.
func (m *StatusMirror) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// JobChanged writes the job's current status.
func (m *StatusMirror) JobChanged(ctx context.Context, job *queue.Job) {
	if job == nil {
		return
	}
	key := StatusKey(job.ID)
	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, StatusFields(job))
		if job.State.Terminal() && m.ttl > 0 {
			pipe.Expire(ctx, key, m.ttl)
		}
		return nil
	})
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "job status mirror write failed", "status_mirror_failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check redis connectivity; SQLite remains authoritative"),
		)
	}
}

// Status reads a mirrored job hash. It returns an empty map for unknown jobs.
func (m *StatusMirror) Status(ctx context.Context, jobID string) (map[string]string, error) {
	values, err := m.client.HGetAll(ctx, StatusKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read mirrored status: %w", err)
	}
	return values, nil
}

// Close releases the Redis connection.
func (m *StatusMirror) Close() error {
	return m.client.Close()
}

// StatusFields is the hash layout of a mirrored job.
func StatusFields(job *queue.Job) map[string]any {
	return map[string]any{
		"state":        string(job.State),
		"media_id":     job.MediaID,
		"style":        job.Style,
		"message":      job.ProgressMessage,
		"result":       job.ResultRef,
		"error_kind":   job.ErrorKind,
		"error_detail": job.ErrorDetail,
		"updated_at":   database.FormatTime(job.UpdatedAt),
	}
}
