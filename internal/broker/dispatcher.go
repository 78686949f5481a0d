package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"captioner/internal/config"
	"captioner/internal/logging"
)

// Dispatcher hands a submitted job to the worker side.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
	Close() error
}

// Notifier wakes idle local workers.
type Notifier interface {
	Notify()
}

// LocalDispatcher wakes the in-process worker pool.
type LocalDispatcher struct {
	notifier Notifier
}

// NewLocalDispatcher wraps n.
func NewLocalDispatcher(n Notifier) *LocalDispatcher {
	return &LocalDispatcher{notifier: n}
}

// Dispatch never fails; workers also poll the store.
func (d *LocalDispatcher) Dispatch(context.Context, string) error {
	if d.notifier != nil {
		d.notifier.Notify()
	}
	return nil
}

// Close is a no-op.
func (d *LocalDispatcher) Close() error { return nil }

// AsynqDispatcher enqueues render tasks on Redis.
type AsynqDispatcher struct {
	client  *asynq.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewAsynqDispatcher connects an asynq client using cfg.Redis.
func NewAsynqDispatcher(cfg *config.Config, logger *slog.Logger) *AsynqDispatcher {
	return &AsynqDispatcher{
		client:  asynq.NewClient(RedisOpt(cfg)),
		timeout: cfg.RenderTimeout(),
		logger:  logging.NewComponentLogger(logger, "asynq-dispatcher"),
	}
}

// Dispatch enqueues jobID. A duplicate enqueue of the same job is ignored.
func (d *AsynqDispatcher) Dispatch(ctx context.Context, jobID string) error {
	task, err := NewRenderTask(jobID, d.timeout)
	if err != nil {
		return err
	}
	info, err := d.client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("enqueue render task: %w", err)
	}
	logging.WithContext(ctx, d.logger).Debug("render task enqueued",
		logging.String(logging.FieldJobID, jobID),
		logging.String("queue", info.Queue),
	)
	return nil
}

// Close releases the Redis connection.
func (d *AsynqDispatcher) Close() error {
	return d.client.Close()
}
