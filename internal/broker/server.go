package broker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"captioner/internal/config"
	"captioner/internal/logging"
)

// Executor runs one job by id. workflow.Manager satisfies it.
type Executor interface {
	Execute(ctx context.Context, jobID string) error
}

// Server consumes render tasks from Redis.
type Server struct {
	srv      *asynq.Server
	mux      *asynq.ServeMux
	executor Executor
	logger   *slog.Logger
}

// NewServer builds an asynq server with one slot per configured worker.
func NewServer(cfg *config.Config, executor Executor, logger *slog.Logger) *Server {
	logger = logging.NewComponentLogger(logger, "asynq-server")
	s := &Server{
		srv: asynq.NewServer(RedisOpt(cfg), asynq.Config{
			Concurrency: cfg.Workflow.WorkerCount,
			Logger:      asynqLogger{logger: logger},
		}),
		mux:      asynq.NewServeMux(),
		executor: executor,
		logger:   logger,
	}
	s.mux.HandleFunc(TaskRenderExecute, s.ProcessTask)
	return s
}

// Start begins consuming tasks in the background.
func (s *Server) Start() error {
	if err := s.srv.Start(s.mux); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}
	return nil
}

// Shutdown stops fetching tasks and waits for active ones.
func (s *Server) Shutdown() {
	s.srv.Shutdown()
}

// ProcessTask executes the job named by a render:execute task. Job failures
// are recorded in the job store, so only delivery problems reach asynq.
func (s *Server) ProcessTask(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseRenderPayload(task.Payload())
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	if err := s.executor.Execute(ctx, payload.JobID); err != nil {
		s.logger.Error("dispatched render could not start",
			logging.String(logging.FieldJobID, payload.JobID),
			logging.Error(err),
			logging.String(logging.FieldEventType, "dispatch_failed"),
			logging.String(logging.FieldErrorHint, "check the job id and queue database"),
		)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return nil
}

// asynqLogger adapts slog to asynq's logger interface.
type asynqLogger struct {
	logger *slog.Logger
}

func (l asynqLogger) Debug(args ...any) { l.logger.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.logger.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.logger.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.logger.Error(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...any) { l.logger.Error(fmt.Sprint(args...)) }
