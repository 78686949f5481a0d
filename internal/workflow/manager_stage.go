package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"captioner/internal/logging"
	"captioner/internal/queue"
	"captioner/internal/services"
)

const stageName = "render"

// Execute runs a single job delivered by an external dispatcher. A job that
// is no longer Pending was already taken or finished and is skipped.
func (m *Manager) Execute(ctx context.Context, jobID string) error {
	m.mu.RLock()
	ready := m.handler != nil
	m.mu.RUnlock()
	if !ready {
		return errors.New("workflow handler not configured")
	}

	owner := fmt.Sprintf("%s/dispatch-%s", m.sessionID, uuid.NewString()[:8])
	logger := m.logger.With(logging.String(logging.FieldWorker, owner))
	if err := m.store.Assign(ctx, jobID, owner, "Processing"); err != nil {
		if errors.Is(err, queue.ErrInvalidTransition) {
			logger.Debug("dispatched job no longer pending", logging.String(logging.FieldJobID, jobID), logging.Error(err))
			return nil
		}
		return err
	}
	job, err := m.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	m.runJob(ctx, logger, owner, job)
	return nil
}

func (m *Manager) runJob(ctx context.Context, workerLogger *slog.Logger, owner string, job *queue.Job) {
	jobCtx := withJobContext(ctx, job, uuid.NewString())
	logger := logging.WithContext(jobCtx, workerLogger)

	m.trackActive(job.ID, owner)
	defer m.untrackActive(job.ID)
	m.setLastJob(job)

	start := time.Now()
	logger.Info("render job started",
		logging.String(logging.FieldEventType, "job_started"),
		logging.String("style", job.Style),
		logging.String("position", job.Position),
		logging.String("animation", job.Animation),
	)

	hbCtx, hbCancel := context.WithCancel(jobCtx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID, owner)

	progress := func(message string) {
		message = strings.TrimSpace(message)
		if message == "" {
			return
		}
		if err := m.store.ReportProgress(jobCtx, job.ID, owner, message); err != nil {
			logger.Warn("progress update rejected", logging.Error(err))
			return
		}
		logger.Debug("render job progress",
			logging.String(logging.FieldEventType, "job_progress"),
			logging.String("message", message),
		)
	}

	resultRef, execErr := m.safeExecute(jobCtx, logger, job, progress)
	hbCancel()
	hbWG.Wait()

	// The outcome is persisted even when the pool is shutting down.
	persistCtx := context.WithoutCancel(jobCtx)
	if execErr != nil {
		m.handleJobFailure(persistCtx, ctx, logger, job, owner, execErr)
		return
	}
	if err := m.store.Complete(persistCtx, job.ID, owner, resultRef, "Completed"); err != nil {
		m.setLastError(err)
		logger.Error("failed to record render result",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_persist_failed"),
			logging.String(logging.FieldErrorHint, "the job lease may have expired; check heartbeat settings"),
		)
		return
	}
	logger.Info("render job succeeded",
		logging.String(logging.FieldEventType, "job_succeeded"),
		logging.String("result_ref", resultRef),
		logging.Duration("job_duration", time.Since(start)),
	)
	m.refreshLastJob(persistCtx, job.ID)
}

// safeExecute converts a handler panic into an ordinary compositing failure.
func (m *Manager) safeExecute(ctx context.Context, logger *slog.Logger, job *queue.Job, progress func(string)) (ref string, err error) {
	m.mu.RLock()
	handler := m.handler
	m.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			logger.Debug("render handler panic", logging.String("stack", string(debug.Stack())))
			ref = ""
			err = services.Wrap(services.ErrCompositing, stageName, "execute", fmt.Sprintf("render panicked: %v", r), nil)
		}
	}()
	return handler.Execute(ctx, job, progress)
}

func withJobContext(ctx context.Context, job *queue.Job, requestID string) context.Context {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithMediaID(ctx, job.MediaID)
	ctx = services.WithStage(ctx, stageName)
	return services.WithRequestID(ctx, requestID)
}

func (m *Manager) trackActive(jobID, owner string) {
	m.mu.Lock()
	m.active[jobID] = owner
	m.mu.Unlock()
}

func (m *Manager) untrackActive(jobID string) {
	m.mu.Lock()
	delete(m.active, jobID)
	m.mu.Unlock()
}
