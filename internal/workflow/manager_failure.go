package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"captioner/internal/logging"
	"captioner/internal/queue"
	"captioner/internal/services"
)

const shutdownFailureMessage = "render interrupted by daemon shutdown"

// handleJobFailure records the single Failed transition for a job. runCtx is
// the pool context, used to tell shutdown interruptions from real faults.
func (m *Manager) handleJobFailure(ctx, runCtx context.Context, logger *slog.Logger, job *queue.Job, owner string, jobErr error) {
	kind, message := classifyJobFailure(runCtx, jobErr)
	details := services.Details(jobErr)

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "job_failed"),
		logging.String(logging.FieldErrorKind, kind),
		logging.String("error_operation", details.Operation),
		logging.String("error_message", message),
		logging.String(logging.FieldErrorHint, failureHint(kind)),
	}
	if details.Cause != nil {
		attrs = append(attrs, logging.Error(details.Cause))
	} else {
		attrs = append(attrs, logging.Error(jobErr))
	}
	logger.Error("render job failed", logging.Args(attrs...)...)

	if err := m.store.Fail(ctx, job.ID, owner, kind, message); err != nil {
		if errors.Is(err, queue.ErrInvalidTransition) || errors.Is(err, queue.ErrNotOwner) {
			logger.Warn("job already left processing; failure not recorded", logging.Error(err))
		} else {
			logger.Error("failed to persist job failure", logging.Error(err))
		}
	}
	m.setLastError(jobErr)
	m.refreshLastJob(ctx, job.ID)
}

func classifyJobFailure(runCtx context.Context, jobErr error) (string, string) {
	if runCtx.Err() != nil && errors.Is(jobErr, context.Canceled) {
		return services.ErrTransient.Error(), shutdownFailureMessage
	}
	kind := services.ErrCompositing.Error()
	if marker := services.Marker(jobErr); marker != nil {
		kind = marker.Error()
	}
	message := ""
	if jobErr != nil {
		message = strings.TrimSpace(jobErr.Error())
	}
	if message == "" {
		message = "render failed without error detail"
	}
	return kind, message
}

func failureHint(kind string) string {
	switch kind {
	case services.ErrTranscriptMissing.Error():
		return "ingest the media again before rendering"
	case services.ErrNotFound.Error(), services.ErrInput.Error():
		return "the uploaded media or its audio track is missing; upload and ingest again"
	case services.ErrTransient.Error():
		return "resubmit the render"
	default:
		return "inspect the ffmpeg error output and source media"
	}
}
