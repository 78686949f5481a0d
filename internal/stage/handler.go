package stage

import (
	"context"

	"captioner/internal/queue"
)

// ProgressFunc records a human-readable progress message for the running job.
type ProgressFunc func(message string)

// Handler describes the contract the workflow manager needs from the render
// stage. Execute returns the result reference stored on success.
type Handler interface {
	Execute(ctx context.Context, job *queue.Job, progress ProgressFunc) (string, error)
	HealthCheck(context.Context) Health
}
