package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"captioner/internal/logging"
	"captioner/internal/queue"
)

// HeartbeatMonitor refreshes job leases and fails jobs whose lease expired.
type HeartbeatMonitor struct {
	store             *queue.Store
	logger            *slog.Logger
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store *queue.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		store:             store,
		logger:            logger,
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
	}
}

// ReclaimInterval is how often expired leases are checked. Zero disables
// reclamation.
func (h *HeartbeatMonitor) ReclaimInterval() time.Duration {
	if h.heartbeatTimeout <= 0 {
		return 0
	}
	if h.heartbeatInterval > 0 {
		return h.heartbeatInterval
	}
	return h.heartbeatTimeout / 2
}

// ReclaimStaleJobs moves Processing jobs with an expired lease to Failed.
func (h *HeartbeatMonitor) ReclaimStaleJobs(ctx context.Context) error {
	if h.heartbeatTimeout <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-h.heartbeatTimeout)
	reclaimed, err := h.store.ReclaimStale(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(reclaimed) > 0 {
		logging.WarnWithContext(h.logger, "failed render jobs with expired heartbeat", "heartbeat_reclaim",
			logging.Int("count", len(reclaimed)),
			logging.Any("job_ids", reclaimed),
			logging.String(logging.FieldErrorHint, "a worker stopped responding; resubmit the affected renders"),
		)
	}
	return nil
}

// StartLoop refreshes the lease of jobID until ctx is cancelled.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, jobID, owner string) {
	defer wg.Done()
	if h.heartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger.With(logging.String(logging.FieldComponent, "workflow-heartbeat")))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.UpdateHeartbeat(ctx, jobID, owner); err != nil {
				switch {
				case errors.Is(err, context.Canceled):
					return
				case errors.Is(err, queue.ErrInvalidTransition), errors.Is(err, queue.ErrNotOwner):
					logger.Warn("heartbeat rejected; job lease lost", logging.Error(err))
					return
				default:
					logger.Warn("heartbeat update failed", logging.Error(err))
				}
			}
		}
	}
}
