package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"captioner/internal/logging"
)

// Start fails jobs orphaned by a previous process, then launches the worker
// pool and the stale lease reclaimer.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.handler == nil {
		m.mu.Unlock()
		return errors.New("workflow handler not configured")
	}
	m.mu.Unlock()

	orphaned, err := m.store.FailOrphaned(ctx)
	if err != nil {
		return fmt.Errorf("fail orphaned jobs: %w", err)
	}
	if len(orphaned) > 0 {
		logging.WarnWithContext(m.logger, "failed jobs left processing by previous run", "heartbeat_reclaim",
			logging.Int("count", len(orphaned)),
			logging.Any("job_ids", orphaned),
			logging.String(logging.FieldErrorHint, "resubmit the affected renders"),
		)
	}

	m.mu.Lock()
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(m.pollers + 1)
	m.mu.Unlock()

	for i := range m.pollers {
		go m.runWorker(runCtx, i+1)
	}
	go m.runReclaimer(runCtx)

	m.logger.Info("workflow started",
		logging.Int("workers", m.pollers),
		logging.String("session_id", m.sessionID),
	)
	return nil
}

// Stop terminates background processing and waits for workers to return.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Notify wakes an idle worker. It never blocks.
func (m *Manager) Notify() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) runWorker(ctx context.Context, slot int) {
	defer m.wg.Done()
	owner := m.ownerFor(slot)
	logger := m.logger.With(logging.String(logging.FieldWorker, owner))

	for {
		if ctx.Err() != nil {
			return
		}
		job, err := m.store.ClaimNext(ctx, owner, "Processing")
		if err != nil {
			m.handleClaimError(ctx, logger, err)
			continue
		}
		if job == nil {
			m.waitForJobOrShutdown(ctx)
			continue
		}
		m.runJob(ctx, logger, owner, job)
	}
}

func (m *Manager) runReclaimer(ctx context.Context) {
	defer m.wg.Done()
	interval := m.heartbeat.ReclaimInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.heartbeat.ReclaimStaleJobs(ctx); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Warn("reclaim stale jobs failed; expired leases may remain processing",
					logging.Error(err),
					logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
					logging.String(logging.FieldErrorHint, "check queue database access"),
				)
			}
		}
	}
}

func (m *Manager) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	m.setLastError(err)
	logger.Error("failed to claim next render job",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(m.retryDelay):
	}
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-m.wake:
	case <-time.After(m.pollInterval):
	}
}

func (m *Manager) ownerFor(slot int) string {
	return fmt.Sprintf("%s/worker-%d", m.sessionID, slot)
}
