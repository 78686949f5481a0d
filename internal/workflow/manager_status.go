package workflow

import (
	"context"
	"sort"

	"captioner/internal/logging"
	"captioner/internal/queue"
	"captioner/internal/stage"
)

// ActiveJob identifies a job currently executing in this process.
type ActiveJob struct {
	JobID string
	Owner string
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running    bool
	Workers    int
	Busy       int
	Active     []ActiveJob
	LastError  string
	LastJob    *queue.Job
	QueueStats map[queue.State]int
	Health     stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastJob := m.lastJob
	handler := m.handler
	active := make([]ActiveJob, 0, len(m.active))
	for id, owner := range m.active {
		active = append(active, ActiveJob{JobID: id, Owner: owner})
	}
	m.mu.RUnlock()
	sort.Slice(active, func(i, j int) bool { return active[i].JobID < active[j].JobID })

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}

	summary := StatusSummary{
		Running:    running,
		Workers:    m.cfg.Workflow.WorkerCount,
		Busy:       len(active),
		Active:     active,
		QueueStats: stats,
	}
	if handler != nil {
		summary.Health = handler.HealthCheck(ctx)
	} else {
		summary.Health = stage.Unhealthy(stageName, "handler not configured")
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastJob != nil {
		copy := *lastJob
		summary.LastJob = &copy
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	if job != nil {
		copy := *job
		m.lastJob = &copy
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}

func (m *Manager) refreshLastJob(ctx context.Context, id string) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return
	}
	m.setLastJob(job)
}
