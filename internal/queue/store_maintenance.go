package queue

import (
	"context"
	"fmt"
	"time"

	"captioner/internal/database"
	"captioner/internal/services"
)

// ReclaimStale fails Processing jobs whose heartbeat is older than cutoff and
// returns their ids. Jobs are not retried.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	return s.failProcessing(ctx,
		`state = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		[]any{StateProcessing, database.FormatTime(cutoff)},
		HeartbeatExpiredReason,
	)
}

// FailOrphaned fails every Processing job. It is only safe while no worker of
// this store is running, such as at daemon start.
func (s *Store) FailOrphaned(ctx context.Context) ([]string, error) {
	return s.failProcessing(ctx, `state = ?`, []any{StateProcessing}, DaemonRestartReason)
}

func (s *Store) failProcessing(ctx context.Context, where string, args []any, reason string) ([]string, error) {
	ctx = database.EnsureContext(ctx)
	rows, err := s.db.SQL().QueryContext(ctx, `SELECT id FROM render_jobs WHERE `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("select stale jobs: %w", err)
	}
	var candidates []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		candidates = append(candidates, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	kind := services.ErrTransient.Error()
	var failed []string
	for _, id := range candidates {
		now := database.FormatTime(time.Now())
		updateArgs := append([]any{StateFailed, kind, reason, "Failed", now, now, id}, args...)
		res, err := s.db.Exec(ctx,
			`UPDATE render_jobs
             SET state = ?, error_kind = ?, error_detail = ?, progress_message = ?, finished_at = ?, updated_at = ?
             WHERE id = ? AND `+where,
			updateArgs...,
		)
		if err != nil {
			return failed, fmt.Errorf("fail stale job %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			failed = append(failed, id)
			s.notify(ctx, id)
		}
	}
	return failed, nil
}
