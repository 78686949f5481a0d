package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"captioner/internal/database"
)

// Assign transitions a Pending job to Processing under owner. At most one
// caller can succeed for a given job.
func (s *Store) Assign(ctx context.Context, id, owner, message string) error {
	if owner == "" {
		return fmt.Errorf("assign job %s: owner is required", id)
	}
	now := database.FormatTime(time.Now())
	res, err := s.db.Exec(ctx,
		`UPDATE render_jobs
         SET state = ?, owner = ?, progress_message = ?, started_at = ?, last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND state = ?`,
		StateProcessing, owner, message, now, now, now,
		id, StatePending,
	)
	if err != nil {
		return fmt.Errorf("assign job: %w", err)
	}
	if err := s.checkApplied(ctx, res, id, owner, StatePending); err != nil {
		return err
	}
	s.notify(ctx, id)
	return nil
}

// ClaimNext assigns the oldest Pending job to owner. It returns nil when the
// queue is empty.
func (s *Store) ClaimNext(ctx context.Context, owner, message string) (*Job, error) {
	for {
		var id string
		err := s.db.SQL().QueryRowContext(database.EnsureContext(ctx),
			`SELECT id FROM render_jobs WHERE state = ? ORDER BY id LIMIT 1`, StatePending,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("select next job: %w", err)
		}
		if err := s.Assign(ctx, id, owner, message); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				continue
			}
			return nil, err
		}
		return s.Get(ctx, id)
	}
}

// ReportProgress overwrites the progress message of a Processing job.
func (s *Store) ReportProgress(ctx context.Context, id, owner, message string) error {
	res, err := s.db.Exec(ctx,
		`UPDATE render_jobs SET progress_message = ?, updated_at = ?
         WHERE id = ? AND state = ? AND owner = ?`,
		message, database.FormatTime(time.Now()),
		id, StateProcessing, owner,
	)
	if err != nil {
		return fmt.Errorf("report progress: %w", err)
	}
	if err := s.checkApplied(ctx, res, id, owner, StateProcessing); err != nil {
		return err
	}
	s.notify(ctx, id)
	return nil
}

// Complete transitions a Processing job to Succeeded.
func (s *Store) Complete(ctx context.Context, id, owner, resultRef, message string) error {
	now := database.FormatTime(time.Now())
	res, err := s.db.Exec(ctx,
		`UPDATE render_jobs
         SET state = ?, result_ref = ?, progress_message = ?, finished_at = ?, updated_at = ?
         WHERE id = ? AND state = ? AND owner = ?`,
		StateSucceeded, resultRef, message, now, now,
		id, StateProcessing, owner,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if err := s.checkApplied(ctx, res, id, owner, StateProcessing); err != nil {
		return err
	}
	s.notify(ctx, id)
	return nil
}

// Fail transitions a Processing job to Failed with a kind and detail.
func (s *Store) Fail(ctx context.Context, id, owner, kind, detail string) error {
	now := database.FormatTime(time.Now())
	res, err := s.db.Exec(ctx,
		`UPDATE render_jobs
         SET state = ?, error_kind = ?, error_detail = ?, progress_message = ?, finished_at = ?, updated_at = ?
         WHERE id = ? AND state = ? AND owner = ?`,
		StateFailed, database.NullableString(kind), detail, "Failed", now, now,
		id, StateProcessing, owner,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if err := s.checkApplied(ctx, res, id, owner, StateProcessing); err != nil {
		return err
	}
	s.notify(ctx, id)
	return nil
}

// UpdateHeartbeat refreshes the lease of a Processing job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id, owner string) error {
	now := database.FormatTime(time.Now())
	res, err := s.db.Exec(ctx,
		`UPDATE render_jobs SET last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND state = ? AND owner = ?`,
		now, now, id, StateProcessing, owner,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return s.checkApplied(ctx, res, id, owner, StateProcessing)
}

// checkApplied turns a zero-row conditional update into a precise error.
func (s *Store) checkApplied(ctx context.Context, res sql.Result, id, owner string, expected State) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.State != expected {
		return fmt.Errorf("%w: job %s is %s, expected %s", ErrInvalidTransition, id, job.State, expected)
	}
	if job.Owner != owner {
		return fmt.Errorf("%w: job %s", ErrNotOwner, id)
	}
	return fmt.Errorf("%w: job %s changed concurrently", ErrInvalidTransition, id)
}
