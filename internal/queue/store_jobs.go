package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"captioner/internal/database"
	"captioner/internal/services"
)

// Submit records a new Pending job and returns immediately.
func (s *Store) Submit(ctx context.Context, req Request) (*Job, error) {
	mediaID := strings.TrimSpace(req.MediaID)
	if mediaID == "" {
		return nil, services.Wrap(services.ErrInput, "queue", "submit", "media id is required", nil)
	}
	now := time.Now().UTC()
	job := &Job{
		ID:              ulid.Make().String(),
		MediaID:         mediaID,
		Style:           req.Style,
		Position:        req.Position,
		Animation:       req.Animation,
		Coordinates:     req.Coordinates,
		State:           StatePending,
		ProgressMessage: "Queued",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO render_jobs (id, media_id, style, position, animation, coord_x, coord_y, state, progress_message, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.MediaID,
		job.Style,
		job.Position,
		job.Animation,
		nullableCoord(job.Coordinates, false),
		nullableCoord(job.Coordinates, true),
		job.State,
		job.ProgressMessage,
		database.FormatTime(now),
		database.FormatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	s.notify(ctx, job.ID)
	return job, nil
}

// Get fetches a job by id.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.SQL().QueryRowContext(database.EnsureContext(ctx),
		`SELECT `+jobColumns+` FROM render_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Poll returns the read-only status of a job without blocking on workers.
func (s *Store) Poll(ctx context.Context, id string) (Status, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return Status{}, err
	}
	return job.Status(), nil
}

// List returns jobs newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM render_jobs`
	var (
		clauses []string
		args    []any
	)
	if len(filter.States) > 0 {
		clauses = append(clauses, "state IN ("+makePlaceholders(len(filter.States))+")")
		for _, state := range filter.States {
			args = append(args, state)
		}
	}
	if filter.MediaID != "" {
		clauses = append(clauses, "media_id = ?")
		args = append(args, filter.MediaID)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.SQL().QueryContext(database.EnsureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Stats returns a count of jobs grouped by state.
func (s *Store) Stats(ctx context.Context) (map[State]int, error) {
	rows, err := s.db.SQL().QueryContext(database.EnsureContext(ctx), `SELECT state, COUNT(1) FROM render_jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[State]int)
	for rows.Next() {
		var state State
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[state] = count
	}
	return stats, rows.Err()
}

// Health aggregates job counts for status output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{
		Pending:    stats[StatePending],
		Processing: stats[StateProcessing],
		Succeeded:  stats[StateSucceeded],
		Failed:     stats[StateFailed],
	}
	for _, count := range stats {
		health.Total += count
	}
	return health, nil
}
