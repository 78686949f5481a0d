package queue

import (
	"database/sql"
	"strings"
	"time"

	"captioner/internal/database"
	"captioner/internal/policy"
)

const jobColumns = "id, media_id, style, position, animation, coord_x, coord_y, state, progress_message, result_ref, error_kind, error_detail, owner, created_at, updated_at, started_at, finished_at, last_heartbeat"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job          Job
		coordX       sql.NullFloat64
		coordY       sql.NullFloat64
		state        string
		progress     sql.NullString
		resultRef    sql.NullString
		errorKind    sql.NullString
		errorDetail  sql.NullString
		owner        sql.NullString
		createdRaw   string
		updatedRaw   string
		startedRaw   sql.NullString
		finishedRaw  sql.NullString
		heartbeatRaw sql.NullString
	)
	if err := scanner.Scan(
		&job.ID,
		&job.MediaID,
		&job.Style,
		&job.Position,
		&job.Animation,
		&coordX,
		&coordY,
		&state,
		&progress,
		&resultRef,
		&errorKind,
		&errorDetail,
		&owner,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}
	job.State = State(state)
	job.ProgressMessage = progress.String
	job.ResultRef = resultRef.String
	job.ErrorKind = errorKind.String
	job.ErrorDetail = errorDetail.String
	job.Owner = owner.String
	if coordX.Valid && coordY.Valid {
		job.Coordinates = &policy.Coordinates{X: coordX.Float64, Y: coordY.Float64}
	}
	if created, err := database.ParseTime(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := database.ParseTime(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	job.StartedAt = parseOptionalTime(startedRaw)
	job.FinishedAt = parseOptionalTime(finishedRaw)
	job.LastHeartbeat = parseOptionalTime(heartbeatRaw)
	return &job, nil
}

func parseOptionalTime(raw sql.NullString) *time.Time {
	if !raw.Valid {
		return nil
	}
	t, err := database.ParseTime(raw.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullableCoord(coords *policy.Coordinates, y bool) any {
	if coords == nil {
		return nil
	}
	if y {
		return coords.Y
	}
	return coords.X
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
