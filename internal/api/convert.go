package api

import (
	"time"

	"captioner/internal/queue"
	"captioner/internal/stage"
	"captioner/internal/transcript"
	"captioner/internal/workflow"
)

// FromJob converts a queue record to its API representation.
func FromJob(job *queue.Job) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:          job.ID,
		MediaID:     job.MediaID,
		Style:       job.Style,
		Position:    job.Position,
		Animation:   job.Animation,
		Coordinates: job.Coordinates,
		State:       string(job.State),
		Message:     job.ProgressMessage,
		ResultRef:   job.ResultRef,
		ErrorKind:   job.ErrorKind,
		ErrorDetail: job.ErrorDetail,
		CreatedAt:   formatTime(job.CreatedAt),
		UpdatedAt:   formatTime(job.UpdatedAt),
	}
	if job.StartedAt != nil {
		dto.StartedAt = formatTime(*job.StartedAt)
	}
	if job.FinishedAt != nil {
		dto.FinishedAt = formatTime(*job.FinishedAt)
	}
	return dto
}

// FromJobs converts a slice of queue records into API DTOs.
func FromJobs(jobs []*queue.Job) []Job {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromStatus converts a queue poll view.
func FromStatus(status queue.Status) JobStatus {
	return JobStatus{
		ID:          status.ID,
		State:       string(status.State),
		Message:     status.Message,
		ResultRef:   status.ResultRef,
		ErrorKind:   status.ErrorKind,
		ErrorDetail: status.ErrorDetail,
	}
}

// FromTranscript converts a stored document.
func FromTranscript(doc *transcript.Document) Transcript {
	if doc == nil {
		return Transcript{}
	}
	return Transcript{
		MediaID:   doc.MediaID,
		FullText:  doc.FullText,
		Segments:  FromSegments(doc.Segments),
		CreatedAt: formatTime(doc.CreatedAt),
		UpdatedAt: formatTime(doc.UpdatedAt),
	}
}

// FromSegments converts stored segments. The result is never nil.
func FromSegments(segments []transcript.Segment) []Segment {
	out := make([]Segment, len(segments))
	for i, seg := range segments {
		out[i] = Segment{Word: seg.Word, Start: seg.Start, End: seg.End, Confidence: seg.Confidence}
	}
	return out
}

// ToSegments converts wire segments for storage.
func ToSegments(segments []Segment) []transcript.Segment {
	out := make([]transcript.Segment, len(segments))
	for i, seg := range segments {
		out[i] = transcript.Segment{Word: seg.Word, Start: seg.Start, End: seg.End, Confidence: seg.Confidence}
	}
	return out
}

// FromStatusSummary converts workflow diagnostics.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	status := WorkflowStatus{
		Running:     summary.Running,
		Workers:     summary.Workers,
		Busy:        summary.Busy,
		Active:      make([]ActiveJob, 0, len(summary.Active)),
		QueueStats:  MergeQueueStats(summary.QueueStats),
		LastError:   summary.LastError,
		StageHealth: StageHealthSlice(summary.Health),
	}
	for _, active := range summary.Active {
		status.Active = append(status.Active, ActiveJob{JobID: active.JobID, Owner: active.Owner})
	}
	if summary.LastJob != nil {
		job := FromJob(summary.LastJob)
		status.LastJob = &job
	}
	return status
}

// MergeQueueStats reports every known state, including empty ones.
func MergeQueueStats(stats map[queue.State]int) map[string]int {
	out := make(map[string]int, len(queue.AllStates))
	for _, state := range queue.AllStates {
		out[string(state)] = stats[state]
	}
	return out
}

// StageHealthSlice returns nil for an unnamed health record.
func StageHealthSlice(health stage.Health) []StageHealth {
	if health.Name == "" {
		return nil
	}
	return []StageHealth{{Name: health.Name, Ready: health.Ready, Detail: health.Detail}}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
