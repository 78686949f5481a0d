package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"captioner/internal/logging"
	"captioner/internal/media"
	"captioner/internal/policy"
	"captioner/internal/queue"
	"captioner/internal/services"
)

// ErrResultNotReady is returned when a result is fetched before the job succeeded.
var ErrResultNotReady = errors.New("render result not ready")

// JobStore abstracts the queue operations the render service needs.
type JobStore interface {
	Submit(ctx context.Context, req queue.Request) (*queue.Job, error)
	Get(ctx context.Context, id string) (*queue.Job, error)
	Poll(ctx context.Context, id string) (queue.Status, error)
	List(ctx context.Context, filter queue.ListFilter) ([]*queue.Job, error)
	Stats(ctx context.Context) (map[queue.State]int, error)
}

// TranscriptChecker reports whether a transcript exists.
type TranscriptChecker interface {
	Exists(ctx context.Context, mediaID string) (bool, error)
}

// Dispatcher hands a submitted job to the workers.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// RenderService exposes render job operations returning API DTOs.
type RenderService struct {
	store       JobStore
	transcripts TranscriptChecker
	layout      media.Layout
	dispatcher  Dispatcher
	logger      *slog.Logger
}

// NewRenderService wires the render service.
func NewRenderService(store JobStore, transcripts TranscriptChecker, layout media.Layout, dispatcher Dispatcher, logger *slog.Logger) *RenderService {
	return &RenderService{
		store:       store,
		transcripts: transcripts,
		layout:      layout,
		dispatcher:  dispatcher,
		logger:      logging.NewComponentLogger(logger, "render-api"),
	}
}

// Submit validates req, records a Pending job and returns without waiting
// for the render. Rejected requests never create a job.
func (s *RenderService) Submit(ctx context.Context, req RenderRequest) (Job, error) {
	mediaID := strings.TrimSpace(req.MediaID)
	ctx = services.WithMediaID(ctx, mediaID)
	if err := media.ValidateID(mediaID); err != nil {
		return Job{}, err
	}
	if !s.layout.Exists(mediaID) {
		return Job{}, services.Wrap(services.ErrInput, "render", "submit", fmt.Sprintf("media %q not found", mediaID), nil)
	}
	resolved, err := policy.Resolve(policy.Request{
		Style:       req.Style,
		Position:    req.Position,
		Animation:   req.Animation,
		Coordinates: req.Coordinates,
	})
	if err != nil {
		return Job{}, err
	}
	ok, err := s.transcripts.Exists(ctx, mediaID)
	if err != nil {
		return Job{}, err
	}
	if !ok {
		return Job{}, services.Wrap(services.ErrTranscriptMissing, "render", "submit",
			fmt.Sprintf("no transcript for media %q; ingest it first", mediaID), nil)
	}

	job, err := s.store.Submit(ctx, queue.Request{
		MediaID:     mediaID,
		Style:       resolved.Style.Tag(),
		Position:    resolved.Position.Tag(),
		Animation:   resolved.Animation.Tag(),
		Coordinates: resolved.Coordinates,
	})
	if err != nil {
		return Job{}, err
	}
	logger := logging.WithContext(services.WithJobID(ctx, job.ID), s.logger)
	logger.Info("render job submitted",
		logging.String(logging.FieldEventType, "job_submitted"),
		logging.String("style", job.Style),
		logging.String("position", job.Position),
		logging.String("animation", job.Animation),
	)
	s.dispatch(ctx, logger, job.ID)
	return FromJob(job), nil
}

// dispatch failures leave the job Pending; the daemon re-dispatches pending
// jobs on start.
func (s *RenderService) dispatch(ctx context.Context, logger *slog.Logger, jobID string) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Dispatch(ctx, jobID); err != nil {
		logging.WarnWithContext(logger, "render dispatch failed", "dispatch_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "job stays pending until the daemon restarts"),
		)
	}
}

// RedispatchPending hands every Pending job to the dispatcher again.
func (s *RenderService) RedispatchPending(ctx context.Context) (int, error) {
	jobs, err := s.store.List(ctx, queue.ListFilter{States: []queue.State{queue.StatePending}})
	if err != nil {
		return 0, err
	}
	for i := len(jobs) - 1; i >= 0; i-- {
		s.dispatch(ctx, s.logger, jobs[i].ID)
	}
	return len(jobs), nil
}

// Poll returns the state, message and result reference of a job.
func (s *RenderService) Poll(ctx context.Context, id string) (JobStatus, error) {
	status, err := s.store.Poll(ctx, strings.TrimSpace(id))
	if err != nil {
		return JobStatus{}, err
	}
	return FromStatus(status), nil
}

// Describe fetches a single job.
func (s *RenderService) Describe(ctx context.Context, id string) (Job, error) {
	job, err := s.store.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return Job{}, err
	}
	return FromJob(job), nil
}

// Result resolves the output file of a succeeded job.
func (s *RenderService) Result(ctx context.Context, id string) (string, error) {
	job, err := s.store.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return "", err
	}
	if job.State != queue.StateSucceeded {
		return "", fmt.Errorf("%w: job %s is %s", ErrResultNotReady, job.ID, job.State)
	}
	return s.layout.ResolveOutput(job.ResultRef)
}

// Output resolves a result reference directly.
func (s *RenderService) Output(name string) (string, error) {
	return s.layout.ResolveOutput(name)
}

// List returns jobs filtered by state names and media id, newest first.
func (s *RenderService) List(ctx context.Context, states []string, mediaID string, limit int) ([]Job, error) {
	filter := queue.ListFilter{MediaID: strings.TrimSpace(mediaID), Limit: limit}
	for _, raw := range states {
		trimmed := strings.ToLower(strings.TrimSpace(raw))
		if trimmed == "" {
			continue
		}
		state := queue.State(trimmed)
		if !state.Valid() {
			return nil, services.Wrap(services.ErrInput, "render", "list", fmt.Sprintf("unknown job state %q", raw), nil)
		}
		filter.States = append(filter.States, state)
	}
	jobs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return SortJobsNewestFirst(FromJobs(jobs)), nil
}

// Stats returns job counts keyed by state name.
func (s *RenderService) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}
