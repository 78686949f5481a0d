package workflow_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"captioner/internal/config"
	"captioner/internal/logging"
	"captioner/internal/queue"
	"captioner/internal/services"
	"captioner/internal/stage"
	"captioner/internal/testsupport"
	"captioner/internal/workflow"
)

type stubHandler struct {
	execute func(ctx context.Context, job *queue.Job, progress stage.ProgressFunc) (string, error)
	calls   atomic.Int32
}

func (s *stubHandler) Execute(ctx context.Context, job *queue.Job, progress stage.ProgressFunc) (string, error) {
	s.calls.Add(1)
	if s.execute == nil {
		return "render_style-clean_" + job.MediaID + ".mp4", nil
	}
	return s.execute(ctx, job, progress)
}

func (s *stubHandler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("render")
}

func newManager(t *testing.T, cfg *config.Config, store *queue.Store, handler stage.Handler, opts ...workflow.ManagerOption) *workflow.Manager {
	t.Helper()
	opts = append([]workflow.ManagerOption{
		workflow.WithSessionID("test"),
		workflow.WithPollInterval(20 * time.Millisecond),
		workflow.WithHeartbeat(20*time.Millisecond, time.Minute),
	}, opts...)
	mgr := workflow.NewManager(cfg, store, logging.NewNop(), opts...)
	mgr.ConfigureHandler(handler)
	return mgr
}

func startManager(t *testing.T, mgr *workflow.Manager) {
	t.Helper()
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)
}

func waitForState(t *testing.T, store *queue.Store, id string, want queue.State) queue.Status {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		status, err := store.Poll(context.Background(), id)
		if err != nil {
			t.Fatalf("Poll: %v", err)
		}
		if status.State == want {
			return status
		}
		if status.State.Terminal() || time.Now().After(deadline) {
			t.Fatalf("job %s state = %s (%q), want %s", id, status.State, status.ErrorDetail, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestManagerCompletesJob(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1))
	store := testsupport.MustOpenQueue(t, cfg)

	release := make(chan struct{})
	handler := &stubHandler{execute: func(ctx context.Context, job *queue.Job, progress stage.ProgressFunc) (string, error) {
		if id, _ := services.JobIDFromContext(ctx); id != job.ID {
			t.Errorf("job id missing from context")
		}
		progress("Encoding video")
		<-release
		return "render_style-clean_demo.mp4", nil
	}}
	mgr := newManager(t, cfg, store, handler)
	startManager(t, mgr)

	job := testsupport.SubmitJob(t, store, "abcd1234_demo.mp4")
	mgr.Notify()

	deadline := time.Now().Add(5 * time.Second)
	for {
		status, err := store.Poll(context.Background(), job.ID)
		if err != nil {
			t.Fatalf("Poll: %v", err)
		}
		if status.State == queue.StateProcessing && status.Message == "Encoding video" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("progress never observed, last status %+v", status)
		}
		time.Sleep(10 * time.Millisecond)
	}
	close(release)

	status := waitForState(t, store, job.ID, queue.StateSucceeded)
	if status.ResultRef != "render_style-clean_demo.mp4" {
		t.Fatalf("result ref = %q", status.ResultRef)
	}
	if status.Message != "Completed" {
		t.Fatalf("message = %q", status.Message)
	}
}

func TestManagerFailsJobOnHandlerError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)

	handler := &stubHandler{execute: func(context.Context, *queue.Job, stage.ProgressFunc) (string, error) {
		return "", services.Wrap(services.ErrCompositing, "compositor", "encode", "ffmpeg exited with status 1", errors.New("codec fault"))
	}}
	mgr := newManager(t, cfg, store, handler)
	startManager(t, mgr)

	job := testsupport.SubmitJob(t, store, "abcd1234_demo.mp4")
	mgr.Notify()

	status := waitForState(t, store, job.ID, queue.StateFailed)
	if status.ErrorKind != services.ErrCompositing.Error() {
		t.Fatalf("error kind = %q", status.ErrorKind)
	}
	if !strings.Contains(status.ErrorDetail, "codec fault") {
		t.Fatalf("error detail = %q", status.ErrorDetail)
	}
	if status.ResultRef != "" {
		t.Fatalf("failed job has result ref %q", status.ResultRef)
	}

	// Give the pool a chance to misbehave; a failed job is never retried.
	time.Sleep(100 * time.Millisecond)
	if got := handler.calls.Load(); got != 1 {
		t.Fatalf("handler calls = %d, want 1", got)
	}
}

func TestManagerSurvivesHandlerPanic(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1))
	store := testsupport.MustOpenQueue(t, cfg)

	handler := &stubHandler{execute: func(_ context.Context, job *queue.Job, _ stage.ProgressFunc) (string, error) {
		if job.MediaID == "boom" {
			panic("decoder exploded")
		}
		return "ok.mp4", nil
	}}
	mgr := newManager(t, cfg, store, handler)
	startManager(t, mgr)

	bad := testsupport.SubmitJob(t, store, "boom")
	good := testsupport.SubmitJob(t, store, "fine")
	mgr.Notify()

	status := waitForState(t, store, bad.ID, queue.StateFailed)
	if !strings.Contains(status.ErrorDetail, "decoder exploded") {
		t.Fatalf("panic detail missing: %q", status.ErrorDetail)
	}
	if status.ErrorKind != services.ErrCompositing.Error() {
		t.Fatalf("error kind = %q", status.ErrorKind)
	}
	waitForState(t, store, good.ID, queue.StateSucceeded)
}

func TestManagerRunsJobsInParallel(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(2))
	store := testsupport.MustOpenQueue(t, cfg)

	var started sync.WaitGroup
	started.Add(2)
	release := make(chan struct{})
	handler := &stubHandler{execute: func(_ context.Context, job *queue.Job, _ stage.ProgressFunc) (string, error) {
		started.Done()
		<-release
		return "render_" + job.Style + ".mp4", nil
	}}
	mgr := newManager(t, cfg, store, handler)
	startManager(t, mgr)

	ctx := context.Background()
	first, err := store.Submit(ctx, queue.Request{MediaID: "same", Style: "style-clean"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	second, err := store.Submit(ctx, queue.Request{MediaID: "same", Style: "style-emoji"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("duplicate job id %s", first.ID)
	}
	mgr.Notify()
	mgr.Notify()

	done := make(chan struct{})
	go func() {
		started.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("jobs did not run concurrently")
	}

	summary := mgr.Status(ctx)
	if summary.Busy != 2 || summary.Workers != 2 {
		t.Fatalf("status busy=%d workers=%d", summary.Busy, summary.Workers)
	}
	close(release)

	a := waitForState(t, store, first.ID, queue.StateSucceeded)
	b := waitForState(t, store, second.ID, queue.StateSucceeded)
	if a.ResultRef != "render_style-clean.mp4" || b.ResultRef != "render_style-emoji.mp4" {
		t.Fatalf("results crossed: %q %q", a.ResultRef, b.ResultRef)
	}
}

func TestManagerFailsOrphanedJobsOnStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)
	ctx := context.Background()

	job := testsupport.SubmitJob(t, store, "abcd1234_demo.mp4")
	if err := store.Assign(ctx, job.ID, "previous/worker-1", "Processing"); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	mgr := newManager(t, cfg, store, &stubHandler{})
	startManager(t, mgr)

	status := waitForState(t, store, job.ID, queue.StateFailed)
	if status.ErrorDetail != queue.DaemonRestartReason {
		t.Fatalf("error detail = %q", status.ErrorDetail)
	}
}

func TestHeartbeatMonitorReclaimsExpiredLease(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)
	ctx := context.Background()

	stale := testsupport.SubmitJob(t, store, "stale")
	if err := store.Assign(ctx, stale.ID, "gone/worker-1", "Processing"); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	monitor := workflow.NewHeartbeatMonitor(store, logging.NewNop(), time.Millisecond, 5*time.Millisecond)
	if err := monitor.ReclaimStaleJobs(ctx); err != nil {
		t.Fatalf("ReclaimStaleJobs: %v", err)
	}
	status := waitForState(t, store, stale.ID, queue.StateFailed)
	if status.ErrorDetail != queue.HeartbeatExpiredReason {
		t.Fatalf("error detail = %q", status.ErrorDetail)
	}

	// The owner of a reclaimed job can no longer complete it.
	err := store.Complete(ctx, stale.ID, "gone/worker-1", "late.mp4", "Completed")
	if !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("late Complete error = %v", err)
	}
}

func TestManagerHeartbeatKeepsLeaseAlive(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1))
	store := testsupport.MustOpenQueue(t, cfg)

	release := make(chan struct{})
	handler := &stubHandler{execute: func(context.Context, *queue.Job, stage.ProgressFunc) (string, error) {
		<-release
		return "slow.mp4", nil
	}}
	mgr := newManager(t, cfg, store, handler, workflow.WithHeartbeat(10*time.Millisecond, 200*time.Millisecond))
	startManager(t, mgr)

	job := testsupport.SubmitJob(t, store, "slow")
	mgr.Notify()
	waitForState(t, store, job.ID, queue.StateProcessing)

	// Outlive the lease timeout several times over while heartbeats flow.
	time.Sleep(600 * time.Millisecond)
	status, err := store.Poll(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if status.State != queue.StateProcessing {
		t.Fatalf("state = %s (%q), want processing", status.State, status.ErrorDetail)
	}
	close(release)
	waitForState(t, store, job.ID, queue.StateSucceeded)
}

func TestExecuteRunsDispatchedJobOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)
	ctx := context.Background()

	handler := &stubHandler{}
	mgr := newManager(t, cfg, store, handler, workflow.WithExternalDispatch())
	startManager(t, mgr)

	job := testsupport.SubmitJob(t, store, "abcd1234_demo.mp4")

	// No local pollers run under external dispatch.
	time.Sleep(60 * time.Millisecond)
	if got := handler.calls.Load(); got != 0 {
		t.Fatalf("handler ran without dispatch: %d calls", got)
	}

	if err := mgr.Execute(ctx, job.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	status := waitForState(t, store, job.ID, queue.StateSucceeded)
	if status.ResultRef != "render_style-clean_abcd1234_demo.mp4.mp4" {
		t.Fatalf("result ref = %q", status.ResultRef)
	}

	if err := mgr.Execute(ctx, job.ID); err != nil {
		t.Fatalf("redelivered Execute: %v", err)
	}
	if got := handler.calls.Load(); got != 1 {
		t.Fatalf("handler calls = %d, want 1", got)
	}

	if err := mgr.Execute(ctx, "01UNKNOWNJOB"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("unknown job error = %v", err)
	}
}

func TestStartRequiresHandler(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)
	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	if err := mgr.Start(context.Background()); err == nil {
		mgr.Stop()
		t.Fatal("expected error without handler")
	}
	summary := mgr.Status(context.Background())
	if summary.Running || summary.Health.Ready {
		t.Fatalf("unexpected status %+v", summary)
	}
}
