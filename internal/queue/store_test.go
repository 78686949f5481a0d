package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"captioner/internal/policy"
	"captioner/internal/queue"
	"captioner/internal/testsupport"
)

func TestSubmitCreatesPendingJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)
	ctx := context.Background()

	job, err := store.Submit(ctx, queue.Request{
		MediaID:     "abcd1234_clip.mp4",
		Style:       "style-ig-glow",
		Position:    "pos-top",
		Animation:   "anim-bounce",
		Coordinates: &policy.Coordinates{X: 12, Y: 34},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.ID == "" || job.State != queue.StatePending {
		t.Fatalf("unexpected job %+v", job)
	}

	fetched, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Style != "style-ig-glow" || fetched.Coordinates == nil || fetched.Coordinates.Y != 34 {
		t.Fatalf("unexpected fetched job %+v", fetched)
	}

	other, _ := store.Submit(ctx, queue.Request{MediaID: "abcd1234_clip.mp4", Style: "style-clean"})
	if other.ID == job.ID {
		t.Fatal("job ids must be unique")
	}
}

func TestPollUnknownJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)
	if _, err := store.Poll(context.Background(), "missing"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLifecycleSucceeded(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)
	ctx := context.Background()
	job := testsupport.SubmitJob(t, store, "m.mp4")

	if err := store.ReportProgress(ctx, job.ID, "w1", "too early"); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("progress on pending job should fail, got %v", err)
	}
	if err := store.Assign(ctx, job.ID, "w1", "Starting"); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := store.Assign(ctx, job.ID, "w2", "Starting"); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("second assign should fail, got %v", err)
	}
	if err := store.ReportProgress(ctx, job.ID, "w2", "intruder"); !errors.Is(err, queue.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := store.ReportProgress(ctx, job.ID, "w1", "Encoding"); err != nil {
		t.Fatalf("ReportProgress: %v", err)
	}
	status, _ := store.Poll(ctx, job.ID)
	if status.State != queue.StateProcessing || status.Message != "Encoding" {
		t.Fatalf("unexpected status %+v", status)
	}
	if err := store.Complete(ctx, job.ID, "w1", "render_style-clean_m.mp4", "Done"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	for name, write := range map[string]func() error{
		"fail":     func() error { return store.Fail(ctx, job.ID, "w1", "x", "late failure") },
		"complete": func() error { return store.Complete(ctx, job.ID, "w1", "other", "again") },
		"progress": func() error { return store.ReportProgress(ctx, job.ID, "w1", "again") },
		"assign":   func() error { return store.Assign(ctx, job.ID, "w1", "again") },
	} {
		if err := write(); !errors.Is(err, queue.ErrInvalidTransition) {
			t.Fatalf("%s on terminal job: expected ErrInvalidTransition, got %v", name, err)
		}
	}
	status, _ = store.Poll(ctx, job.ID)
	if status.State != queue.StateSucceeded || status.ResultRef != "render_style-clean_m.mp4" || status.ErrorDetail != "" {
		t.Fatalf("terminal job was modified: %+v", status)
	}
}

func TestLifecycleFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)
	ctx := context.Background()
	job := testsupport.SubmitJob(t, store, "m.mp4")

	if err := store.Fail(ctx, job.ID, "w1", "x", "not yet"); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("fail on pending job should be rejected, got %v", err)
	}
	claimed, err := store.ClaimNext(ctx, "w1", "Starting")
	if err != nil || claimed == nil || claimed.ID != job.ID {
		t.Fatalf("ClaimNext: %+v %v", claimed, err)
	}
	if err := store.Fail(ctx, job.ID, "w1", "compositing failure", "ffmpeg exited 1"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if err := store.Complete(ctx, job.ID, "w1", "x", "Done"); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("complete after fail should be rejected, got %v", err)
	}
	status, _ := store.Poll(ctx, job.ID)
	if status.State != queue.StateFailed || status.ErrorDetail != "ffmpeg exited 1" || status.ErrorKind != "compositing failure" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestClaimNextIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)
	ctx := context.Background()
	const jobs = 6
	for i := 0; i < jobs; i++ {
		testsupport.SubmitJob(t, store, "m.mp4")
	}

	var (
		mu      sync.Mutex
		claimed = make(map[string]string)
		wg      sync.WaitGroup
	)
	for w := 0; w < 4; w++ {
		owner := string(rune('a' + w))
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := store.ClaimNext(ctx, owner, "Starting")
				if err != nil {
					t.Errorf("ClaimNext: %v", err)
					return
				}
				if job == nil {
					return
				}
				mu.Lock()
				if prev, dup := claimed[job.ID]; dup {
					t.Errorf("job %s claimed by %s and %s", job.ID, prev, owner)
				}
				claimed[job.ID] = owner
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(claimed) != jobs {
		t.Fatalf("expected %d claimed jobs, got %d", jobs, len(claimed))
	}
}

func TestReclaimStaleAndOrphaned(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)
	ctx := context.Background()

	stale := testsupport.SubmitJob(t, store, "a.mp4")
	pending := testsupport.SubmitJob(t, store, "b.mp4")
	if err := store.Assign(ctx, stale.ID, "w1", "Starting"); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	ids, err := store.ReclaimStale(ctx, time.Now().Add(-time.Hour))
	if err != nil || len(ids) != 0 {
		t.Fatalf("fresh heartbeat must not be reclaimed: %v %v", ids, err)
	}
	ids, err = store.ReclaimStale(ctx, time.Now().Add(time.Minute))
	if err != nil || len(ids) != 1 || ids[0] != stale.ID {
		t.Fatalf("expected stale job reclaimed: %v %v", ids, err)
	}
	status, _ := store.Poll(ctx, stale.ID)
	if status.State != queue.StateFailed || status.ErrorDetail != queue.HeartbeatExpiredReason {
		t.Fatalf("unexpected status %+v", status)
	}
	if err := store.Complete(ctx, stale.ID, "w1", "late", "Done"); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("late completion must be rejected, got %v", err)
	}

	if err := store.Assign(ctx, pending.ID, "w2", "Starting"); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	ids, err = store.FailOrphaned(ctx)
	if err != nil || len(ids) != 1 || ids[0] != pending.ID {
		t.Fatalf("FailOrphaned: %v %v", ids, err)
	}
	health, err := store.Health(ctx)
	if err != nil || health.Failed != 2 || health.Total != 2 {
		t.Fatalf("unexpected health %+v %v", health, err)
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	states []queue.State
}

func (r *recordingObserver) JobChanged(_ context.Context, job *queue.Job) {
	r.mu.Lock()
	r.states = append(r.states, job.State)
	r.mu.Unlock()
}

func TestObserverSeesMonotonicStates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)
	obs := &recordingObserver{}
	store.AddObserver(obs)
	ctx := context.Background()

	job := testsupport.SubmitJob(t, store, "m.mp4")
	_ = store.Assign(ctx, job.ID, "w", "Starting")
	_ = store.ReportProgress(ctx, job.ID, "w", "Encoding")
	_ = store.Complete(ctx, job.ID, "w", "out.mp4", "Done")

	want := []queue.State{queue.StatePending, queue.StateProcessing, queue.StateProcessing, queue.StateSucceeded}
	if len(obs.states) != len(want) {
		t.Fatalf("unexpected notifications %v", obs.states)
	}
	for i := range want {
		if obs.states[i] != want[i] {
			t.Fatalf("notification %d = %s, want %s", i, obs.states[i], want[i])
		}
	}
}

func TestListFilters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)
	ctx := context.Background()
	first := testsupport.SubmitJob(t, store, "a.mp4")
	testsupport.SubmitJob(t, store, "b.mp4")
	_ = store.Assign(ctx, first.ID, "w", "Starting")

	all, err := store.List(ctx, queue.ListFilter{})
	if err != nil || len(all) != 2 {
		t.Fatalf("List all: %d %v", len(all), err)
	}
	if all[0].MediaID != "b.mp4" {
		t.Fatalf("expected newest first, got %s", all[0].MediaID)
	}
	processing, _ := store.List(ctx, queue.ListFilter{States: []queue.State{queue.StateProcessing}})
	if len(processing) != 1 || processing[0].ID != first.ID {
		t.Fatalf("unexpected processing list %+v", processing)
	}
	byMedia, _ := store.List(ctx, queue.ListFilter{MediaID: "b.mp4", Limit: 5})
	if len(byMedia) != 1 {
		t.Fatalf("unexpected media filter result %d", len(byMedia))
	}
}
