package broker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"captioner/internal/broker"
	"captioner/internal/logging"
	"captioner/internal/queue"
	"captioner/internal/testsupport"
)

func TestRenderTaskRoundTrip(t *testing.T) {
	task, err := broker.NewRenderTask(" 01HZXJOB ", time.Hour)
	if err != nil {
		t.Fatalf("NewRenderTask: %v", err)
	}
	if task.Type() != broker.TaskRenderExecute {
		t.Fatalf("task type = %q", task.Type())
	}
	payload, err := broker.ParseRenderPayload(task.Payload())
	if err != nil {
		t.Fatalf("ParseRenderPayload: %v", err)
	}
	if payload.JobID != "01HZXJOB" {
		t.Fatalf("job id = %q", payload.JobID)
	}

	if _, err := broker.NewRenderTask("  ", time.Hour); err == nil {
		t.Fatal("expected error for empty job id")
	}
	for _, body := range []string{`{`, `{"job_id":""}`} {
		if _, err := broker.ParseRenderPayload([]byte(body)); err == nil {
			t.Fatalf("expected error for %s", body)
		}
	}
}

type recordingExecutor struct {
	ids []string
	err error
}

func (r *recordingExecutor) Execute(_ context.Context, id string) error {
	r.ids = append(r.ids, id)
	return r.err
}

func TestRenderTaskCarriesExplicitTimeout(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if cfg.RenderTimeout() != 12*time.Hour {
		t.Fatalf("default render timeout = %s", cfg.RenderTimeout())
	}

	opts := broker.RenderTaskOptions("01JOB", cfg.RenderTimeout())
	found := map[asynq.OptionType]any{}
	for _, opt := range opts {
		found[opt.Type()] = opt.Value()
	}
	if got, ok := found[asynq.TimeoutOpt]; !ok || got != 12*time.Hour {
		t.Fatalf("timeout option = %v (present %v), want 12h", got, ok)
	}
	if got := found[asynq.MaxRetryOpt]; got != 0 {
		t.Fatalf("max retry option = %v, want 0", got)
	}
	if got := found[asynq.TaskIDOpt]; got != "01JOB" {
		t.Fatalf("task id option = %v", got)
	}

	if _, err := broker.NewRenderTask("01JOB", 0); err == nil {
		t.Fatal("expected error for zero timeout")
	}
}

func TestProcessTaskDelegatesToExecutor(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Redis.Addr = "127.0.0.1:1"
	exec := &recordingExecutor{}
	server := broker.NewServer(cfg, exec, logging.NewNop())

	task, err := broker.NewRenderTask("01JOB", time.Hour)
	if err != nil {
		t.Fatalf("NewRenderTask: %v", err)
	}
	if err := server.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if len(exec.ids) != 1 || exec.ids[0] != "01JOB" {
		t.Fatalf("executor ids = %v", exec.ids)
	}

	exec.err = queue.ErrNotFound
	err = server.ProcessTask(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) || !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("error = %v", err)
	}

	bad := asynq.NewTask(broker.TaskRenderExecute, []byte(`not json`))
	if err := server.ProcessTask(context.Background(), bad); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("malformed payload error = %v", err)
	}
}

type countingNotifier struct{ n int }

func (c *countingNotifier) Notify() { c.n++ }

func TestLocalDispatcherWakesWorkers(t *testing.T) {
	n := &countingNotifier{}
	d := broker.NewLocalDispatcher(n)
	for range 3 {
		if err := d.Dispatch(context.Background(), "id"); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}
	if n.n != 3 {
		t.Fatalf("notify count = %d", n.n)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestStatusFields(t *testing.T) {
	job := &queue.Job{
		ID:              "01JOB",
		MediaID:         "abcd1234_clip.mp4",
		Style:           "style-clean",
		State:           queue.StateSucceeded,
		ProgressMessage: "Completed",
		ResultRef:       "render_style-clean_abcd1234_clip.mp4",
		UpdatedAt:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	fields := broker.StatusFields(job)
	if fields["state"] != "succeeded" || fields["result"] != job.ResultRef || fields["message"] != "Completed" {
		t.Fatalf("fields = %v", fields)
	}
	if fields["updated_at"] != "2026-01-02T03:04:05.000000000Z" {
		t.Fatalf("updated_at = %v", fields["updated_at"])
	}
	if broker.StatusKey(job.ID) != "captioner:job:01JOB" {
		t.Fatalf("key = %q", broker.StatusKey(job.ID))
	}
}

func TestStatusMirrorToleratesUnreachableRedis(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Redis.Addr = "127.0.0.1:1"
	client := broker.NewRedisClient(cfg)
	mirror := broker.NewStatusMirror(client, time.Hour, logging.NewNop())
	t.Cleanup(func() { _ = mirror.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	mirror.JobChanged(ctx, &queue.Job{ID: "01JOB", State: queue.StateFailed})
	mirror.JobChanged(ctx, nil)
	if err := mirror.Ping(ctx); err == nil {
		t.Fatal("expected ping error against closed port")
	}
}
