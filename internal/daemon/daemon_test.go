package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"captioner/internal/api"
	"captioner/internal/broker"
	"captioner/internal/config"
	"captioner/internal/daemon"
	"captioner/internal/ingest"
	"captioner/internal/logging"
	"captioner/internal/media"
	"captioner/internal/media/audio"
	"captioner/internal/queue"
	"captioner/internal/stage"
	"captioner/internal/testsupport"
	"captioner/internal/transcript"
	"captioner/internal/workflow"
)

type fileRenderer struct {
	layout media.Layout
}

func (r fileRenderer) Execute(_ context.Context, job *queue.Job, progress stage.ProgressFunc) (string, error) {
	progress("Rendering")
	if err := os.WriteFile(r.layout.OutputPath(job.Style, job.MediaID), []byte("rendered"), 0o644); err != nil {
		return "", err
	}
	return media.OutputName(job.Style, job.MediaID), nil
}

func (fileRenderer) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("render")
}

type storingIngestor struct {
	store *transcript.Store
}

func (s storingIngestor) Ingest(ctx context.Context, mediaID string) (ingest.Result, error) {
	created, err := s.store.Put(ctx, transcript.Document{
		MediaID:  mediaID,
		Segments: []transcript.Segment{{Word: "hello", Start: 0, End: 0.5, Confidence: 1}},
	})
	if err != nil {
		return ingest.Result{}, err
	}
	doc, err := s.store.Get(ctx, mediaID)
	if err != nil {
		return ingest.Result{}, err
	}
	return ingest.Result{Document: doc, Cached: !created, Audio: audio.Selection{Index: -1}}, nil
}

type fixture struct {
	cfg    *config.Config
	daemon *daemon.Daemon
	base   string
}

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	logger := logging.NewNop()
	db := testsupport.MustOpenDB(t, cfg)
	jobs := queue.NewStore(db)
	transcripts := transcript.NewStore(db)
	layout := media.NewLayout(cfg)

	mgr := workflow.NewManager(cfg, jobs, logger, workflow.WithPollInterval(20*time.Millisecond))
	mgr.ConfigureHandler(fileRenderer{layout: layout})

	d, err := daemon.New(cfg, jobs, logger, mgr, daemon.Services{
		Renders:     api.NewRenderService(jobs, transcripts, layout, broker.NewLocalDispatcher(mgr), logger),
		Transcripts: api.NewTranscriptService(transcripts, nil, logger),
		Media:       api.NewMediaService(layout, storingIngestor{store: transcripts}, logger),
	}, daemon.WithSessionID("test-session"))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func startDaemon(t *testing.T, opts ...testsupport.ConfigOption) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	d := newDaemon(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return fixture{cfg: cfg, daemon: d, base: "http://" + d.APIAddress()}
}

func (f fixture) do(t *testing.T, method, path string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.base+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f fixture) doJSON(t *testing.T, method, path string, payload any) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(data)
	}
	return f.do(t, method, path, body, "application/json")
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func upload(t *testing.T, f fixture, filename string, content []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("video_file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = part.Write(content)
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return f.do(t, http.MethodPost, "/api/media", &buf, writer.FormDataContentType())
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running || status.SessionID != "test-session" {
		t.Fatalf("unexpected status %+v", status)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	other := newDaemon(t, cfg)
	if err := other.Start(ctx); err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock conflict, got %v", err)
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if err := other.Start(ctx); err != nil {
		t.Fatalf("start after release: %v", err)
	}
}

func TestHTTPRenderLifecycle(t *testing.T) {
	f := startDaemon(t)

	resp := upload(t, f, "Holiday Clip.mp4", []byte("fake-video"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	mediaID := decode[api.UploadResponse](t, resp).MediaID

	resp = f.doJSON(t, http.MethodPost, "/api/renders", api.RenderRequest{MediaID: mediaID})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("render before ingest status = %d, want 409", resp.StatusCode)
	}
	if body := decode[api.ErrorResponse](t, resp); body.Kind != "transcript missing" {
		t.Fatalf("error kind = %q", body.Kind)
	}

	resp = f.doJSON(t, http.MethodPost, "/api/media/"+mediaID+"/ingest", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("ingest status = %d", resp.StatusCode)
	}
	resp = f.doJSON(t, http.MethodPost, "/api/media/"+mediaID+"/ingest", nil)
	if resp.StatusCode != http.StatusOK || !decode[api.IngestResponse](t, resp).Cached {
		t.Fatalf("second ingest should be cached, status %d", resp.StatusCode)
	}

	resp = f.doJSON(t, http.MethodGet, "/api/transcripts/"+mediaID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("transcript status = %d", resp.StatusCode)
	}
	if doc := decode[api.Transcript](t, resp); len(doc.Segments) != 1 {
		t.Fatalf("segments = %+v", doc.Segments)
	}

	resp = f.doJSON(t, http.MethodPost, "/api/renders", api.RenderRequest{MediaID: mediaID, Style: "emoji", Animation: "bounce"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit status = %d", resp.StatusCode)
	}
	job := decode[api.Job](t, resp)

	deadline := time.Now().Add(5 * time.Second)
	var status api.JobStatus
	for time.Now().Before(deadline) {
		status = decode[api.JobStatus](t, f.doJSON(t, http.MethodGet, "/api/renders/"+job.ID, nil))
		if api.Terminal(status.State) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if status.State != "succeeded" {
		t.Fatalf("job state = %+v, want succeeded", status)
	}

	resp = f.doJSON(t, http.MethodGet, "/api/renders/"+job.ID+"/result", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("result status = %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), "attachment") {
		t.Fatalf("content disposition = %q", resp.Header.Get("Content-Disposition"))
	}
	data, _ := io.ReadAll(resp.Body)
	if string(data) != "rendered" {
		t.Fatalf("result body = %q", data)
	}

	resp = f.doJSON(t, http.MethodGet, "/api/outputs/"+status.ResultRef, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("output status = %d", resp.StatusCode)
	}

	list := decode[api.JobListResponse](t, f.doJSON(t, http.MethodGet, "/api/renders?state=succeeded", nil))
	if len(list.Jobs) != 1 || list.Jobs[0].ID != job.ID {
		t.Fatalf("list = %+v", list.Jobs)
	}

	daemonStatus := decode[api.DaemonStatus](t, f.doJSON(t, http.MethodGet, "/api/status", nil))
	if !daemonStatus.Running || daemonStatus.Workflow.QueueStats["succeeded"] != 1 {
		t.Fatalf("status = %+v", daemonStatus)
	}
}

func TestHTTPErrorMapping(t *testing.T) {
	f := startDaemon(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown media render", http.MethodPost, "/api/renders", api.RenderRequest{MediaID: "nope.mp4"}, http.StatusBadRequest},
		{"unknown job", http.MethodGet, "/api/renders/01JUNKNOWN", nil, http.StatusNotFound},
		{"unknown transcript", http.MethodGet, "/api/transcripts/nope.mp4", nil, http.StatusNotFound},
		{"unknown output", http.MethodGet, "/api/outputs/render_style-clean_nope.mp4", nil, http.StatusNotFound},
		{"bad state filter", http.MethodGet, "/api/renders?state=paused", nil, http.StatusBadRequest},
		{"translation disabled", http.MethodPost, "/api/transcripts/nope.mp4/translate", api.TranslateRequest{Target: "es"}, http.StatusInternalServerError},
		{"wrong method", http.MethodDelete, "/api/renders", nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.doJSON(t, tt.method, tt.path, tt.body)
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}

	resp := f.do(t, http.MethodPost, "/api/renders", strings.NewReader("{not json"), "application/json")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d", resp.StatusCode)
	}
	resp = upload(t, f, "notes.txt", []byte("x"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad extension status = %d", resp.StatusCode)
	}
}

func TestHTTPAuthToken(t *testing.T) {
	f := startDaemon(t, testsupport.WithAPIToken("s3cret"))

	resp := f.doJSON(t, http.MethodGet, "/api/status", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, f.base+"/api/status", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer s3cret")
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		t.Fatalf("status with token = %d, want 200", authed.StatusCode)
	}
}
