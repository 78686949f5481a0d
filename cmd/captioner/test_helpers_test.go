package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

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
	if err := os.WriteFile(r.layout.OutputPath(job.Style, job.MediaID), []byte("rendered:"+job.Style), 0o644); err != nil {
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
		FullText: "hello world",
		Segments: []transcript.Segment{
			{Word: "hello", Start: 0, End: 0.5, Confidence: 0.9},
			{Word: "world", Start: 0.5, End: 1, Confidence: 0.8},
		},
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

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	configPath string
	addr       string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	t.Setenv("CAPTIONER_REDIS_ADDR", "")
	t.Setenv("CAPTIONER_API_TOKEN", "")
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	base := testsupport.BaseDir(cfg)
	configPath := filepath.Join(base, "config", "captioner.toml")
	writeTestConfig(t, configPath, cfg)

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
	}, daemon.WithSessionID("cli-session"))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = d.Close()
	})
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		configPath: configPath,
		addr:       d.APIAddress(),
		baseDir:    base,
	}
}

// run executes the CLI against the test daemon.
func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCLI(t, nil, append([]string{"--config", e.configPath, "--addr", e.addr}, args...)...)
}

func runCLI(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeVideo(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("not really a video"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
