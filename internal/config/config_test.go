package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"captioner/internal/config"
)

func TestLoadDefaultConfigExpandsPathsAndReadsEnv(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("CAPTIONER_LLM_API_KEY", "llm-key")
	t.Setenv("CAPTIONER_REDIS_ADDR", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantUploads := filepath.Join(tempHome, ".local", "share", "captioner", "media", "uploads")
	if cfg.Paths.UploadsDir != wantUploads {
		t.Fatalf("unexpected uploads dir: got %q want %q", cfg.Paths.UploadsDir, wantUploads)
	}
	if cfg.DatabasePath() != filepath.Join(tempHome, ".local", "share", "captioner", "state", "captioner.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.LLM.APIKey != "llm-key" {
		t.Fatalf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Render.MaxHeight != 480 || cfg.Render.FPS != 24 || cfg.Render.Threads != 1 {
		t.Fatalf("unexpected render defaults: %+v", cfg.Render)
	}
	if cfg.Render.Preset != "ultrafast" {
		t.Fatalf("unexpected preset %q", cfg.Render.Preset)
	}
	if cfg.Render.MinVisibleSeconds != 0.1 {
		t.Fatalf("unexpected min visible seconds %v", cfg.Render.MinVisibleSeconds)
	}
	if cfg.Workflow.WorkerCount != 2 {
		t.Fatalf("unexpected worker count %d", cfg.Workflow.WorkerCount)
	}
	if cfg.UsesAsynq() {
		t.Fatal("expected local dispatcher by default")
	}
	if cfg.RedisEnabled() {
		t.Fatal("expected redis disabled by default")
	}
	if cfg.Recognition.Model != "tiny" {
		t.Fatalf("unexpected recognition model %q", cfg.Recognition.Model)
	}
	if got := strings.Join(cfg.Upload.AllowedExtensions, ","); got != "mp4,mov,avi" {
		t.Fatalf("unexpected allowed extensions %q", got)
	}
}

func TestLoadCustomConfigNormalizesValues(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("CAPTIONER_REDIS_ADDR", "")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[paths]
uploads_dir = "~/up"
log_dir = ""

[upload]
allowed_extensions = [".MP4", "mov", "mov", " "]

[workflow]
worker_count = 3
dispatcher = "ASYNQ"

[redis]
addr = "127.0.0.1:6379"

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config to be read from %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Paths.UploadsDir != filepath.Join(tempHome, "up") {
		t.Fatalf("unexpected uploads dir %q", cfg.Paths.UploadsDir)
	}
	if cfg.LogPath() != "" {
		t.Fatalf("expected file logging disabled, got %q", cfg.LogPath())
	}
	if got := strings.Join(cfg.Upload.AllowedExtensions, ","); got != "mp4,mov" {
		t.Fatalf("unexpected allowed extensions %q", got)
	}
	if !cfg.UsesAsynq() {
		t.Fatal("expected asynq dispatcher")
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging settings %+v", cfg.Logging)
	}
}

func TestValidateRejectsInvalidWorkflow(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "worker count above cap",
			mutate: func(c *config.Config) { c.Workflow.WorkerCount = 9 },
			want:   "exceeds workflow.max_workers",
		},
		{
			name:   "zero workers",
			mutate: func(c *config.Config) { c.Workflow.WorkerCount = 0 },
			want:   "worker_count must be at least 1",
		},
		{
			name:   "heartbeat timeout too small",
			mutate: func(c *config.Config) { c.Workflow.HeartbeatTimeout = c.Workflow.HeartbeatInterval },
			want:   "heartbeat_timeout must be greater",
		},
		{
			name:   "zero render bound",
			mutate: func(c *config.Config) { c.Workflow.MaxRenderHours = 0 },
			want:   "workflow.max_render_hours must be positive",
		},
		{
			name:   "asynq without redis",
			mutate: func(c *config.Config) { c.Workflow.Dispatcher = config.DispatcherAsynq },
			want:   "redis.addr must be set",
		},
		{
			name:   "unknown dispatcher",
			mutate: func(c *config.Config) { c.Workflow.Dispatcher = "kafka" },
			want:   "unsupported value",
		},
		{
			name:   "non positive fps",
			mutate: func(c *config.Config) { c.Render.FPS = 0 },
			want:   "render.fps",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateSampleProducesParsableConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CAPTIONER_REDIS_ADDR", "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if decoded.Render.MaxHeight != 480 {
		t.Fatalf("unexpected sample max height %d", decoded.Render.MaxHeight)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config does not validate: %v", err)
	}
}
