package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	UploadsDir string `toml:"uploads_dir"`
	AudioDir   string `toml:"audio_dir"`
	OutputsDir string `toml:"outputs_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
}

// Render contains compositing limits. MaxHeight, Threads, and Preset are
// memory ceilings for constrained hosts rather than quality settings.
type Render struct {
	MaxHeight         int     `toml:"max_height"`
	FPS               int     `toml:"fps"`
	Preset            string  `toml:"preset"`
	Threads           int     `toml:"threads"`
	MinVisibleSeconds float64 `toml:"min_visible_seconds"`
	VideoCodec        string  `toml:"video_codec"`
	AudioCodec        string  `toml:"audio_codec"`
	FFmpegBinary      string  `toml:"ffmpeg_binary"`
	FFprobeBinary     string  `toml:"ffprobe_binary"`
	FCListBinary      string  `toml:"fc_list_binary"`
}

// Upload contains limits applied to incoming media.
type Upload struct {
	MaxBytes          int64    `toml:"max_bytes"`
	AllowedExtensions []string `toml:"allowed_extensions"`
}

// Recognition contains speech recognition settings.
type Recognition struct {
	Model       string `toml:"model"`
	Language    string `toml:"language"`
	UVXBinary   string `toml:"uvx_binary"`
	ComputeType string `toml:"compute_type"`
}

// Translation contains word translation settings.
type Translation struct {
	Enabled       bool `toml:"enabled"`
	MinTokenRunes int  `toml:"min_token_runes"`
	Concurrency   int  `toml:"concurrency"`
	BatchSize     int  `toml:"batch_size"`
}

// LLM contains the chat completion endpoint used by translation.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Workflow contains worker pool sizing and timing.
type Workflow struct {
	WorkerCount        int    `toml:"worker_count"`
	MaxWorkers         int    `toml:"max_workers"`
	QueuePollInterval  int    `toml:"queue_poll_interval"`
	ErrorRetryInterval int    `toml:"error_retry_interval"`
	HeartbeatInterval  int    `toml:"heartbeat_interval"`
	HeartbeatTimeout   int    `toml:"heartbeat_timeout"`
	MaxRenderHours     int    `toml:"max_render_hours"`
	Dispatcher         string `toml:"dispatcher"`
}

// Redis contains the broker and status mirror connection.
type Redis struct {
	Addr           string `toml:"addr"`
	DB             int    `toml:"db"`
	Password       string `toml:"password"`
	StatusTTLHours int    `toml:"status_ttl_hours"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Config encapsulates all configuration values for captioner.
//
// Configuration sections by subsystem:
//   - Paths: media directories, state database, logs, API bind address
//   - Render: compositing limits and external binaries
//   - Upload: size and extension limits
//   - Recognition: WhisperX model settings
//   - Translation + LLM: word translation
//   - Workflow: worker pool size, heartbeat lease, dispatcher
//   - Redis: asynq broker and job status mirror
//   - Logging: format, level, rotation
type Config struct {
	Paths       Paths       `toml:"paths"`
	Render      Render      `toml:"render"`
	Upload      Upload      `toml:"upload"`
	Recognition Recognition `toml:"recognition"`
	Translation Translation `toml:"translation"`
	LLM         LLM         `toml:"llm"`
	Workflow    Workflow    `toml:"workflow"`
	Redis       Redis       `toml:"redis"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("captioner.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the media, state, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.UploadsDir, c.Paths.AudioDir, c.Paths.OutputsDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite file holding transcripts and render jobs.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "captioner.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "captionerd.lock")
}

// PIDPath returns the daemon PID file.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "captionerd.pid")
}

// LogPath returns the rotating daemon log file, or "" when file logging is disabled.
func (c *Config) LogPath() string {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "captioner.log")
}

// UsesAsynq reports whether renders are dispatched through the Redis broker.
func (c *Config) UsesAsynq() bool {
	return c.Workflow.Dispatcher == DispatcherAsynq
}

// RenderTimeout bounds one brokered render. asynq cancels the handler
// context after it; without an explicit value asynq applies 30 minutes.
func (c *Config) RenderTimeout() time.Duration {
	return time.Duration(c.Workflow.MaxRenderHours) * time.Hour
}

// RedisEnabled reports whether a Redis endpoint is configured.
func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Addr) != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
