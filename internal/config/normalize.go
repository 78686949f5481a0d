package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRender()
	c.normalizeUpload()
	c.normalizeRecognition()
	c.normalizeLLM()
	c.normalizeWorkflow()
	c.normalizeRedis()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		key   string
		value *string
		def   string
	}{
		{"paths.uploads_dir", &c.Paths.UploadsDir, defaultUploadsDir},
		{"paths.audio_dir", &c.Paths.AudioDir, defaultAudioDir},
		{"paths.outputs_dir", &c.Paths.OutputsDir, defaultOutputsDir},
		{"paths.state_dir", &c.Paths.StateDir, defaultStateDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.def
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}
	// An empty log_dir disables file logging.
	logDir, err := expandPath(strings.TrimSpace(c.Paths.LogDir))
	if err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.LogDir = logDir

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("CAPTIONER_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeRender() {
	c.Render.Preset = strings.ToLower(strings.TrimSpace(c.Render.Preset))
	if c.Render.Preset == "" {
		c.Render.Preset = defaultRenderPreset
	}
	c.Render.VideoCodec = defaultString(c.Render.VideoCodec, defaultVideoCodec)
	c.Render.AudioCodec = defaultString(c.Render.AudioCodec, defaultAudioCodec)
	c.Render.FFmpegBinary = defaultString(c.Render.FFmpegBinary, defaultFFmpegBinary)
	c.Render.FFprobeBinary = defaultString(c.Render.FFprobeBinary, defaultFFprobeBinary)
	c.Render.FCListBinary = defaultString(c.Render.FCListBinary, defaultFCListBinary)
}

func (c *Config) normalizeUpload() {
	seen := make(map[string]struct{}, len(c.Upload.AllowedExtensions))
	exts := make([]string, 0, len(c.Upload.AllowedExtensions))
	for _, ext := range c.Upload.AllowedExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		exts = append(exts, defaultAllowedExtensions...)
	}
	c.Upload.AllowedExtensions = exts
}

func (c *Config) normalizeRecognition() {
	c.Recognition.Model = defaultString(c.Recognition.Model, defaultRecognitionModel)
	c.Recognition.UVXBinary = defaultString(c.Recognition.UVXBinary, defaultUVXBinary)
	c.Recognition.ComputeType = defaultString(c.Recognition.ComputeType, defaultComputeType)
	c.Recognition.Language = strings.ToLower(strings.TrimSpace(c.Recognition.Language))
}

func (c *Config) normalizeLLM() {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		for _, key := range []string{"CAPTIONER_LLM_API_KEY", "OPENROUTER_API_KEY"} {
			if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
				c.LLM.APIKey = strings.TrimSpace(value)
				break
			}
		}
	}
	c.LLM.BaseURL = defaultString(c.LLM.BaseURL, defaultLLMBaseURL)
	c.LLM.Model = defaultString(c.LLM.Model, defaultLLMModel)
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeWorkflow() {
	c.Workflow.Dispatcher = strings.ToLower(strings.TrimSpace(c.Workflow.Dispatcher))
	if c.Workflow.Dispatcher == "" {
		c.Workflow.Dispatcher = DispatcherLocal
	}
	if c.Workflow.MaxWorkers <= 0 {
		c.Workflow.MaxWorkers = defaultMaxWorkers
	}
}

func (c *Config) normalizeRedis() {
	if strings.TrimSpace(c.Redis.Addr) == "" {
		if value, ok := os.LookupEnv("CAPTIONER_REDIS_ADDR"); ok {
			c.Redis.Addr = value
		}
	}
	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)
	if c.Redis.StatusTTLHours <= 0 {
		c.Redis.StatusTTLHours = defaultRedisStatusTTLHours
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
	if c.Logging.MaxAgeDays < 0 {
		c.Logging.MaxAgeDays = 0
	}
}

func defaultString(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
