package config

const (
	defaultConfigPath               = "~/.config/captioner/config.toml"
	defaultUploadsDir               = "~/.local/share/captioner/media/uploads"
	defaultAudioDir                 = "~/.local/share/captioner/media/audio"
	defaultOutputsDir               = "~/.local/share/captioner/media/outputs"
	defaultStateDir                 = "~/.local/share/captioner/state"
	defaultLogDir                   = "~/.local/share/captioner/logs"
	defaultAPIBind                  = "127.0.0.1:7491"
	defaultRenderMaxHeight          = 480
	defaultRenderFPS                = 24
	defaultRenderPreset             = "ultrafast"
	defaultRenderThreads            = 1
	defaultRenderMinVisibleSeconds  = 0.1
	defaultVideoCodec               = "libx264"
	defaultAudioCodec               = "aac"
	defaultFFmpegBinary             = "ffmpeg"
	defaultFFprobeBinary            = "ffprobe"
	defaultFCListBinary             = "fc-list"
	defaultUploadMaxBytes           = 50 * 1024 * 1024
	defaultRecognitionModel         = "tiny"
	defaultUVXBinary                = "uvx"
	defaultComputeType              = "float32"
	defaultTranslationMinTokenRunes = 2
	defaultTranslationConcurrency   = 4
	defaultTranslationBatchSize     = 64
	defaultLLMBaseURL               = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel                 = "google/gemini-3-flash-preview"
	defaultLLMReferer               = "https://github.com/captioner/captioner"
	defaultLLMTitle                 = "Captioner Translator"
	defaultLLMTimeoutSeconds        = 60
	defaultWorkerCount              = 2
	defaultMaxWorkers               = 4
	defaultQueuePollInterval        = 5
	defaultErrorRetryInterval       = 10
	defaultHeartbeatInterval        = 10
	defaultHeartbeatTimeout         = 60
	defaultMaxRenderHours           = 12
	defaultRedisStatusTTLHours      = 24
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultLogMaxSizeMB             = 50
	defaultLogMaxBackups            = 3
	defaultLogMaxAgeDays            = 14
)

// Dispatcher names accepted by workflow.dispatcher.
const (
	DispatcherLocal = "local"
	DispatcherAsynq = "asynq"
)

var defaultAllowedExtensions = []string{"mp4", "mov", "avi"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			UploadsDir: defaultUploadsDir,
			AudioDir:   defaultAudioDir,
			OutputsDir: defaultOutputsDir,
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Render: Render{
			MaxHeight:         defaultRenderMaxHeight,
			FPS:               defaultRenderFPS,
			Preset:            defaultRenderPreset,
			Threads:           defaultRenderThreads,
			MinVisibleSeconds: defaultRenderMinVisibleSeconds,
			VideoCodec:        defaultVideoCodec,
			AudioCodec:        defaultAudioCodec,
			FFmpegBinary:      defaultFFmpegBinary,
			FFprobeBinary:     defaultFFprobeBinary,
			FCListBinary:      defaultFCListBinary,
		},
		Upload: Upload{
			MaxBytes:          defaultUploadMaxBytes,
			AllowedExtensions: append([]string(nil), defaultAllowedExtensions...),
		},
		Recognition: Recognition{
			Model:       defaultRecognitionModel,
			UVXBinary:   defaultUVXBinary,
			ComputeType: defaultComputeType,
		},
		Translation: Translation{
			Enabled:       true,
			MinTokenRunes: defaultTranslationMinTokenRunes,
			Concurrency:   defaultTranslationConcurrency,
			BatchSize:     defaultTranslationBatchSize,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Workflow: Workflow{
			WorkerCount:        defaultWorkerCount,
			MaxWorkers:         defaultMaxWorkers,
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			MaxRenderHours:     defaultMaxRenderHours,
			Dispatcher:         DispatcherLocal,
		},
		Redis: Redis{
			StatusTTLHours: defaultRedisStatusTTLHours,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
			Compress:   true,
		},
	}
}
