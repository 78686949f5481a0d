package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"captioner/internal/api"
	"captioner/internal/broker"
	"captioner/internal/compositor"
	"captioner/internal/config"
	"captioner/internal/daemon"
	"captioner/internal/database"
	"captioner/internal/deps"
	"captioner/internal/ingest"
	"captioner/internal/logging"
	"captioner/internal/media"
	"captioner/internal/media/audio"
	"captioner/internal/preflight"
	"captioner/internal/queue"
	"captioner/internal/render"
	"captioner/internal/services/llm"
	"captioner/internal/services/whisperx"
	"captioner/internal/transcript"
	"captioner/internal/translate"
	"captioner/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the captioner daemon and blocks until ctx is cancelled or a
// termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:    level,
		Format:   cfg.Logging.Format,
		FilePath: cfg.LogPath(),
		Rotation: logging.Rotation{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	sessionID := uuid.NewString()
	logDependencySnapshot(logger, cfg)
	for _, result := range preflight.Failed(preflight.RunLocal(cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "renders may fail until this is resolved"),
		)
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	db, err := database.Open(cfg.DatabasePath())
	if err != nil {
		logger.Error("open database", logging.Error(err))
		return err
	}
	defer db.Close()

	jobs := queue.NewStore(db)
	jobs.SetLogger(logger)
	transcripts := transcript.NewStore(db)
	layout := media.NewLayout(cfg)

	var closers []daemon.Option
	if cfg.RedisEnabled() {
		ttl := time.Duration(cfg.Redis.StatusTTLHours) * time.Hour
		mirror := broker.NewStatusMirror(broker.NewRedisClient(cfg), ttl, logger)
		pingCtx, pingCancel := context.WithTimeout(signalCtx, 3*time.Second)
		if err := mirror.Ping(pingCtx); err != nil {
			logging.WarnWithContext(logger, "redis status mirror unreachable", "redis_unreachable",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check redis.addr; job status will not be mirrored"),
			)
		}
		pingCancel()
		jobs.AddObserver(mirror)
		closers = append(closers, daemon.WithCloser(mirror.Close))
	}

	engine := compositor.NewEngine(compositor.SettingsFromConfig(cfg), logger,
		compositor.WithFontChecker(compositor.NewFontconfigChecker(cfg.Render.FCListBinary)))
	renderer := render.NewRenderer(cfg, transcripts, engine, logger)

	managerOpts := []workflow.ManagerOption{workflow.WithSessionID(sessionID)}
	if cfg.UsesAsynq() {
		managerOpts = append(managerOpts, workflow.WithExternalDispatch())
	}
	manager := workflow.NewManager(cfg, jobs, logger, managerOpts...)
	manager.ConfigureHandler(renderer)

	var dispatcher interface {
		api.Dispatcher
		Close() error
	}
	var asynqServer *broker.Server
	if cfg.UsesAsynq() {
		dispatcher = broker.NewAsynqDispatcher(cfg, logger)
		asynqServer = broker.NewServer(cfg, manager, logger)
	} else {
		dispatcher = broker.NewLocalDispatcher(manager)
	}
	closers = append(closers, daemon.WithCloser(dispatcher.Close))

	recognizer := whisperx.NewService(whisperx.Config{
		Model:       cfg.Recognition.Model,
		Language:    cfg.Recognition.Language,
		UVXBinary:   cfg.Recognition.UVXBinary,
		ComputeType: cfg.Recognition.ComputeType,
	})
	extractor := audio.NewExtractor(cfg.Render.FFmpegBinary, cfg.Render.FFprobeBinary, cfg.Recognition.Language)
	ingestor := ingest.NewService(layout, transcripts, extractor, recognizer, logger)

	var translator api.Translator
	if cfg.Translation.Enabled {
		client := llm.NewClient(llm.FromSettings(cfg.LLM))
		if client.Configured() {
			translator = translate.NewEngine(client, translate.SettingsFromConfig(cfg), logger)
		} else {
			logging.WarnWithContext(logger, "translation enabled without llm api key", "translation_disabled",
				logging.String(logging.FieldErrorHint, "set llm.api_key or CAPTIONER_LLM_API_KEY"),
			)
		}
	}

	svc := daemon.Services{
		Renders:     api.NewRenderService(jobs, transcripts, layout, dispatcher, logger),
		Transcripts: api.NewTranscriptService(transcripts, translator, logger),
		Media:       api.NewMediaService(layout, ingestor, logger),
	}
	daemonOpts := append([]daemon.Option{
		daemon.WithSessionID(sessionID),
		daemon.WithDependencyCheck(func(ctx context.Context) []deps.Status {
			return preflight.CheckSystemDeps(ctx, cfg)
		}),
	}, closers...)

	d, err := daemon.New(cfg, jobs, logger, manager, svc, daemonOpts...)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check the lock file and api bind address"),
		)
		return err
	}

	if asynqServer != nil {
		if err := asynqServer.Start(); err != nil {
			return fmt.Errorf("start asynq server: %w", err)
		}
		defer asynqServer.Shutdown()
	}

	logger.Info("captioner daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("session_id", sessionID),
		logging.String("api_address", d.APIAddress()),
		logging.String("dispatcher", cfg.Workflow.Dispatcher),
	)

	<-signalCtx.Done()
	logger.Info("captioner daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_stopping"),
	)
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("llm_key_present", strings.TrimSpace(cfg.LLM.APIKey) != ""),
		logging.Bool("translation_enabled", cfg.Translation.Enabled),
		logging.String("recognition_model", cfg.Recognition.Model),
		logging.String("dispatcher", cfg.Workflow.Dispatcher),
	}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		key := strings.ToLower(strings.ReplaceAll(status.Name, " ", "_"))
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
