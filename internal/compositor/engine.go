package compositor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"captioner/internal/config"
	"captioner/internal/fileutil"
	"captioner/internal/logging"
	"captioner/internal/media"
	"captioner/internal/media/ffprobe"
	"captioner/internal/policy"
	"captioner/internal/services"
	"captioner/internal/transcript"
)

const (
	scriptName    = "captions.ass"
	tempAudioName = "temp-audio.m4a"
	partialName   = "output.partial.mp4"
)

// Settings are the fixed encoder parameters.
type Settings struct {
	MaxHeight     int
	FPS           int
	Preset        string
	Threads       int
	MinVisible    float64
	VideoCodec    string
	AudioCodec    string
	FFmpegBinary  string
	FFprobeBinary string
}

// SettingsFromConfig copies the render section of cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	r := cfg.Render
	return Settings{
		MaxHeight:     r.MaxHeight,
		FPS:           r.FPS,
		Preset:        r.Preset,
		Threads:       r.Threads,
		MinVisible:    r.MinVisibleSeconds,
		VideoCodec:    r.VideoCodec,
		AudioCodec:    r.AudioCodec,
		FFmpegBinary:  r.FFmpegBinary,
		FFprobeBinary: r.FFprobeBinary,
	}
}

// ProbeFunc inspects a media file.
type ProbeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Input is everything one render needs. Segments is a read-only snapshot.
type Input struct {
	VideoPath  string
	AudioPath  string
	OutputPath string
	Segments   []transcript.Segment
	Policy     policy.Policy
}

// Result describes a finished render.
type Result struct {
	OutputPath string
	Geometry   Geometry
	Overlays   int
	Style      policy.StyleSelection
	Elapsed    time.Duration
}

// ProgressFunc receives human-readable progress messages.
type ProgressFunc func(message string)

// Engine renders caption overlays with ffmpeg.
type Engine struct {
	settings Settings
	probe    ProbeFunc
	run      media.CommandRunner
	fonts    policy.FontChecker
	logger   *slog.Logger
	tempRoot string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithProbe overrides media probing.
func WithProbe(probe ProbeFunc) Option {
	return func(e *Engine) {
		if probe != nil {
			e.probe = probe
		}
	}
}

// WithCommandRunner overrides external command execution.
func WithCommandRunner(run media.CommandRunner) Option {
	return func(e *Engine) {
		if run != nil {
			e.run = run
		}
	}
}

// WithFontChecker sets the font availability check. nil disables it.
func WithFontChecker(fonts policy.FontChecker) Option {
	return func(e *Engine) {
		e.fonts = fonts
	}
}

// WithTempRoot places per-render work directories under dir.
func WithTempRoot(dir string) Option {
	return func(e *Engine) {
		e.tempRoot = dir
	}
}

// NewEngine builds an engine with the real ffprobe and ffmpeg.
func NewEngine(settings Settings, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		settings: settings,
		probe:    ffprobe.Inspect,
		run:      media.RunCommand,
		logger:   logging.NewComponentLogger(logger, "compositor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Render burns the captions of in into a new video at in.OutputPath. Every
// failure is reported as services.ErrCompositing.
func (e *Engine) Render(ctx context.Context, in Input, progress ProgressFunc) (Result, error) {
	if progress == nil {
		progress = func(string) {}
	}
	started := time.Now()
	logger := logging.WithContext(ctx, e.logger)

	if in.VideoPath == "" || in.AudioPath == "" || in.OutputPath == "" {
		return Result{}, services.Wrap(services.ErrCompositing, "render", "validate", "video, audio, and output paths are required", nil)
	}
	if e.settings.FPS <= 0 {
		return Result{}, services.Wrap(services.ErrConfiguration, "render", "validate", "fps must be positive", nil)
	}

	progress("Probing source video")
	probe, err := e.probe(ctx, e.settings.FFprobeBinary, in.VideoPath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrCompositing, "render", "probe", "could not read source video", err)
	}
	srcW, srcH, err := probe.FrameSize()
	if err != nil {
		return Result{}, services.Wrap(services.ErrCompositing, "render", "probe", "source has no usable video stream", err)
	}
	geometry, err := OutputGeometry(srcW, srcH, e.settings.MaxHeight)
	if err != nil {
		return Result{}, services.Wrap(services.ErrCompositing, "render", "geometry", "invalid source geometry", err)
	}
	if geometry.Height != srcH {
		logger.Info("downscaling source before compositing",
			logging.String("source", fmt.Sprintf("%dx%d", srcW, srcH)),
			logging.String("output", geometry.String()),
		)
	}

	progress(fmt.Sprintf("Planning %d captions", len(in.Segments)))
	selection := policy.SelectStyle(ctx, in.Policy.Profile(geometry.Width), e.fonts)
	if selection.FellBack {
		logging.WarnWithContext(logger, "caption style unavailable; using default style", "style_fallback",
			logging.String("style", in.Policy.Style.Tag()),
			logging.String("reason", selection.Reason),
			logging.String(logging.FieldErrorHint, "install the font or choose another style"),
		)
	}
	anchor := in.Policy.Anchor(geometry.Width, geometry.Height)
	plan := BuildPlan(in.Segments, anchor, in.Policy.Animation, geometry, selection.Profile, e.settings.FPS, e.settings.MinVisible)

	workDir, err := os.MkdirTemp(e.tempRoot, "captioner-render-*")
	if err != nil {
		return Result{}, services.Wrap(services.ErrCompositing, "render", "workspace", "create work dir", err)
	}
	defer func() {
		if removeErr := os.RemoveAll(workDir); removeErr != nil {
			logger.Warn("failed to remove render work dir", logging.String("path", workDir), logging.Error(removeErr))
		}
	}()

	if err := writeScript(filepath.Join(workDir, scriptName), plan); err != nil {
		return Result{}, services.Wrap(services.ErrCompositing, "render", "write captions", "could not write caption script", err)
	}

	progress("Attaching audio track")
	if err := e.run(ctx, workDir, e.settings.FFmpegBinary, e.audioArgs(in.AudioPath)...); err != nil {
		return Result{}, services.Wrap(services.ErrCompositing, "render", "attach audio", "audio transcode failed", err)
	}

	progress(fmt.Sprintf("Encoding %s at %d fps", geometry, e.settings.FPS))
	if err := os.MkdirAll(filepath.Dir(in.OutputPath), 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrCompositing, "render", "encode", "create output dir", err)
	}
	if err := e.run(ctx, workDir, e.settings.FFmpegBinary, e.encodeArgs(in.VideoPath, partialName, geometry)...); err != nil {
		return Result{}, services.Wrap(services.ErrCompositing, "render", "encode", "ffmpeg encode failed", err)
	}
	if err := fileutil.Move(filepath.Join(workDir, partialName), in.OutputPath); err != nil {
		return Result{}, services.Wrap(services.ErrCompositing, "render", "encode", "could not publish output", err)
	}

	result := Result{
		OutputPath: in.OutputPath,
		Geometry:   geometry,
		Overlays:   len(plan.Overlays),
		Style:      selection,
		Elapsed:    time.Since(started),
	}
	logger.Info("render complete",
		logging.String("output", in.OutputPath),
		logging.String("geometry", geometry.String()),
		logging.Int("overlays", result.Overlays),
		logging.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

func writeScript(path string, plan Plan) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteASS(f, plan); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (e *Engine) audioArgs(audioPath string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", audioPath,
		"-vn",
		"-c:a", e.settings.AudioCodec,
		"-threads", strconv.Itoa(e.settings.Threads),
		tempAudioName,
	}
}

func (e *Engine) encodeArgs(videoPath, outputPath string, geometry Geometry) []string {
	fps := strconv.Itoa(e.settings.FPS)
	filter := fmt.Sprintf("fps=%s,scale=%d:%d,ass=%s", fps, geometry.Width, geometry.Height, scriptName)
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", videoPath,
		"-i", tempAudioName,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-vf", filter,
		"-filter_threads", "1",
		"-r", fps,
		"-c:v", e.settings.VideoCodec,
		"-preset", e.settings.Preset,
		"-threads", strconv.Itoa(e.settings.Threads),
		"-pix_fmt", "yuv420p",
		"-c:a", "copy",
		"-movflags", "+faststart",
		"-f", "mp4",
		outputPath,
	}
}
