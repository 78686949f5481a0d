package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"captioner/internal/compositor"
	"captioner/internal/config"
	"captioner/internal/logging"
	"captioner/internal/media"
	"captioner/internal/policy"
	"captioner/internal/queue"
	"captioner/internal/services"
	"captioner/internal/stage"
	"captioner/internal/transcript"
)

const stageName = "render"

// Compositor is the engine contract the renderer drives.
type Compositor interface {
	Render(ctx context.Context, in compositor.Input, progress compositor.ProgressFunc) (compositor.Result, error)
}

// Renderer executes render jobs.
type Renderer struct {
	cfg         *config.Config
	transcripts *transcript.Store
	layout      media.Layout
	engine      Compositor
	logger      *slog.Logger
}

// NewRenderer builds a renderer around an engine.
func NewRenderer(cfg *config.Config, transcripts *transcript.Store, engine Compositor, logger *slog.Logger) *Renderer {
	return &Renderer{
		cfg:         cfg,
		transcripts: transcripts,
		layout:      media.NewLayout(cfg),
		engine:      engine,
		logger:      logging.NewComponentLogger(logger, "renderer"),
	}
}

// Execute renders job and returns the output file name as its result reference.
func (r *Renderer) Execute(ctx context.Context, job *queue.Job, progress stage.ProgressFunc) (string, error) {
	if progress == nil {
		progress = func(string) {}
	}
	logger := logging.WithContext(ctx, r.logger)

	pol, err := policy.Resolve(policy.Request{
		Style:       job.Style,
		Position:    job.Position,
		Animation:   job.Animation,
		Coordinates: job.Coordinates,
	})
	if err != nil {
		return "", err
	}
	if !r.layout.Exists(job.MediaID) {
		return "", services.Wrap(services.ErrInput, stageName, "locate media",
			fmt.Sprintf("uploaded video %q is missing", job.MediaID), nil)
	}
	audioPath := r.layout.AudioPath(job.MediaID)
	if _, err := os.Stat(audioPath); err != nil {
		return "", services.Wrap(services.ErrInput, stageName, "locate audio",
			"extracted audio missing; ingest the media first", err)
	}

	doc, err := r.transcripts.Get(ctx, job.MediaID)
	if err != nil {
		if errors.Is(err, transcript.ErrNotFound) {
			return "", services.Wrap(services.ErrTranscriptMissing, stageName, "load transcript",
				fmt.Sprintf("no transcript for %q", job.MediaID), err)
		}
		return "", services.Wrap(services.ErrTransient, stageName, "load transcript", "transcript store unavailable", err)
	}
	progress(fmt.Sprintf("Loaded %d caption segments", len(doc.Segments)))
	logger.Debug("transcript snapshot loaded", logging.Int("segments", len(doc.Segments)))

	styleTag := pol.Style.Tag()
	result, err := r.engine.Render(ctx, compositor.Input{
		VideoPath:  r.layout.VideoPath(job.MediaID),
		AudioPath:  audioPath,
		OutputPath: r.layout.OutputPath(styleTag, job.MediaID),
		Segments:   doc.Segments,
		Policy:     pol,
	}, compositor.ProgressFunc(progress))
	if err != nil {
		return "", err
	}
	if result.Style.FellBack {
		progress("Rendered with default style")
	}
	return media.OutputName(styleTag, job.MediaID), nil
}

// HealthCheck reports whether the encoder binaries and directories are usable.
func (r *Renderer) HealthCheck(ctx context.Context) stage.Health {
	if r.cfg == nil {
		return stage.Unhealthy(stageName, "configuration unavailable")
	}
	if strings.TrimSpace(r.cfg.Paths.OutputsDir) == "" {
		return stage.Unhealthy(stageName, "outputs directory not configured")
	}
	if r.engine == nil {
		return stage.Unhealthy(stageName, "compositing engine unavailable")
	}
	for _, binary := range []string{r.cfg.Render.FFmpegBinary, r.cfg.Render.FFprobeBinary} {
		if _, err := exec.LookPath(binary); err != nil {
			return stage.Unhealthy(stageName, fmt.Sprintf("binary %q not found", binary))
		}
	}
	return stage.Healthy(stageName)
}
