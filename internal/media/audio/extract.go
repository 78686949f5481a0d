package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"captioner/internal/media"
	"captioner/internal/media/ffprobe"
	"captioner/internal/services"
)

// Recognition input format.
const (
	SampleRate = 16000
	Channels   = 1
)

// ProbeFunc inspects a media file.
type ProbeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Extractor pulls the speech track out of a video.
type Extractor struct {
	FFmpegBinary  string
	FFprobeBinary string
	LanguageHint  string
	Probe         ProbeFunc
	Run           media.CommandRunner
}

// NewExtractor wires the real ffprobe and command runner.
func NewExtractor(ffmpegBinary, ffprobeBinary, languageHint string) *Extractor {
	return &Extractor{
		FFmpegBinary:  ffmpegBinary,
		FFprobeBinary: ffprobeBinary,
		LanguageHint:  languageHint,
		Probe:         ffprobe.Inspect,
		Run:           media.RunCommand,
	}
}

// Extract writes the selected audio stream of src to dest as WAV. A video
// without any audio stream is an extraction failure.
func (e *Extractor) Extract(ctx context.Context, src, dest string) (Selection, error) {
	probe, err := e.Probe(ctx, e.FFprobeBinary, src)
	if err != nil {
		return Selection{Index: -1}, services.Wrap(services.ErrExtraction, "ingest", "probe", "could not read media", err)
	}
	selection := Select(probe.Streams, e.LanguageHint)
	if !selection.Found() {
		return selection, services.Wrap(services.ErrExtraction, "ingest", "select audio", "video has no sound", nil)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return selection, fmt.Errorf("create audio dir: %w", err)
	}
	if err := e.Run(ctx, "", e.FFmpegBinary, ExtractArgs(src, dest, selection.Index)...); err != nil {
		_ = os.Remove(dest)
		return selection, services.Wrap(services.ErrExtraction, "ingest", "extract audio", "ffmpeg failed", err)
	}
	return selection, nil
}

// ExtractArgs builds the ffmpeg arguments for a mono 16 kHz PCM extraction.
func ExtractArgs(src, dest string, streamIndex int) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", src,
		"-map", "0:" + strconv.Itoa(streamIndex),
		"-vn",
		"-sn",
		"-dn",
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		"-c:a", "pcm_s16le",
		dest,
	}
}
