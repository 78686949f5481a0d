package whisperx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	langpkg "captioner/internal/language"
)

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg           Config
	tempRoot      string
	commandRunner CommandRunner
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config) *Service {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.UVXBinary == "" {
		cfg.UVXBinary = UVXCommand
	}
	if cfg.ComputeType == "" {
		cfg.ComputeType = DefaultComputeType
	}
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner CommandRunner) {
	s.commandRunner = runner
}

// WithTempRoot places session work directories under dir.
func (s *Service) WithTempRoot(dir string) {
	s.tempRoot = dir
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	return s.cfg.Model
}

// Binary returns the launcher the service invokes.
func (s *Service) Binary() string {
	return s.cfg.UVXBinary
}

// Session is a single recognition run with its own work directory.
type Session struct {
	svc    *Service
	dir    string
	closed bool
}

// Open acquires a session. Callers must Close it.
func (s *Service) Open(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(s.tempRoot, "captioner-whisperx-*")
	if err != nil {
		return nil, fmt.Errorf("whisperx session: %w", err)
	}
	return &Session{svc: s, dir: dir}, nil
}

// Dir is the session work directory.
func (sess *Session) Dir() string {
	return sess.dir
}

// Close removes the session work directory. It is safe to call twice.
func (sess *Session) Close() error {
	if sess == nil || sess.closed {
		return nil
	}
	sess.closed = true
	return os.RemoveAll(sess.dir)
}

// Transcribe recognizes the speech in a WAV file.
func (sess *Session) Transcribe(ctx context.Context, source string) (Result, error) {
	if sess.closed {
		return Result{}, errors.New("transcribe: session closed")
	}
	if source == "" {
		return Result{}, errors.New("transcribe: source path required")
	}
	args := sess.svc.buildArgs(source, sess.dir)
	if err := sess.svc.run(ctx, sess.svc.cfg.UVXBinary, args...); err != nil {
		return Result{}, fmt.Errorf("whisperx: %w", err)
	}
	baseName := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	segments, err := LoadSegments(filepath.Join(sess.dir, baseName+".json"))
	if err != nil {
		return Result{}, fmt.Errorf("whisperx output: %w", err)
	}
	return buildResult(segments), nil
}

// Transcribe runs one recognition in a fresh session.
func (s *Service) Transcribe(ctx context.Context, source string) (Result, error) {
	sess, err := s.Open(ctx)
	if err != nil {
		return Result{}, err
	}
	defer sess.Close()
	return sess.Transcribe(ctx, source)
}

// run executes a command, using the custom runner if set.
func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, tail(strings.TrimSpace(string(output)), 4096))
	}
	return nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir string) []string {
	args := []string{
		"--index-url", PypiIndexURL,
		"whisperx",
		source,
		"--model", s.cfg.Model,
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--device", CPUDevice,
		"--compute_type", s.cfg.ComputeType,
	}
	if lang := langpkg.ToISO2(s.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}
	return args
}

// Word represents a single word with timing from WhisperX output. Words the
// aligner could not place (often numerals) carry no timing or score.
type Word struct {
	Word  string   `json:"word"`
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
	Score *float64 `json:"score"`
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []Word  `json:"words"`
}

// whisperXPayload is the JSON structure from WhisperX output.
type whisperXPayload struct {
	Segments []Segment `json:"segments"`
}

// LoadSegments loads segments from a WhisperX JSON file.
func LoadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload.Segments, nil
}

// TimedWord is a recognized word with resolved timing and confidence.
type TimedWord struct {
	Word       string
	Start      float64
	End        float64
	Confidence float64
}

// Result is the outcome of one recognition run.
type Result struct {
	Text  string
	Words []TimedWord
}

// buildResult flattens segments into timed words. Missing timings inherit
// the previous word's end (or the segment start); a missing score counts as
// fully confident.
func buildResult(segments []Segment) Result {
	var result Result
	var texts []string
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			texts = append(texts, text)
		}
		cursor := seg.Start
		for _, w := range seg.Words {
			word := strings.TrimSpace(w.Word)
			if word == "" {
				continue
			}
			start := cursor
			if w.Start != nil {
				start = *w.Start
			}
			end := start
			if w.End != nil && *w.End >= start {
				end = *w.End
			}
			confidence := 1.0
			if w.Score != nil && !math.IsNaN(*w.Score) {
				confidence = math.Min(math.Max(*w.Score, 0), 1)
			}
			result.Words = append(result.Words, TimedWord{Word: word, Start: start, End: end, Confidence: confidence})
			cursor = end
		}
	}
	result.Text = strings.Join(texts, " ")
	return result
}

func tail(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[len(s)-limit:]
}
