package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/singleflight"

	"captioner/internal/logging"
	"captioner/internal/media"
	"captioner/internal/media/audio"
	"captioner/internal/services"
	"captioner/internal/services/whisperx"
	"captioner/internal/transcript"
)

const stageName = "ingest"

// AudioExtractor writes a video's speech track to a WAV file.
type AudioExtractor interface {
	Extract(ctx context.Context, src, dest string) (audio.Selection, error)
}

// Recognizer transcribes a WAV file.
type Recognizer interface {
	Transcribe(ctx context.Context, wavPath string) (whisperx.Result, error)
}

// Result is the outcome of an ingestion call.
type Result struct {
	Document *transcript.Document
	Cached   bool
	Audio    audio.Selection
}

// Service performs idempotent ingestion.
type Service struct {
	layout      media.Layout
	transcripts *transcript.Store
	extractor   AudioExtractor
	recognizer  Recognizer
	logger      *slog.Logger
	flights     singleflight.Group
}

// NewService wires the ingestion collaborators.
func NewService(layout media.Layout, transcripts *transcript.Store, extractor AudioExtractor, recognizer Recognizer, logger *slog.Logger) *Service {
	return &Service{
		layout:      layout,
		transcripts: transcripts,
		extractor:   extractor,
		recognizer:  recognizer,
		logger:      logging.NewComponentLogger(logger, "ingest"),
	}
}

// Ingest returns the transcript for mediaID, creating it on first call.
func (s *Service) Ingest(ctx context.Context, mediaID string) (Result, error) {
	ctx = services.WithMediaID(services.WithStage(ctx, stageName), mediaID)
	logger := logging.WithContext(ctx, s.logger)

	if err := media.ValidateID(mediaID); err != nil {
		return Result{}, err
	}
	if !s.layout.Exists(mediaID) {
		return Result{}, services.Wrap(services.ErrInput, stageName, "locate media", fmt.Sprintf("media %q not found", mediaID), nil)
	}
	if doc, ok, err := s.cached(ctx, mediaID); err != nil || ok {
		if ok {
			logger.Info("transcript already exists; recognition skipped", logging.String(logging.FieldEventType, "ingest_cached"))
		}
		return Result{Document: doc, Cached: ok, Audio: audio.Selection{Index: -1}}, err
	}

	// The flight outlives any single caller; each caller only stops waiting.
	flightCtx := context.WithoutCancel(ctx)
	ch := s.flights.DoChan(mediaID, func() (any, error) {
		return s.run(flightCtx, logger, mediaID)
	})
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		if res.Shared {
			logger.Debug("joined in-flight ingestion")
		}
		return res.Val.(Result), nil
	}
}

func (s *Service) cached(ctx context.Context, mediaID string) (*transcript.Document, bool, error) {
	doc, err := s.transcripts.Get(ctx, mediaID)
	if err == nil {
		return doc, true, nil
	}
	if errors.Is(err, transcript.ErrNotFound) {
		return nil, false, nil
	}
	return nil, false, err
}

func (s *Service) run(ctx context.Context, logger *slog.Logger, mediaID string) (Result, error) {
	// A flight that finished just before this one started already stored it.
	if doc, ok, err := s.cached(ctx, mediaID); err != nil || ok {
		return Result{Document: doc, Cached: ok, Audio: audio.Selection{Index: -1}}, err
	}

	started := time.Now()
	wavPath := s.layout.AudioPath(mediaID)
	selection, err := s.extractor.Extract(ctx, s.layout.VideoPath(mediaID), wavPath)
	if err != nil {
		if services.Marker(err) == nil {
			err = services.Wrap(services.ErrExtraction, stageName, "extract audio", "audio extraction failed", err)
		}
		return Result{}, err
	}
	logger.Info("audio extracted",
		logging.String("audio_stream", selection.Label()),
		logging.String("path", wavPath),
	)

	recognized, err := s.recognizer.Transcribe(ctx, wavPath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrRecognition, stageName, "transcribe", "speech recognition failed", err)
	}
	if info, statErr := os.Stat(wavPath); statErr == nil {
		logger.Debug("recognition input", logging.Int64("wav_bytes", info.Size()))
	}

	segments := make([]transcript.Segment, 0, len(recognized.Words))
	for _, w := range recognized.Words {
		segments = append(segments, transcript.Segment{Word: w.Word, Start: w.Start, End: w.End, Confidence: w.Confidence})
	}
	created, err := s.transcripts.Put(ctx, transcript.Document{
		MediaID:  mediaID,
		FullText: recognized.Text,
		Segments: segments,
	})
	if err != nil {
		return Result{}, err
	}
	doc, err := s.transcripts.Get(ctx, mediaID)
	if err != nil {
		return Result{}, err
	}
	logger.Info("transcript stored",
		logging.String(logging.FieldEventType, "ingest_completed"),
		logging.Int("segments", len(doc.Segments)),
		logging.Bool("created", created),
		logging.Duration("elapsed", time.Since(started)),
	)
	return Result{Document: doc, Cached: !created, Audio: selection}, nil
}
