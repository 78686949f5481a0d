package api

import (
	"context"
	"log/slog"
	"strings"

	"captioner/internal/logging"
	"captioner/internal/services"
	"captioner/internal/transcript"
	"captioner/internal/translate"
)

// TranscriptStore abstracts transcript persistence.
type TranscriptStore interface {
	Get(ctx context.Context, mediaID string) (*transcript.Document, error)
	ReplaceSegments(ctx context.Context, mediaID string, segments []transcript.Segment) error
}

// Translator translates segment words.
type Translator interface {
	Translate(ctx context.Context, segments []transcript.Segment, targetCode string) (translate.Outcome, error)
}

// TranscriptService exposes transcript reads, edits and translation.
type TranscriptService struct {
	store      TranscriptStore
	translator Translator
	logger     *slog.Logger
}

// NewTranscriptService wires the transcript service. translator may be nil
// when translation is disabled.
func NewTranscriptService(store TranscriptStore, translator Translator, logger *slog.Logger) *TranscriptService {
	return &TranscriptService{
		store:      store,
		translator: translator,
		logger:     logging.NewComponentLogger(logger, "transcript-api"),
	}
}

// Get returns the stored transcript.
func (s *TranscriptService) Get(ctx context.Context, mediaID string) (Transcript, error) {
	doc, err := s.store.Get(ctx, strings.TrimSpace(mediaID))
	if err != nil {
		return Transcript{}, err
	}
	return FromTranscript(doc), nil
}

// ReplaceSegments overwrites the whole segment sequence and returns the
// stored result.
func (s *TranscriptService) ReplaceSegments(ctx context.Context, mediaID string, segments []Segment) (Transcript, error) {
	mediaID = strings.TrimSpace(mediaID)
	if err := s.store.ReplaceSegments(ctx, mediaID, ToSegments(segments)); err != nil {
		return Transcript{}, err
	}
	logging.WithContext(services.WithMediaID(ctx, mediaID), s.logger).Info("transcript segments replaced",
		logging.String(logging.FieldEventType, "transcript_replaced"),
		logging.Int("segments", len(segments)),
	)
	return s.Get(ctx, mediaID)
}

// Translate translates the stored words into req.Target. With req.Apply the
// translated sequence replaces the stored one.
func (s *TranscriptService) Translate(ctx context.Context, mediaID string, req TranslateRequest) (TranslateResponse, error) {
	if s.translator == nil {
		return TranslateResponse{}, services.Wrap(services.ErrConfiguration, "translate", "translate", "translation is disabled", nil)
	}
	mediaID = strings.TrimSpace(mediaID)
	doc, err := s.store.Get(ctx, mediaID)
	if err != nil {
		return TranslateResponse{}, err
	}
	outcome, err := s.translator.Translate(services.WithMediaID(ctx, mediaID), doc.Segments, req.Target)
	if err != nil {
		return TranslateResponse{}, err
	}
	resp := TranslateResponse{
		MediaID:       mediaID,
		Target:        outcome.Target.Code,
		TargetName:    outcome.Target.Display,
		Segments:      FromSegments(outcome.Segments),
		Translated:    outcome.Translated,
		PassedThrough: outcome.PassedThrough,
		Fallbacks:     outcome.Fallbacks,
	}
	if req.Apply {
		if err := s.store.ReplaceSegments(ctx, mediaID, outcome.Segments); err != nil {
			return TranslateResponse{}, err
		}
		resp.Applied = true
	}
	return resp, nil
}
