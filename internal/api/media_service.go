package api

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"captioner/internal/ingest"
	"captioner/internal/logging"
	"captioner/internal/media"
	"captioner/internal/services"
)

// Ingestor produces a transcript for uploaded media.
type Ingestor interface {
	Ingest(ctx context.Context, mediaID string) (ingest.Result, error)
}

// MediaService handles uploads and ingestion.
type MediaService struct {
	layout   media.Layout
	ingestor Ingestor
	logger   *slog.Logger
}

// NewMediaService wires the media service.
func NewMediaService(layout media.Layout, ingestor Ingestor, logger *slog.Logger) *MediaService {
	return &MediaService{
		layout:   layout,
		ingestor: ingestor,
		logger:   logging.NewComponentLogger(logger, "media-api"),
	}
}

// Upload validates and stores a video, returning its media id.
func (s *MediaService) Upload(ctx context.Context, filename string, body io.Reader) (UploadResponse, error) {
	mediaID, err := s.layout.SaveUpload(filename, body)
	if err != nil {
		return UploadResponse{}, err
	}
	logging.WithContext(services.WithMediaID(ctx, mediaID), s.logger).Info("media uploaded",
		logging.String(logging.FieldEventType, "media_uploaded"),
		logging.String("filename", filename),
	)
	return UploadResponse{MediaID: mediaID}, nil
}

// Ingest extracts and recognizes speech once per media id.
func (s *MediaService) Ingest(ctx context.Context, mediaID string) (IngestResponse, error) {
	mediaID = strings.TrimSpace(mediaID)
	result, err := s.ingestor.Ingest(ctx, mediaID)
	if err != nil {
		return IngestResponse{}, err
	}
	return IngestResponse{
		MediaID:     mediaID,
		Cached:      result.Cached,
		Segments:    len(result.Document.Segments),
		FullText:    result.Document.FullText,
		AudioStream: result.Audio.Label(),
	}, nil
}
