package media

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"captioner/internal/config"
	"captioner/internal/services"
	"captioner/internal/textutil"
)

// Layout resolves media ids and render outputs to filesystem paths.
type Layout struct {
	UploadsDir        string
	AudioDir          string
	OutputsDir        string
	AllowedExtensions []string
	MaxBytes          int64
}

// NewLayout builds a layout from configuration.
func NewLayout(cfg *config.Config) Layout {
	return Layout{
		UploadsDir:        cfg.Paths.UploadsDir,
		AudioDir:          cfg.Paths.AudioDir,
		OutputsDir:        cfg.Paths.OutputsDir,
		AllowedExtensions: slices.Clone(cfg.Upload.AllowedExtensions),
		MaxBytes:          cfg.Upload.MaxBytes,
	}
}

// ValidateID rejects ids that are not a single safe path segment.
func ValidateID(id string) error {
	if id == "" || id != filepath.Base(id) || id != textutil.SecureFileName(id) {
		return services.Wrap(services.ErrInput, "media", "validate id", fmt.Sprintf("invalid media id %q", id), nil)
	}
	return nil
}

// Extension returns the lowercase extension of name without the dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Allowed reports whether name carries a permitted extension.
func (l Layout) Allowed(name string) bool {
	return slices.Contains(l.AllowedExtensions, Extension(name))
}

// VideoPath returns the stored upload for a media id.
func (l Layout) VideoPath(mediaID string) string {
	return filepath.Join(l.UploadsDir, mediaID)
}

// AudioPath returns where the extracted WAV for a media id lives.
func (l Layout) AudioPath(mediaID string) string {
	return filepath.Join(l.AudioDir, BaseName(mediaID)+".wav")
}

// OutputName is the deterministic output file name for a style and media id.
// Renders with the same style and media id overwrite each other.
func OutputName(styleTag, mediaID string) string {
	return "render_" + styleTag + "_" + BaseName(mediaID) + ".mp4"
}

// OutputPath returns the absolute output location for OutputName.
func (l Layout) OutputPath(styleTag, mediaID string) string {
	return filepath.Join(l.OutputsDir, OutputName(styleTag, mediaID))
}

// ResolveOutput maps a result reference (an output file name) back to a path.
func (l Layout) ResolveOutput(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", services.Wrap(services.ErrInput, "media", "resolve output", fmt.Sprintf("invalid output name %q", name), nil)
	}
	path := filepath.Join(l.OutputsDir, name)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", services.Wrap(services.ErrNotFound, "media", "resolve output", fmt.Sprintf("output %q not found", name), nil)
		}
		return "", fmt.Errorf("stat output: %w", err)
	}
	if info.IsDir() {
		return "", services.Wrap(services.ErrNotFound, "media", "resolve output", fmt.Sprintf("output %q not found", name), nil)
	}
	return path, nil
}

// Exists reports whether the upload for mediaID is present.
func (l Layout) Exists(mediaID string) bool {
	if ValidateID(mediaID) != nil {
		return false
	}
	info, err := os.Stat(l.VideoPath(mediaID))
	return err == nil && !info.IsDir()
}

// BaseName strips the extension from a media id.
func BaseName(mediaID string) string {
	return strings.TrimSuffix(mediaID, filepath.Ext(mediaID))
}
