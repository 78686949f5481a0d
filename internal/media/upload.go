package media

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"captioner/internal/services"
	"captioner/internal/textutil"
)

// SaveUpload validates and stores an uploaded video. The returned media id
// is the stored file name. Nothing is left on disk when validation fails.
func (l Layout) SaveUpload(filename string, body io.Reader) (string, error) {
	if strings.TrimSpace(filename) == "" {
		return "", services.Wrap(services.ErrInput, "upload", "validate", "no file selected", nil)
	}
	if !l.Allowed(filename) {
		return "", services.Wrap(services.ErrInput, "upload", "validate",
			fmt.Sprintf("extension %q not allowed (allowed: %s)", Extension(filename), strings.Join(l.AllowedExtensions, ", ")), nil)
	}
	safe := textutil.SecureFileName(filepath.Base(filename))
	if safe == "" || !l.Allowed(safe) {
		return "", services.Wrap(services.ErrInput, "upload", "validate", fmt.Sprintf("file name %q is not usable", filename), nil)
	}
	mediaID := uuid.NewString()[:8] + "_" + safe

	if err := os.MkdirAll(l.UploadsDir, 0o755); err != nil {
		return "", fmt.Errorf("create uploads dir: %w", err)
	}
	tmp, err := os.CreateTemp(l.UploadsDir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create upload temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	reader := body
	if l.MaxBytes > 0 {
		reader = io.LimitReader(body, l.MaxBytes+1)
	}
	written, err := io.Copy(tmp, reader)
	closeErr := tmp.Close()
	if err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	if closeErr != nil {
		return "", fmt.Errorf("close upload: %w", closeErr)
	}
	if l.MaxBytes > 0 && written > l.MaxBytes {
		return "", services.Wrap(services.ErrInput, "upload", "validate",
			fmt.Sprintf("file exceeds the %d byte limit", l.MaxBytes), nil)
	}
	if written == 0 {
		return "", services.Wrap(services.ErrInput, "upload", "validate", "file is empty", nil)
	}

	dest := l.VideoPath(mediaID)
	if err := os.Rename(tmpPath, dest); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	tmpPath = ""
	return mediaID, nil
}
