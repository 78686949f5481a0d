package media_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"captioner/internal/media"
	"captioner/internal/services"
	"captioner/internal/testsupport"
)

var mediaIDPattern = regexp.MustCompile(`^[0-9a-f]{8}_My_Clip\.MP4$`)

func TestSaveUploadStoresSanitizedName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	layout := media.NewLayout(cfg)

	id, err := layout.SaveUpload("../My Clip.MP4", strings.NewReader("video-bytes"))
	if err != nil {
		t.Fatalf("SaveUpload: %v", err)
	}
	if !mediaIDPattern.MatchString(id) {
		t.Fatalf("unexpected media id %q", id)
	}
	data, err := os.ReadFile(layout.VideoPath(id))
	if err != nil || string(data) != "video-bytes" {
		t.Fatalf("stored upload mismatch: %q err=%v", data, err)
	}
	if !layout.Exists(id) {
		t.Fatal("expected upload to exist")
	}
	if err := media.ValidateID(id); err != nil {
		t.Fatalf("ValidateID: %v", err)
	}
}

func TestSaveUploadRejectsInvalidInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Upload.MaxBytes = 8
	layout := media.NewLayout(cfg)

	cases := []struct {
		name     string
		filename string
		body     []byte
	}{
		{"no name", "", []byte("x")},
		{"bad extension", "movie.exe", []byte("x")},
		{"too large", "movie.mp4", bytes.Repeat([]byte("x"), 9)},
		{"empty", "movie.mov", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := layout.SaveUpload(tc.filename, bytes.NewReader(tc.body))
			if !errors.Is(err, services.ErrInput) {
				t.Fatalf("expected input error, got %v", err)
			}
		})
	}
	entries, err := os.ReadDir(cfg.Paths.UploadsDir)
	if err != nil {
		t.Fatalf("read uploads: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected uploads must not leave files, found %d", len(entries))
	}
}

func TestOutputNamingAndResolution(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	layout := media.NewLayout(cfg)

	name := media.OutputName("style-clean", "abcd1234_clip.mp4")
	if name != "render_style-clean_abcd1234_clip.mp4" {
		t.Fatalf("unexpected output name %q", name)
	}
	if got := layout.AudioPath("abcd1234_clip.mp4"); got != filepath.Join(cfg.Paths.AudioDir, "abcd1234_clip.wav") {
		t.Fatalf("unexpected audio path %q", got)
	}
	if _, err := layout.ResolveOutput(name); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	testsupport.WriteMedia(t, filepath.Join(cfg.Paths.OutputsDir, name), 16)
	path, err := layout.ResolveOutput(name)
	if err != nil || path != layout.OutputPath("style-clean", "abcd1234_clip.mp4") {
		t.Fatalf("ResolveOutput = %q, %v", path, err)
	}
	if _, err := layout.ResolveOutput("../secret"); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error for traversal, got %v", err)
	}
	if err := media.ValidateID("../x.mp4"); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected invalid id, got %v", err)
	}
}
