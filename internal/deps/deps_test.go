package deps

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"captioner/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  ", Optional: true},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[2].Detail)
	}

	missing := MissingRequired(results)
	if len(missing) != 1 || missing[0].Name != "Missing" {
		t.Fatalf("MissingRequired = %#v", missing)
	}
}

func TestRequirementsFollowConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Render.FFmpegBinary = "/opt/ffmpeg/bin/ffmpeg"
	cfg.Recognition.UVXBinary = "/usr/local/bin/uvx"

	reqs := Requirements(&cfg)
	byName := make(map[string]Requirement, len(reqs))
	for _, req := range reqs {
		byName[req.Name] = req
	}
	if byName["FFmpeg"].Command != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("ffmpeg command = %q", byName["FFmpeg"].Command)
	}
	if byName["uvx"].Command != "/usr/local/bin/uvx" {
		t.Fatalf("uvx command = %q", byName["uvx"].Command)
	}
	if !byName["fc-list"].Optional {
		t.Fatal("fc-list should be optional")
	}
}

const encodersOutput = `Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC (codec h264)
 A....D aac                  AAC (Advanced Audio Coding)
 S..... ass                  ASS (Advanced SubStation Alpha) subtitle
`

func TestCheckEncoders(t *testing.T) {
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != "ffmpeg" || len(args) != 2 || args[1] != "-encoders" {
			t.Fatalf("unexpected command %s %v", name, args)
		}
		return []byte(encodersOutput), nil
	}

	status := CheckEncoders(context.Background(), run, "ffmpeg", "libx264", "aac")
	if !status.Available {
		t.Fatalf("expected encoders available, got %#v", status)
	}

	status = CheckEncoders(context.Background(), run, "ffmpeg", "libx264", "libopus")
	if status.Available || status.Detail != "missing encoders: libopus" {
		t.Fatalf("expected libopus missing, got %#v", status)
	}

	failing := func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exec format error")
	}
	status = CheckEncoders(context.Background(), failing, "ffmpeg", "libx264")
	if status.Available || status.Detail == "" {
		t.Fatalf("expected failure detail, got %#v", status)
	}
}
