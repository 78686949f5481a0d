package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"captioner/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrCompositing, "render", "encode", "ffmpeg failed", base)
	if !errors.Is(err, services.ErrCompositing) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"compositing failure", "render", "encode", "ffmpeg failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestDetailsSurvivesFurtherWrapping(t *testing.T) {
	inner := services.Wrap(services.ErrInput, "upload", "validate", "extension .exe not allowed", nil)
	outer := fmt.Errorf("save upload: %w", inner)

	details := services.Details(outer)
	if details.Kind != services.ErrInput.Error() {
		t.Fatalf("unexpected kind %q", details.Kind)
	}
	if details.Operation != "validate" || details.Message != "extension .exe not allowed" {
		t.Fatalf("unexpected details %+v", details)
	}
	if services.Marker(outer) != services.ErrInput {
		t.Fatalf("expected input marker, got %v", services.Marker(outer))
	}
}

func TestDetailsForPlainError(t *testing.T) {
	details := services.Details(errors.New("plain"))
	if details.Kind != "" || details.Message != "plain" {
		t.Fatalf("unexpected details %+v", details)
	}
	if services.Details(nil) != (services.ErrorDetails{}) {
		t.Fatal("expected zero details for nil")
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if _, ok := services.JobIDFromContext(ctx); ok {
		t.Fatal("expected no job id")
	}
	ctx = services.WithJobID(ctx, "01J")
	ctx = services.WithStage(ctx, "render")
	ctx = services.WithMediaID(ctx, "")
	if id, ok := services.JobIDFromContext(ctx); !ok || id != "01J" {
		t.Fatalf("unexpected job id %q", id)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "render" {
		t.Fatalf("unexpected stage %q", stage)
	}
	if _, ok := services.MediaIDFromContext(ctx); ok {
		t.Fatal("empty media id must not be stored")
	}
}
