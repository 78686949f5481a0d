package daemon

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"captioner/internal/api"
	"captioner/internal/queue"
	"captioner/internal/services"
	"captioner/internal/transcript"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"input", services.Wrap(services.ErrInput, "render", "submit", "bad", nil), http.StatusBadRequest},
		{"job not found", queue.ErrNotFound, http.StatusNotFound},
		{"transcript not found", transcript.ErrNotFound, http.StatusNotFound},
		{"transcript missing", services.Wrap(services.ErrTranscriptMissing, "render", "submit", "ingest first", nil), http.StatusConflict},
		{"not ready", fmt.Errorf("%w: job is pending", api.ErrResultNotReady), http.StatusConflict},
		{"recognition", services.Wrap(services.ErrRecognition, "ingest", "transcribe", "failed", nil), http.StatusBadGateway},
		{"extraction", services.Wrap(services.ErrExtraction, "ingest", "extract", "no sound", nil), http.StatusBadGateway},
		{"plain", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusForError(tt.err); got != tt.want {
				t.Fatalf("statusForError = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	open := authMiddleware("", next)
	w := httptest.NewRecorder()
	open.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("open handler status = %d", w.Code)
	}

	guarded := authMiddleware("s3cret", next)
	for _, header := range []string{"", "Bearer wrong", "s3cret", "Basic s3cret"} {
		req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		guarded.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("header %q status = %d, want 401", header, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w = httptest.NewRecorder()
	guarded.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("valid token status = %d", w.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := requestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen, _ = services.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if seen != "req-42" || w.Header().Get("X-Request-ID") != "req-42" {
		t.Fatalf("request id = %q, header = %q", seen, w.Header().Get("X-Request-ID"))
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || seen == "req-42" {
		t.Fatalf("expected generated request id, got %q", seen)
	}
}
