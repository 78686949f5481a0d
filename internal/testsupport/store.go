package testsupport

import (
	"context"
	"testing"

	"captioner/internal/config"
	"captioner/internal/database"
	"captioner/internal/queue"
	"captioner/internal/transcript"
)

// MustOpenDB opens the shared database for tests and registers cleanup.
func MustOpenDB(t testing.TB, cfg *config.Config) *database.DB {
	t.Helper()

	db, err := database.Open(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// MustOpenQueue opens a job store backed by a fresh database.
func MustOpenQueue(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()
	return queue.NewStore(MustOpenDB(t, cfg))
}

// MustOpenTranscripts opens a transcript store backed by a fresh database.
func MustOpenTranscripts(t testing.TB, cfg *config.Config) *transcript.Store {
	t.Helper()
	return transcript.NewStore(MustOpenDB(t, cfg))
}

// PutTranscript stores a transcript for tests and fails on error.
func PutTranscript(t testing.TB, store *transcript.Store, mediaID string, segments ...transcript.Segment) {
	t.Helper()

	if _, err := store.Put(context.Background(), transcript.Document{MediaID: mediaID, Segments: segments}); err != nil {
		t.Fatalf("transcript.Put: %v", err)
	}
}

// SubmitJob creates a pending render job for tests.
func SubmitJob(t testing.TB, store *queue.Store, mediaID string) *queue.Job {
	t.Helper()

	job, err := store.Submit(context.Background(), queue.Request{MediaID: mediaID})
	if err != nil {
		t.Fatalf("store.Submit: %v", err)
	}
	return job
}
