package transcript_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"captioner/internal/services"
	"captioner/internal/testsupport"
	"captioner/internal/transcript"
)

func sampleSegments() []transcript.Segment {
	return []transcript.Segment{
		{Word: "hello", Start: 0, End: 0.4, Confidence: 0.9},
		{Word: "brave", Start: 0.4, End: 0.7, Confidence: 0.8},
		{Word: "world", Start: 0.7, End: 1.2, Confidence: 0.95},
	}
}

func TestPutIsCreateIfAbsent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenTranscripts(t, cfg)
	ctx := context.Background()

	created, err := store.Put(ctx, transcript.Document{MediaID: "abc_clip.mp4", FullText: "hello brave world", Segments: sampleSegments()})
	if err != nil || !created {
		t.Fatalf("first Put: created=%v err=%v", created, err)
	}
	created, err = store.Put(ctx, transcript.Document{MediaID: "abc_clip.mp4", FullText: "other", Segments: sampleSegments()[:1]})
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if created {
		t.Fatal("expected second Put to leave the existing document alone")
	}

	doc, err := store.Get(ctx, "abc_clip.mp4")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.FullText != "hello brave world" || len(doc.Segments) != 3 {
		t.Fatalf("unexpected document %+v", doc)
	}
	exists, err := store.Exists(ctx, "abc_clip.mp4")
	if err != nil || !exists {
		t.Fatalf("Exists: %v %v", exists, err)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenTranscripts(t, cfg)

	_, err := store.Get(context.Background(), "missing.mp4")
	if !errors.Is(err, transcript.ErrNotFound) || !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	exists, err := store.Exists(context.Background(), "missing.mp4")
	if err != nil || exists {
		t.Fatalf("Exists: %v %v", exists, err)
	}
}

func TestReplaceSegmentsIsWholesale(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenTranscripts(t, cfg)
	ctx := context.Background()
	testsupport.PutTranscript(t, store, "m.mp4", sampleSegments()...)

	shorter := []transcript.Segment{{Word: "bye", Start: 2, End: 2.3, Confidence: 1}}
	if err := store.ReplaceSegments(ctx, "m.mp4", shorter); err != nil {
		t.Fatalf("ReplaceSegments: %v", err)
	}
	doc, err := store.Get(ctx, "m.mp4")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(doc.Segments) != 1 || doc.Segments[0] != shorter[0] {
		t.Fatalf("expected exactly the new sequence, got %+v", doc.Segments)
	}
	if doc.FullText != "hello brave world" {
		t.Fatalf("full text should be preserved, got %q", doc.FullText)
	}

	if err := store.ReplaceSegments(ctx, "m.mp4", nil); err != nil {
		t.Fatalf("ReplaceSegments empty: %v", err)
	}
	doc, _ = store.Get(ctx, "m.mp4")
	if len(doc.Segments) != 0 {
		t.Fatalf("expected empty sequence, got %+v", doc.Segments)
	}
}

func TestReplaceSegmentsUnknownMedia(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenTranscripts(t, cfg)
	err := store.ReplaceSegments(context.Background(), "nope.mp4", sampleSegments())
	if !errors.Is(err, transcript.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSegmentsSortedStablyAndValidated(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenTranscripts(t, cfg)
	ctx := context.Background()

	unordered := []transcript.Segment{
		{Word: "c", Start: 1, End: 1.5, Confidence: 1},
		{Word: "a", Start: 0.5, End: 0.6, Confidence: 1},
		{Word: "b", Start: 0.5, End: 2, Confidence: 1},
	}
	testsupport.PutTranscript(t, store, "s.mp4", unordered...)
	doc, err := store.Get(ctx, "s.mp4")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got := transcript.JoinWords(doc.Segments)
	if got != "a b c" {
		t.Fatalf("expected stable order a b c, got %q", got)
	}

	invalid := []struct {
		name string
		seg  transcript.Segment
	}{
		{"start after end", transcript.Segment{Word: "x", Start: 2, End: 1, Confidence: 1}},
		{"negative start", transcript.Segment{Word: "x", Start: -1, End: 1, Confidence: 1}},
		{"confidence above one", transcript.Segment{Word: "x", Start: 0, End: 1, Confidence: 1.5}},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			err := store.ReplaceSegments(ctx, "s.mp4", []transcript.Segment{tc.seg})
			if !errors.Is(err, services.ErrInput) {
				t.Fatalf("expected input error, got %v", err)
			}
		})
	}
	doc, _ = store.Get(ctx, "s.mp4")
	if len(doc.Segments) != 3 {
		t.Fatalf("rejected replace must not modify the document, got %d segments", len(doc.Segments))
	}
}

func TestConcurrentReplaceNeverTears(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenTranscripts(t, cfg)
	ctx := context.Background()
	testsupport.PutTranscript(t, store, "c.mp4", sampleSegments()...)

	build := func(n int) []transcript.Segment {
		segs := make([]transcript.Segment, n)
		for i := range segs {
			segs[i] = transcript.Segment{Word: fmt.Sprintf("w%d", n), Start: float64(i), End: float64(i) + 0.5, Confidence: 1}
		}
		return segs
	}

	var wg sync.WaitGroup
	for n := 1; n <= 6; n++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			if err := store.ReplaceSegments(ctx, "c.mp4", build(n)); err != nil {
				t.Errorf("ReplaceSegments(%d): %v", n, err)
			}
		}(n)
		go func() {
			defer wg.Done()
			doc, err := store.Get(ctx, "c.mp4")
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			if len(doc.Segments) == 3 {
				return
			}
			want := fmt.Sprintf("w%d", len(doc.Segments))
			for _, seg := range doc.Segments {
				if seg.Word != want {
					t.Errorf("torn read: %+v", doc.Segments)
					return
				}
			}
		}()
	}
	wg.Wait()
}
