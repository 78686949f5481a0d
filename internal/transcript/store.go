package transcript

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"captioner/internal/database"
	"captioner/internal/services"
)

// ErrNotFound is returned when no transcript exists for a media id.
var ErrNotFound = fmt.Errorf("transcript %w", services.ErrNotFound)

// Store manages transcript persistence backed by SQLite.
type Store struct {
	db    *database.DB
	locks *keyedLocks
	now   func() time.Time
}

// NewStore wraps an open database.
func NewStore(db *database.DB) *Store {
	return &Store{db: db, locks: newKeyedLocks(), now: time.Now}
}

// Exists reports whether a transcript is stored for mediaID.
func (s *Store) Exists(ctx context.Context, mediaID string) (bool, error) {
	mediaID = strings.TrimSpace(mediaID)
	unlock := s.locks.RLock(mediaID)
	defer unlock()

	var count int
	err := s.db.SQL().QueryRowContext(database.EnsureContext(ctx),
		`SELECT COUNT(1) FROM transcripts WHERE media_id = ?`, mediaID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check transcript: %w", err)
	}
	return count > 0, nil
}

// Get returns the stored document. The returned value is a snapshot owned by
// the caller.
func (s *Store) Get(ctx context.Context, mediaID string) (*Document, error) {
	mediaID = strings.TrimSpace(mediaID)
	unlock := s.locks.RLock(mediaID)
	defer unlock()

	ctx = database.EnsureContext(ctx)
	doc := &Document{MediaID: mediaID}
	var createdRaw, updatedRaw string
	err := s.db.SQL().QueryRowContext(ctx,
		`SELECT full_text, created_at, updated_at FROM transcripts WHERE media_id = ?`, mediaID,
	).Scan(&doc.FullText, &createdRaw, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	if created, err := database.ParseTime(createdRaw); err == nil {
		doc.CreatedAt = created
	}
	if updated, err := database.ParseTime(updatedRaw); err == nil {
		doc.UpdatedAt = updated
	}

	rows, err := s.db.SQL().QueryContext(ctx,
		`SELECT word, start_s, end_s, confidence FROM transcript_segments WHERE media_id = ? ORDER BY position`,
		mediaID,
	)
	if err != nil {
		return nil, fmt.Errorf("load segments: %w", err)
	}
	defer rows.Close()

	doc.Segments = []Segment{}
	for rows.Next() {
		var seg Segment
		if err := rows.Scan(&seg.Word, &seg.Start, &seg.End, &seg.Confidence); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		doc.Segments = append(doc.Segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segments: %w", err)
	}
	return doc, nil
}

// Put stores doc only when no transcript exists for its media id. It reports
// whether the document was created; an existing document is left untouched.
func (s *Store) Put(ctx context.Context, doc Document) (bool, error) {
	mediaID := strings.TrimSpace(doc.MediaID)
	if mediaID == "" {
		return false, services.Wrap(services.ErrInput, "transcript", "put", "media id is required", nil)
	}
	segments, err := Normalize(doc.Segments)
	if err != nil {
		return false, err
	}
	fullText := strings.TrimSpace(doc.FullText)
	if fullText == "" {
		fullText = JoinWords(segments)
	}

	ctx = database.EnsureContext(ctx)
	unlock := s.locks.Lock(mediaID)
	defer unlock()

	now := database.FormatTime(s.now())
	created := false
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		created = false
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO transcripts (media_id, full_text, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			mediaID, fullText, now, now,
		)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}
		created = true
		return insertSegments(ctx, tx, mediaID, segments)
	})
	if err != nil {
		return false, fmt.Errorf("put transcript: %w", err)
	}
	return created, nil
}

// ReplaceSegments overwrites the full segment sequence of an existing
// transcript. It is not a merge.
func (s *Store) ReplaceSegments(ctx context.Context, mediaID string, segments []Segment) error {
	mediaID = strings.TrimSpace(mediaID)
	normalized, err := Normalize(segments)
	if err != nil {
		return err
	}

	ctx = database.EnsureContext(ctx)
	unlock := s.locks.Lock(mediaID)
	defer unlock()

	now := database.FormatTime(s.now())
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE transcripts SET updated_at = ? WHERE media_id = ?`, now, mediaID)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM transcript_segments WHERE media_id = ?`, mediaID); err != nil {
			return err
		}
		return insertSegments(ctx, tx, mediaID, normalized)
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("replace segments: %w", err)
	}
	return nil
}

func insertSegments(ctx context.Context, tx *sql.Tx, mediaID string, segments []Segment) error {
	if len(segments) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transcript_segments (media_id, position, word, start_s, end_s, confidence) VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, seg := range segments {
		if _, err := stmt.ExecContext(ctx, mediaID, i, seg.Word, seg.Start, seg.End, seg.Confidence); err != nil {
			return fmt.Errorf("insert segment %d: %w", i, err)
		}
	}
	return nil
}
