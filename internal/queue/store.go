package queue

import (
	"context"
	"log/slog"
	"sync"

	"captioner/internal/database"
	"captioner/internal/logging"
)

// Observer is notified after every successful job mutation.
type Observer interface {
	JobChanged(ctx context.Context, job *Job)
}

// Store manages render job persistence backed by SQLite.
type Store struct {
	db     *database.DB
	logger *slog.Logger

	mu        sync.RWMutex
	observers []Observer
}

// NewStore wraps an open database.
func NewStore(db *database.DB) *Store {
	return &Store{db: db, logger: logging.NewNop()}
}

// SetLogger attaches a logger for best-effort notification failures.
func (s *Store) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, "queue")
}

// AddObserver registers o for job change notifications.
func (s *Store) AddObserver(o Observer) {
	if o == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

func (s *Store) notify(ctx context.Context, id string) {
	s.mu.RLock()
	observers := s.observers
	s.mu.RUnlock()
	if len(observers) == 0 {
		return
	}
	job, err := s.Get(ctx, id)
	if err != nil {
		s.logger.Debug("job change notification skipped", logging.String(logging.FieldJobID, id), logging.Error(err))
		return
	}
	for _, o := range observers {
		o.JobChanged(ctx, job)
	}
}
