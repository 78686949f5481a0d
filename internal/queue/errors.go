package queue

import (
	"errors"
	"fmt"

	"captioner/internal/services"
)

var (
	// ErrNotFound is returned when a job id is unknown.
	ErrNotFound = fmt.Errorf("render job %w", services.ErrNotFound)
	// ErrInvalidTransition is returned when a job is not in the state a
	// transition requires, including any write to a terminal job.
	ErrInvalidTransition = errors.New("invalid job state transition")
	// ErrNotOwner is returned when a worker mutates a job assigned to another worker.
	ErrNotOwner = errors.New("job is owned by another worker")
)
