package queue

import (
	"time"

	"captioner/internal/policy"
)

// State represents the lifecycle of a render job.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// AllStates lists states in lifecycle order.
var AllStates = []State{StatePending, StateProcessing, StateSucceeded, StateFailed}

// Terminal reports whether no transition out of s is permitted.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateProcessing, StateSucceeded, StateFailed:
		return true
	default:
		return false
	}
}

// Failure messages recorded by recovery paths.
const (
	HeartbeatExpiredReason = "worker lost: heartbeat expired"
	DaemonRestartReason    = "daemon restarted during render"
)

// Request is a validated render request. Tags are canonical policy tags.
type Request struct {
	MediaID     string
	Style       string
	Position    string
	Animation   string
	Coordinates *policy.Coordinates
}

// Job represents a render job persisted in SQLite.
type Job struct {
	ID              string
	MediaID         string
	Style           string
	Position        string
	Animation       string
	Coordinates     *policy.Coordinates
	State           State
	ProgressMessage string
	ResultRef       string
	ErrorKind       string
	ErrorDetail     string
	Owner           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
	LastHeartbeat   *time.Time
}

// Request reconstructs the render request a job was created from.
func (j *Job) Request() Request {
	return Request{
		MediaID:     j.MediaID,
		Style:       j.Style,
		Position:    j.Position,
		Animation:   j.Animation,
		Coordinates: j.Coordinates,
	}
}

// Status is the read-only view returned to pollers.
type Status struct {
	ID          string `json:"id"`
	State       State  `json:"state"`
	Message     string `json:"message"`
	ResultRef   string `json:"result_ref,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
	ErrorDetail string `json:"error_detail,omitempty"`
}

// Status projects the poll view of the job.
func (j *Job) Status() Status {
	return Status{
		ID:          j.ID,
		State:       j.State,
		Message:     j.ProgressMessage,
		ResultRef:   j.ResultRef,
		ErrorKind:   j.ErrorKind,
		ErrorDetail: j.ErrorDetail,
	}
}

// HealthSummary describes aggregated job counts per state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Succeeded  int
	Failed     int
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	States  []State
	MediaID string
	Limit   int
}
