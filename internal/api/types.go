package api

import "captioner/internal/policy"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// RenderRequest asks for one captioned render.
type RenderRequest struct {
	MediaID     string              `json:"mediaId"`
	Style       string              `json:"style,omitempty"`
	Position    string              `json:"position,omitempty"`
	Animation   string              `json:"animation,omitempty"`
	Coordinates *policy.Coordinates `json:"coordinates,omitempty"`
}

// Job describes a render job in a transport-friendly format.
type Job struct {
	ID          string              `json:"id"`
	MediaID     string              `json:"mediaId"`
	Style       string              `json:"style"`
	Position    string              `json:"position"`
	Animation   string              `json:"animation"`
	Coordinates *policy.Coordinates `json:"coordinates,omitempty"`
	State       string              `json:"state"`
	Message     string              `json:"message"`
	ResultRef   string              `json:"resultRef,omitempty"`
	ErrorKind   string              `json:"errorKind,omitempty"`
	ErrorDetail string              `json:"errorDetail,omitempty"`
	CreatedAt   string              `json:"createdAt,omitempty"`
	UpdatedAt   string              `json:"updatedAt,omitempty"`
	StartedAt   string              `json:"startedAt,omitempty"`
	FinishedAt  string              `json:"finishedAt,omitempty"`
}

// JobStatus is the poll view of a job.
type JobStatus struct {
	ID          string `json:"id"`
	State       string `json:"state"`
	Message     string `json:"message"`
	ResultRef   string `json:"resultRef,omitempty"`
	ErrorKind   string `json:"errorKind,omitempty"`
	ErrorDetail string `json:"errorDetail,omitempty"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// Segment is one timed word.
type Segment struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Transcript is the wire form of a transcript document.
type Transcript struct {
	MediaID   string    `json:"mediaId"`
	FullText  string    `json:"fullText"`
	Segments  []Segment `json:"segments"`
	CreatedAt string    `json:"createdAt,omitempty"`
	UpdatedAt string    `json:"updatedAt,omitempty"`
}

// ReplaceSegmentsRequest carries a full replacement segment sequence.
type ReplaceSegmentsRequest struct {
	Segments []Segment `json:"segments"`
}

// TranslateRequest asks for a word-by-word translation.
type TranslateRequest struct {
	Target string `json:"target"`
	Apply  bool   `json:"apply"`
}

// TranslateResponse reports a translation outcome.
type TranslateResponse struct {
	MediaID       string    `json:"mediaId"`
	Target        string    `json:"target"`
	TargetName    string    `json:"targetName"`
	Segments      []Segment `json:"segments"`
	Translated    int       `json:"translated"`
	PassedThrough int       `json:"passedThrough"`
	Fallbacks     int       `json:"fallbacks"`
	Applied       bool      `json:"applied"`
}

// UploadResponse names the stored media.
type UploadResponse struct {
	MediaID string `json:"mediaId"`
}

// IngestResponse summarizes an ingestion.
type IngestResponse struct {
	MediaID     string `json:"mediaId"`
	Cached      bool   `json:"cached"`
	Segments    int    `json:"segments"`
	FullText    string `json:"fullText"`
	AudioStream string `json:"audioStream,omitempty"`
}

// ActiveJob identifies a job executing in the daemon.
type ActiveJob struct {
	JobID string `json:"jobId"`
	Owner string `json:"owner"`
}

// WorkflowStatus summarizes worker pool state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	Workers     int            `json:"workers"`
	Busy        int            `json:"busy"`
	Active      []ActiveJob    `json:"active"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastJob     *Job           `json:"lastJob,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	SessionID    string             `json:"sessionId"`
	Dispatcher   string             `json:"dispatcher"`
	DatabasePath string             `json:"databasePath"`
	LockFilePath string             `json:"lockFilePath"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
