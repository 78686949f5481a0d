package services

import (
	"errors"
	"strings"
)

// Failure taxonomy markers. Synchronous errors (input, transcript missing,
// recognition, extraction) are returned to the caller that detected them;
// compositing failures only surface through a job's Failed state.
var (
	ErrInput             = errors.New("invalid input")
	ErrTranscriptMissing = errors.New("transcript missing")
	ErrRecognition       = errors.New("recognition failure")
	ErrExtraction        = errors.New("extraction failure")
	ErrCompositing       = errors.New("compositing failure")
	ErrExternalTool      = errors.New("external tool error")
	ErrConfiguration     = errors.New("configuration error")
	ErrNotFound          = errors.New("not found")
	ErrTransient         = errors.New("transient failure")
)

var markers = []error{
	ErrInput,
	ErrTranscriptMissing,
	ErrRecognition,
	ErrExtraction,
	ErrCompositing,
	ErrExternalTool,
	ErrConfiguration,
	ErrNotFound,
	ErrTransient,
}

type serviceError struct {
	marker    error
	stage     string
	operation string
	message   string
	cause     error
}

func (e *serviceError) Error() string {
	detail := buildDetail(e.stage, e.operation, e.message)
	if e.cause != nil {
		return e.marker.Error() + ": " + detail + ": " + e.cause.Error()
	}
	return e.marker.Error() + ": " + detail
}

func (e *serviceError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.marker}
	}
	return []error{e.marker, e.cause}
}

// Wrap builds an error that includes stage context while tagging it with the
// provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &serviceError{
		marker:    marker,
		stage:     strings.TrimSpace(stage),
		operation: strings.TrimSpace(operation),
		message:   strings.TrimSpace(message),
		cause:     err,
	}
}

// ErrorDetails is the structured view of an error used for logs and API bodies.
type ErrorDetails struct {
	Kind      string
	Stage     string
	Operation string
	Message   string
	Cause     error
}

// Details extracts the marker and context of err. Errors that were never
// wrapped report an empty Kind and their own text as Message.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var se *serviceError
	if errors.As(err, &se) {
		return ErrorDetails{
			Kind:      se.marker.Error(),
			Stage:     se.stage,
			Operation: se.operation,
			Message:   se.message,
			Cause:     se.cause,
		}
	}
	details := ErrorDetails{Message: err.Error()}
	if marker := Marker(err); marker != nil {
		details.Kind = marker.Error()
	}
	return details
}

// Marker returns the first taxonomy marker found in err's chain, or nil.
func Marker(err error) error {
	if err == nil {
		return nil
	}
	for _, marker := range markers {
		if errors.Is(err, marker) {
			return marker
		}
	}
	return nil
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage != "" {
		parts = append(parts, stage)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
