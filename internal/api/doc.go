// Package api is the transport-agnostic service layer behind the daemon's
// HTTP handlers, plus the wire-format DTOs shared with the CLI client.
//
// # Services
//
// RenderService: submitRender, pollStatus, fetchResult and job listing. Input
// and transcript-missing errors are returned synchronously and no job is
// created for them.
//
// TranscriptService: getTranscript, replaceTranscriptSegments and translation
// with an optional apply step.
//
// MediaService: upload and idempotent ingestion.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Job states are exposed as lowercase strings.
// Timestamps use RFC3339 with milliseconds.
package api
