// Package ingest turns an uploaded video into a stored transcript.
//
// Ingestion extracts the speech track as mono 16 kHz WAV, runs the
// recognition engine once, and stores the resulting document. It is
// idempotent per media id: an existing transcript is returned as is, and
// concurrent callers for the same media id share a single recognition run.
package ingest
