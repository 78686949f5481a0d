// Package services defines shared utilities consumed by the workflow stage
// handlers and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, media IDs, stage names, and
//     correlation identifiers for logging.
//   - The failure taxonomy (input, transcript missing, recognition,
//     extraction, compositing) as sentinel markers plus the Wrap helper that
//     keeps stage and operation context attached to every error.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across ingestion, rendering, and the HTTP API.
package services
