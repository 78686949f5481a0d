// Package render implements the stage handler that turns a render job into a
// captioned video: it snapshots the transcript, resolves the job's policy
// tags, and drives the compositing engine.
package render
