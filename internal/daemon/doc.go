// Package daemon coordinates the long-running captioner process.
//
// It wires configuration, the job store, the worker pool and the HTTP JSON
// API into a single lifecycle with flock-based locking to prevent multiple
// instances over the same state directory. Pending jobs left by a previous
// run are dispatched again on start.
//
// Keep orchestration logic here: rendering, ingestion and translation live in
// their own packages while the daemon focuses on startup, shutdown and the
// transport mapping.
package daemon
