// Package queue persists render jobs in SQLite and enforces their lifecycle.
//
// A job moves Pending -> Processing -> {Succeeded, Failed} and never back.
// Every transition is a single conditional UPDATE keyed on the expected
// current state (and, once assigned, on the owning worker), so at most one
// worker ever holds a job and terminal rows are never rewritten. A rejected
// transition is diagnosed afterwards and reported as ErrNotFound,
// ErrInvalidTransition, or ErrNotOwner.
//
// Processing jobs carry a heartbeat. ReclaimStale fails jobs whose worker
// stopped heartbeating and FailOrphaned fails jobs a previous daemon process
// left behind; neither retries the render.
package queue
