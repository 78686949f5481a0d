// Package database opens the SQLite file shared by the transcript store and
// the render job queue.
//
// It applies the connection pragmas, creates the embedded schema on first
// use, verifies the schema version on later opens, and exposes the
// busy-retry helpers both stores use for writes.
package database
