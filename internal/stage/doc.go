// Package stage defines the contract between the workflow worker pool and the
// handler that performs a job's work, plus the health record handlers report.
package stage
