// Package logging assembles structured slog loggers and formatting helpers used
// across captioner services.
//
// It owns the configurable console/JSON handlers, the rotating daemon log file,
// and context-aware helpers so worker code automatically tags log lines with
// job IDs, media IDs, stages, and correlation IDs. A no-op logger is provided
// for tests and wiring code that cannot fail.
package logging
