// Package preflight provides readiness checks for the filesystem paths,
// external binaries and network services captioner depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunLocal at startup and logs every failure; a failed
//     check does not stop the daemon.
//   - The CLI "captioner status --check" command runs RunAll, which adds the
//     network checks (Redis, LLM endpoint).
//
// Each network check is gated by its config toggle; disabled features are skipped.
package preflight
