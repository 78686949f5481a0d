// Package main hosts the captioner CLI entrypoint and command graph.
//
// The Cobra command tree translates terminal invocations into HTTP calls
// against the daemon: uploads, ingestion, transcript edits, render
// submission, job listings, and result downloads. `captioner serve` runs the
// daemon in the foreground, and the config subcommands scaffold and validate
// configuration files without a daemon.
//
// Keep this package thin. Behaviour belongs in the internal packages; the
// commands here resolve configuration, pick the daemon address, and format
// output as tables or JSON.
package main
