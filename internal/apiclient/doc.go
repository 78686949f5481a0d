// Package apiclient talks to the captioner daemon's HTTP JSON API.
//
// The CLI uses it for every command that needs a running daemon: uploads,
// ingestion, transcript edits, render submission and polling, and result
// downloads. Non-2xx responses are decoded into *APIError so callers can
// branch on the HTTP status or the error kind the daemon reported.
package apiclient
