// Package media owns the on-disk layout for uploads, extracted audio, and
// rendered outputs, plus the helpers that run external media tools.
//
// Media ids are the stored upload names ("<8 hex>_<sanitized name>"); every
// derived path is computed from the id so the HTTP layer never joins raw
// client input onto a directory.
package media
