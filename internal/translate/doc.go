// Package translate translates a transcript word by word while preserving
// every segment's timing and confidence.
//
// Tokens shorter than the configured rune minimum pass through untouched.
// Eligible tokens are sent in batches with bounded parallelism; when a batch
// fails each of its tokens is retried alone, and a token that still fails
// keeps its original text. A single token failure never fails the whole
// translation.
package translate
