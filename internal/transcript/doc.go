// Package transcript persists word-level transcripts keyed by media id.
//
// Documents are created once (Put is create-if-absent) and afterwards only
// their segment sequence can change, and only wholesale: ReplaceSegments
// overwrites every stored segment with the provided list. Callers editing a
// single word must resend the full sequence or the omitted entries are lost.
// Reads and writes are serialized per media id so a reader never observes a
// half-replaced sequence.
package transcript
