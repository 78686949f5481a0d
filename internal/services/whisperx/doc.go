// Package whisperx runs WhisperX speech recognition through uvx and parses its
// word-level JSON output.
//
// Each recognition run happens inside a Session: Open creates a private work
// directory, Transcribe invokes the engine once, and Close releases the
// directory on every path. No engine state is shared between runs.
package whisperx
