// Package audio picks the speech track of an uploaded video and extracts it
// as mono 16 kHz PCM WAV for the recognition engine.
//
// Track ranking prefers, in order: a language matching the recognition hint,
// the default-disposition flag, fewer channels (dialogue mixes are usually
// stereo or mono), then container order.
//
// Key types:
//   - Selection: the chosen stream and a human-readable summary
//   - Extractor: probes a file and runs ffmpeg for the chosen stream
package audio
