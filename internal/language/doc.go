// Package language normalizes language codes for recognition hints, audio
// track selection, and translation targets.
//
// Codes are parsed with golang.org/x/text/language; a small alias table adds
// ISO 639-2/B codes and English names.
package language
