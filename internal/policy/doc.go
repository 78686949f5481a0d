// Package policy resolves render request tags into an immutable rendering
// policy: the style profile (font, colours, stroke), the anchor point on the
// frame, and the animation offset function.
//
// Every dimension is a closed enum. Parse functions accept the canonical tag
// with or without its prefix ("style-", "pos-", "anim-") and reject anything
// else with services.ErrInput.
package policy
