package policy

import (
	"fmt"
	"strings"

	"captioner/internal/services"
)

// Style selects a caption style profile.
type Style int

const (
	StyleClean Style = iota
	StyleIGGlow
	StyleIGGreen
	StyleEmoji
)

// Position selects the named vertical anchor.
type Position int

const (
	PositionBottom Position = iota
	PositionCenter
	PositionTop
)

// Animation selects the per-frame motion function.
type Animation int

const (
	AnimationNone Animation = iota
	AnimationPop
	AnimationSlide
	AnimationBounce
	AnimationKaraoke
)

// Styles lists every style in catalogue order.
var Styles = []Style{StyleClean, StyleIGGlow, StyleIGGreen, StyleEmoji}

// Positions lists every named position.
var Positions = []Position{PositionTop, PositionCenter, PositionBottom}

// Animations lists every animation.
var Animations = []Animation{AnimationNone, AnimationPop, AnimationSlide, AnimationBounce, AnimationKaraoke}

func (s Style) Tag() string {
	switch s {
	case StyleClean:
		return "style-clean"
	case StyleIGGlow:
		return "style-ig-glow"
	case StyleIGGreen:
		return "style-ig-green"
	case StyleEmoji:
		return "style-emoji"
	default:
		return fmt.Sprintf("style-%d", int(s))
	}
}

func (s Style) String() string { return s.Tag() }

func (p Position) Tag() string {
	switch p {
	case PositionTop:
		return "pos-top"
	case PositionCenter:
		return "pos-center"
	case PositionBottom:
		return "pos-bottom"
	default:
		return fmt.Sprintf("pos-%d", int(p))
	}
}

func (p Position) String() string { return p.Tag() }

func (a Animation) Tag() string {
	switch a {
	case AnimationNone:
		return "anim-none"
	case AnimationPop:
		return "anim-pop"
	case AnimationSlide:
		return "anim-slide"
	case AnimationBounce:
		return "anim-bounce"
	case AnimationKaraoke:
		return "anim-karaoke"
	default:
		return fmt.Sprintf("anim-%d", int(a))
	}
}

func (a Animation) String() string { return a.Tag() }

// ParseStyle resolves a style tag. An empty tag selects StyleClean.
func ParseStyle(tag string) (Style, error) {
	name := normalizeTag(tag, "style-")
	if name == "" {
		return StyleClean, nil
	}
	for _, s := range Styles {
		if s.Tag() == "style-"+name {
			return s, nil
		}
	}
	return StyleClean, unknownTag("style", tag)
}

// ParsePosition resolves a position tag. An empty tag selects PositionBottom.
func ParsePosition(tag string) (Position, error) {
	name := normalizeTag(tag, "pos-")
	if name == "" {
		return PositionBottom, nil
	}
	for _, p := range Positions {
		if p.Tag() == "pos-"+name {
			return p, nil
		}
	}
	return PositionBottom, unknownTag("position", tag)
}

// ParseAnimation resolves an animation tag. An empty tag selects AnimationNone.
func ParseAnimation(tag string) (Animation, error) {
	name := normalizeTag(tag, "anim-")
	if name == "" {
		return AnimationNone, nil
	}
	for _, a := range Animations {
		if a.Tag() == "anim-"+name {
			return a, nil
		}
	}
	return AnimationNone, unknownTag("animation", tag)
}

func normalizeTag(tag, prefix string) string {
	name := strings.ToLower(strings.TrimSpace(tag))
	return strings.TrimPrefix(name, prefix)
}

func unknownTag(dimension, tag string) error {
	return services.Wrap(services.ErrInput, "policy", "parse "+dimension, fmt.Sprintf("unknown %s %q", dimension, tag), nil)
}
