package policy

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Font sizes follow the rendered frame width.
const (
	NarrowFrameWidth = 600
	NarrowFontSize   = 40
	WideFontSize     = 60
	emojiSizeFactor  = 1.2

	FallbackFontFamily = "Arial"
)

// Color is an opaque RGB colour.
type Color struct {
	R, G, B uint8
}

var (
	White  = Color{255, 255, 255}
	Black  = Color{0, 0, 0}
	Yellow = Color{255, 255, 0}
)

// ParseColor accepts a named colour (white, black, yellow) or #rrggbb.
func ParseColor(value string) (Color, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "white":
		return White, nil
	case "black":
		return Black, nil
	case "yellow":
		return Yellow, nil
	}
	hex := strings.TrimPrefix(v, "#")
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("invalid colour %q", value)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid colour %q: %w", value, err)
	}
	return Color{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n)}, nil
}

// Hex renders #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ASS renders the colour in ASS subtitle notation (&HAABBGGRR).
func (c Color) ASS() string {
	return fmt.Sprintf("&H00%02X%02X%02X", c.B, c.G, c.R)
}

// StyleProfile is the resolved visual treatment for caption text.
type StyleProfile struct {
	FontFamily  string
	FontSize    int
	Bold        bool
	Italic      bool
	TextColor   Color
	StrokeColor Color
	StrokeWidth float64
}

// ResolveStyle returns the profile for style on a frame of the given width.
func ResolveStyle(style Style, frameWidth int) StyleProfile {
	size := WideFontSize
	if frameWidth < NarrowFrameWidth {
		size = NarrowFontSize
	}
	switch style {
	case StyleIGGlow:
		return StyleProfile{FontFamily: "Times New Roman", FontSize: size, Bold: true, Italic: true, TextColor: White, StrokeColor: Color{0x00, 0xd2, 0xff}, StrokeWidth: 1}
	case StyleIGGreen:
		return StyleProfile{FontFamily: "Arial Black", FontSize: size, TextColor: Color{0x39, 0xff, 0x14}, StrokeColor: Black, StrokeWidth: 0}
	case StyleEmoji:
		return StyleProfile{FontFamily: "Noto Color Emoji", FontSize: int(float64(size) * emojiSizeFactor), TextColor: Yellow, StrokeColor: Black, StrokeWidth: 2}
	case StyleClean:
		fallthrough
	default:
		return StyleProfile{FontFamily: "Arial", FontSize: size, Bold: true, TextColor: White, StrokeColor: Black, StrokeWidth: 2}
	}
}

// FallbackProfile is the fixed default style used when the requested font
// cannot be rendered: default font, white text, no stroke, same size.
func FallbackProfile(size int) StyleProfile {
	return StyleProfile{FontFamily: FallbackFontFamily, FontSize: size, TextColor: White, StrokeColor: Black, StrokeWidth: 0}
}

// FontChecker reports whether a font family is available to the renderer.
type FontChecker interface {
	HasFont(ctx context.Context, family string) (bool, error)
}

// StyleSelection is the outcome of SelectStyle.
type StyleSelection struct {
	Profile  StyleProfile
	FellBack bool
	Reason   string
}

// SelectStyle attempts the requested profile and falls back once to the
// default profile when its font is unavailable or the check itself fails.
// A nil checker accepts the requested profile as is.
func SelectStyle(ctx context.Context, requested StyleProfile, checker FontChecker) StyleSelection {
	if checker == nil {
		return StyleSelection{Profile: requested}
	}
	ok, err := checker.HasFont(ctx, requested.FontFamily)
	switch {
	case err != nil:
		return StyleSelection{
			Profile:  FallbackProfile(requested.FontSize),
			FellBack: true,
			Reason:   fmt.Sprintf("font check for %q failed: %v", requested.FontFamily, err),
		}
	case !ok:
		return StyleSelection{
			Profile:  FallbackProfile(requested.FontSize),
			FellBack: true,
			Reason:   fmt.Sprintf("font %q not installed", requested.FontFamily),
		}
	default:
		return StyleSelection{Profile: requested}
	}
}
