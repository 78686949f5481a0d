package policy

import (
	"fmt"
	"math"

	"captioner/internal/services"
)

// Vertical anchor fractions of frame height.
const (
	TopFraction    = 0.15
	BottomFraction = 0.80
)

// VerticalAlign tells the renderer which edge of the text sits on the anchor.
type VerticalAlign int

const (
	AlignTop VerticalAlign = iota
	AlignMiddle
)

// Coordinates are explicit pixel coordinates supplied by a request.
type Coordinates struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Validate rejects negative or non-finite coordinates.
func (c Coordinates) Validate() error {
	for _, v := range []float64{c.X, c.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return services.Wrap(services.ErrInput, "policy", "coordinates", fmt.Sprintf("invalid coordinates (%v, %v)", c.X, c.Y), nil)
		}
	}
	return nil
}

// Anchor is the point a caption is placed at, horizontally centred on X.
type Anchor struct {
	X     float64
	Y     float64
	Align VerticalAlign
}

// ResolveAnchor places captions for a frame of width x height. Explicit
// coordinates take precedence over the named position on both axes.
func ResolveAnchor(position Position, coords *Coordinates, width, height int) Anchor {
	if coords != nil {
		return Anchor{X: coords.X, Y: coords.Y, Align: AlignMiddle}
	}
	x := float64(width) / 2
	h := float64(height)
	switch position {
	case PositionTop:
		return Anchor{X: x, Y: TopFraction * h, Align: AlignTop}
	case PositionCenter:
		return Anchor{X: x, Y: h / 2, Align: AlignMiddle}
	case PositionBottom:
		fallthrough
	default:
		return Anchor{X: x, Y: BottomFraction * h, Align: AlignTop}
	}
}
