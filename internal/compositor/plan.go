package compositor

import (
	"math"

	"captioner/internal/policy"
	"captioner/internal/transcript"
)

// frameEpsilon absorbs float error when mapping seconds onto frame indices.
const frameEpsilon = 1e-9

// VisibleDuration is how long a segment stays on screen.
func VisibleDuration(seg transcript.Segment, minVisible float64) float64 {
	return math.Max(seg.End-seg.Start, minVisible)
}

// FrameSpan returns the output frames [first, last) whose timestamps fall in
// [start, start+visible).
func FrameSpan(start, visible float64, fps int) (int, int) {
	first := int(math.Ceil(start*float64(fps) - frameEpsilon))
	last := int(math.Ceil((start+visible)*float64(fps) - frameEpsilon))
	if first < 0 {
		first = 0
	}
	if last < first {
		last = first
	}
	return first, last
}

// Overlay is one caption drawn unchanged over a run of output frames.
type Overlay struct {
	Layer      int
	FirstFrame int
	EndFrame   int
	Text       string
	X          int
	Y          int
	ScalePct   int
	Alpha      int
	Align      policy.VerticalAlign
}

// Plan is the full set of overlays for one render.
type Plan struct {
	Geometry Geometry
	FPS      int
	Profile  policy.StyleProfile
	Overlays []Overlay
}

type overlayState struct {
	x, y, scale, alpha int
}

// BuildPlan expands segments into overlays. Segments keep their order as
// drawing layers so later words are composited above earlier ones.
func BuildPlan(segments []transcript.Segment, anchor policy.Anchor, animation policy.Animation, geometry Geometry, profile policy.StyleProfile, fps int, minVisible float64) Plan {
	plan := Plan{Geometry: geometry, FPS: fps, Profile: profile}
	for layer, seg := range segments {
		if seg.Word == "" {
			continue
		}
		first, last := FrameSpan(seg.Start, VisibleDuration(seg, minVisible), fps)
		var (
			current Overlay
			open    bool
		)
		for k := first; k < last; k++ {
			local := float64(k)/float64(fps) - seg.Start
			state := quantize(anchor, animation.Offset(local))
			if open && state == (overlayState{current.X, current.Y, current.ScalePct, current.Alpha}) {
				current.EndFrame = k + 1
				continue
			}
			if open {
				plan.Overlays = append(plan.Overlays, current)
			}
			current = Overlay{
				Layer:      layer,
				FirstFrame: k,
				EndFrame:   k + 1,
				Text:       seg.Word,
				X:          state.x,
				Y:          state.y,
				ScalePct:   state.scale,
				Alpha:      state.alpha,
				Align:      anchor.Align,
			}
			open = true
		}
		if open {
			plan.Overlays = append(plan.Overlays, current)
		}
	}
	return plan
}

func quantize(anchor policy.Anchor, off policy.Offset) overlayState {
	opacity := math.Min(math.Max(off.Opacity, 0), 1)
	return overlayState{
		x:     int(math.Round(anchor.X + off.DX)),
		y:     int(math.Round(anchor.Y + off.DY)),
		scale: int(math.Round(off.Scale * 100)),
		alpha: int(math.Round((1 - opacity) * 255)),
	}
}
