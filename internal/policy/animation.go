package policy

import "math"

// Animation constants, in seconds and pixels.
const (
	PopFadeSeconds   = 0.1
	SlideSeconds     = 0.2
	SlideDistance    = 50.0
	BounceFrequency  = 10.0
	BounceAmplitude  = 15.0
	KaraokeFrequency = math.Pi
	KaraokeAmplitude = 0.2
)

// Offset is applied to an overlay at one instant. DY is in pixels with
// positive values moving the caption down.
type Offset struct {
	DX      float64
	DY      float64
	Scale   float64
	Opacity float64
}

// Identity is the offset of a caption at rest.
var Identity = Offset{Scale: 1, Opacity: 1}

// Offset evaluates the animation at local seconds since the caption appeared.
// It is a pure function of its argument.
func (a Animation) Offset(local float64) Offset {
	if local < 0 {
		local = 0
	}
	out := Identity
	switch a {
	case AnimationPop:
		out.Opacity = math.Min(local/PopFadeSeconds, 1)
	case AnimationSlide:
		if local < SlideSeconds {
			out.DY = SlideDistance * (1 - local/SlideSeconds)
		}
	case AnimationBounce:
		out.DY = -math.Abs(math.Sin(BounceFrequency*local)) * BounceAmplitude
	case AnimationKaraoke:
		out.Scale = 1 + KaraokeAmplitude*math.Sin(KaraokeFrequency*local)
	case AnimationNone:
	}
	return out
}
