package compositor

import (
	"fmt"
	"math"
)

// Geometry is the output frame size.
type Geometry struct {
	Width  int
	Height int
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d", g.Width, g.Height)
}

// OutputGeometry caps the source height at maxHeight, preserving aspect ratio.
// Both dimensions are rounded down to even numbers for yuv420p.
func OutputGeometry(srcWidth, srcHeight, maxHeight int) (Geometry, error) {
	if srcWidth <= 0 || srcHeight <= 0 {
		return Geometry{}, fmt.Errorf("invalid source size %dx%d", srcWidth, srcHeight)
	}
	width, height := srcWidth, srcHeight
	if maxHeight > 0 && srcHeight > maxHeight {
		height = maxHeight
		width = int(math.Round(float64(srcWidth) * float64(maxHeight) / float64(srcHeight)))
	}
	return Geometry{Width: even(width), Height: even(height)}, nil
}

func even(v int) int {
	v -= v % 2
	if v < 2 {
		return 2
	}
	return v
}
