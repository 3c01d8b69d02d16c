package render

import "math"

// Viewport tracks the displayed (logical) size of the canvas and the backing
// resolution derived from the device pixel ratio.
type Viewport struct {
	Width, Height               int
	Scale                       float64
	BackingWidth, BackingHeight int
}

// Resize updates the viewport and reports whether anything changed.
// Negative sizes clamp to zero and a non-positive scale is treated as 1.
func (v *Viewport) Resize(width, height int, scale float64) bool {
	if !(scale > 0) || math.IsInf(scale, 0) {
		scale = 1
	}
	width, height = max(width, 0), max(height, 0)
	bw := int(math.Round(float64(width) * scale))
	bh := int(math.Round(float64(height) * scale))
	changed := width != v.Width || height != v.Height || scale != v.Scale ||
		bw != v.BackingWidth || bh != v.BackingHeight
	*v = Viewport{Width: width, Height: height, Scale: scale, BackingWidth: bw, BackingHeight: bh}
	return changed
}

func (v Viewport) Empty() bool { return v.BackingWidth == 0 || v.BackingHeight == 0 }
