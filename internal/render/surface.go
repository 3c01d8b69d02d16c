// Package render draws the generative animation.
//
// Frame is a pure function of time. It talks to a Surface in logical
// coordinates; each Surface implementation maps them onto its own backing
// resolution.
package render

import "image/color"

// Composite selects how subsequent drawing combines with existing pixels.
type Composite int

const (
	CompositeSourceOver Composite = iota
	// CompositeLighter adds source to destination, saturating at white.
	CompositeLighter
)

func (c Composite) String() string {
	switch c {
	case CompositeSourceOver:
		return "source-over"
	case CompositeLighter:
		return "lighter"
	}
	return "unknown"
}

type Point struct{ X, Y float64 }

// Surface is a 2D drawing target.
type Surface interface {
	// Size returns the logical size. Zero means nothing is drawn.
	Size() (w, h float64)
	SetComposite(c Composite)
	// FillLinearGradient covers the whole surface with a gradient running
	// from (x0,y0) to (x1,y1).
	FillLinearGradient(x0, y0, x1, y1 float64, from, to color.NRGBA)
	StrokePolyline(pts []Point, width float64, c color.NRGBA)
	// FillRadialGlow draws a disc of the given radius fading from c at the
	// center to transparent at the rim.
	FillRadialGlow(cx, cy, radius float64, c color.NRGBA)
}
