package render

import (
	"image/color"
	"math"

	"github.com/iburimskiy/glowloop/internal/config"
	"github.com/lucasb-eyer/go-colorful"
)

// Hue returns the cycling hue in degrees for time t (seconds), shifted by
// offset. The result is always in [0, 360).
func Hue(t, offset float64) float64 {
	h := math.Mod(t*config.HueRate+offset, 360)
	if math.IsNaN(h) {
		return 0
	}
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		h = 0
	}
	return h
}

// hsv converts HSV (hue: 0-360, saturation: 0-1, value: 0-1) to a color
// with straight alpha a.
func hsv(h, s, v float64, a uint8) color.NRGBA {
	r, g, b := colorful.Hsv(h, s, v).Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: a}
}

func lerpColor(from, to color.NRGBA, t float64) color.NRGBA {
	t = clamp01(t)
	mix := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
	}
	return color.NRGBA{R: mix(from.R, to.R), G: mix(from.G, to.G), B: mix(from.B, to.B), A: mix(from.A, to.A)}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// gradientParam projects (x,y) onto the gradient axis; 0 at the start stop
// and 1 at the end stop.
func gradientParam(x, y, x0, y0, x1, y1 float64) float64 {
	dx, dy := x1-x0, y1-y0
	den := dx*dx + dy*dy
	if den == 0 {
		return 0
	}
	return clamp01(((x-x0)*dx + (y-y0)*dy) / den)
}

// GradientColor returns the gradient color at (x,y). Exported for surface
// implementations outside this package.
func GradientColor(x, y, x0, y0, x1, y1 float64, from, to color.NRGBA) color.NRGBA {
	return lerpColor(from, to, gradientParam(x, y, x0, y0, x1, y1))
}
