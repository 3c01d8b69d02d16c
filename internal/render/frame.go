package render

import (
	"math"

	"github.com/iburimskiy/glowloop/internal/config"
)

// Frame paints one full frame for time ms (milliseconds since an arbitrary
// epoch). The output depends on ms and the surface size only.
func Frame(s Surface, ms float64) {
	w, h := s.Size()
	if !(w > 0 && h > 0) {
		return
	}
	t := ms / 1000
	if math.IsNaN(t) || math.IsInf(t, 0) {
		t = 0
	}

	s.SetComposite(CompositeSourceOver)
	drawBackground(s, w, h, t)
	drawWaves(s, w, h, t)

	s.SetComposite(CompositeLighter)
	drawGlows(s, w, h, t)
	s.SetComposite(CompositeSourceOver)
}

func drawBackground(s Surface, w, h, t float64) {
	from := hsv(Hue(t, 0), 0.55, 0.22, 255)
	to := hsv(Hue(t, config.HueSpread), 0.65, 0.38, 255)
	s.FillLinearGradient(0, 0, w, h, from, to)
}

func drawWaves(s Surface, w, h, t float64) {
	n := int(math.Ceil(w/config.WaveStep)) + 1
	for i := 0; i < config.WaveLayers; i++ {
		fi := float64(i)
		var (
			speed = 0.4 + fi*0.22
			amp   = h * (0.05 + 0.025*fi)
			waves = 1.2 + fi*0.45
			width = 1.2 + fi*0.7
			alpha = 0.12 + 0.08*fi
			base  = h * (0.35 + 0.08*fi)
		)
		pts := make([]Point, 0, n)
		for j := 0; j < n; j++ {
			x := math.Min(w, float64(j)*config.WaveStep)
			phase := x/w*waves*2*math.Pi + t*speed + fi*1.7
			y := base + amp*math.Sin(phase) + amp*0.35*math.Sin(phase*0.5-t*0.8)
			pts = append(pts, Point{X: x, Y: y})
		}
		c := hsv(Hue(t, 150+fi*25), 0.5, 1, uint8(alpha*255))
		s.StrokePolyline(pts, width, c)
	}
}

// drawGlows places the point lights on a rotating circle whose radius
// breathes per light.
func drawGlows(s Surface, w, h, t float64) {
	cx, cy := w/2, h/2
	minDim := math.Min(w, h)
	spin := t * 0.35
	for i := 0; i < config.GlowCount; i++ {
		fi := float64(i)
		angle := spin + fi*2*math.Pi/config.GlowCount
		orbit := minDim * (0.32 + 0.08*math.Sin(t*1.3+fi*0.7))
		x := cx + math.Cos(angle)*orbit*1.4
		y := cy + math.Sin(angle)*orbit
		radius := minDim * (0.04 + 0.02*(0.5+0.5*math.Sin(t*2.1+fi)))
		c := hsv(Hue(t, fi*360/config.GlowCount), 0.6, 1, 200)
		s.FillRadialGlow(x, y, radius, c)
	}
}
