package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
)

// Raster is a software Surface on top of an *image.RGBA. Stroke coverage
// comes from golang.org/x/image/vector; gradients and glows are evaluated
// per pixel.
type Raster struct {
	img       *image.RGBA
	scale     float64
	composite Composite

	z    *vector.Rasterizer
	mask *image.Alpha
}

// NewRaster wraps img. Logical coordinates are multiplied by scale.
func NewRaster(img *image.RGBA, scale float64) *Raster {
	if !(scale > 0) {
		scale = 1
	}
	return &Raster{img: img, scale: scale}
}

func (r *Raster) Image() *image.RGBA { return r.img }

func (r *Raster) Size() (float64, float64) {
	b := r.img.Bounds()
	return float64(b.Dx()) / r.scale, float64(b.Dy()) / r.scale
}

func (r *Raster) SetComposite(c Composite) { r.composite = c }

func (r *Raster) FillLinearGradient(x0, y0, x1, y1 float64, from, to color.NRGBA) {
	b := r.img.Bounds()
	x0, y0, x1, y1 = x0*r.scale, y0*r.scale, x1*r.scale, y1*r.scale
	for py := b.Min.Y; py < b.Max.Y; py++ {
		for px := b.Min.X; px < b.Max.X; px++ {
			fx, fy := float64(px-b.Min.X)+0.5, float64(py-b.Min.Y)+0.5
			r.blend(px, py, GradientColor(fx, fy, x0, y0, x1, y1, from, to), 1)
		}
	}
}

func (r *Raster) StrokePolyline(pts []Point, width float64, c color.NRGBA) {
	b := r.img.Bounds()
	if len(pts) < 2 || !(width > 0) || b.Empty() {
		return
	}
	w, h := b.Dx(), b.Dy()
	if r.z == nil {
		r.z = vector.NewRasterizer(w, h)
	} else {
		r.z.Reset(w, h)
	}
	r.z.DrawOp = draw.Src
	hw := width * r.scale / 2
	for i := 1; i < len(pts); i++ {
		px, py := pts[i-1].X*r.scale, pts[i-1].Y*r.scale
		qx, qy := pts[i].X*r.scale, pts[i].Y*r.scale
		dx, dy := qx-px, qy-py
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		nx, ny := -dy/l*hw, dx/l*hw
		r.z.MoveTo(float32(px+nx), float32(py+ny))
		r.z.LineTo(float32(qx+nx), float32(qy+ny))
		r.z.LineTo(float32(qx-nx), float32(qy-ny))
		r.z.LineTo(float32(px-nx), float32(py-ny))
		r.z.ClosePath()
	}
	if r.mask == nil || r.mask.Bounds().Dx() != w || r.mask.Bounds().Dy() != h {
		r.mask = image.NewAlpha(image.Rect(0, 0, w, h))
	}
	r.z.Draw(r.mask, r.mask.Bounds(), image.Opaque, image.Point{})
	for y := 0; y < h; y++ {
		row := r.mask.Pix[y*r.mask.Stride : y*r.mask.Stride+w]
		for x, cov := range row {
			if cov == 0 {
				continue
			}
			r.blend(b.Min.X+x, b.Min.Y+y, c, float64(cov)/255)
		}
	}
}

func (r *Raster) FillRadialGlow(cx, cy, radius float64, c color.NRGBA) {
	if !(radius > 0) {
		return
	}
	b := r.img.Bounds()
	cx, cy, radius = cx*r.scale, cy*r.scale, radius*r.scale
	area := image.Rect(
		int(math.Floor(cx-radius)), int(math.Floor(cy-radius)),
		int(math.Ceil(cx+radius)), int(math.Ceil(cy+radius)),
	).Add(b.Min).Intersect(b)
	for py := area.Min.Y; py < area.Max.Y; py++ {
		for px := area.Min.X; px < area.Max.X; px++ {
			d := math.Hypot(float64(px-b.Min.X)+0.5-cx, float64(py-b.Min.Y)+0.5-cy) / radius
			if d >= 1 {
				continue
			}
			f := (1 - d) * (1 - d)
			r.blend(px, py, c, f)
		}
	}
}

// blend composites c, scaled by coverage, onto the pixel at (x,y).
func (r *Raster) blend(x, y int, c color.NRGBA, coverage float64) {
	a := float64(c.A) / 255 * coverage
	if a <= 0 {
		return
	}
	i := r.img.PixOffset(x, y)
	p := r.img.Pix[i : i+4 : i+4]
	src := [4]float64{float64(c.R) * a, float64(c.G) * a, float64(c.B) * a, 255 * a}
	for k := 0; k < 4; k++ {
		var v float64
		switch r.composite {
		case CompositeLighter:
			v = float64(p[k]) + src[k]
		default:
			v = src[k] + float64(p[k])*(1-a)
		}
		p[k] = uint8(math.Min(255, math.Round(v)))
	}
}
