// Package canvas is the on-screen render surface: an offscreen ebiten image
// sized to the display times the device scale factor.
package canvas

import (
	"image"
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/iburimskiy/glowloop/internal/config"
	"github.com/iburimskiy/glowloop/internal/render"
)

var (
	whiteImage    *ebiten.Image
	whiteSubImage *ebiten.Image
	glowSprite    *ebiten.Image
)

func ensureSprites() {
	if whiteImage != nil {
		return
	}
	whiteImage = ebiten.NewImage(3, 3)
	whiteImage.Fill(color.White)
	whiteSubImage = whiteImage.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)
	glowSprite = ebiten.NewImageFromImage(glowFalloff(config.GlowSpriteDim))
}

// glowFalloff builds a premultiplied white disc whose alpha drops
// quadratically to zero at the rim.
func glowFalloff(dim int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, dim, dim))
	r := float64(dim) / 2
	for y := 0; y < dim; y++ {
		for x := 0; x < dim; x++ {
			d := math.Hypot(float64(x)+0.5-r, float64(y)+0.5-r) / r
			if d >= 1 {
				continue
			}
			a := uint8(math.Round(255 * (1 - d) * (1 - d)))
			img.SetRGBA(x, y, color.RGBA{R: a, G: a, B: a, A: a})
		}
	}
	return img
}

// Canvas implements render.Surface on an ebiten image.
type Canvas struct {
	img   *ebiten.Image
	scale float64
	blend ebiten.Blend

	vs []ebiten.Vertex
	is []uint16
}

// New allocates a canvas for the viewport. An empty viewport yields a canvas
// with no backing image; drawing on it is a no-op.
func New(vp render.Viewport) *Canvas {
	ensureSprites()
	c := &Canvas{scale: vp.Scale, blend: ebiten.BlendSourceOver}
	if !vp.Empty() {
		c.img = ebiten.NewImage(vp.BackingWidth, vp.BackingHeight)
	}
	return c
}

// Image returns the backing image, nil for an empty canvas.
func (c *Canvas) Image() *ebiten.Image { return c.img }

// Deallocate releases the GPU memory of the backing image.
func (c *Canvas) Deallocate() {
	if c.img != nil {
		c.img.Deallocate()
		c.img = nil
	}
}

func (c *Canvas) Size() (float64, float64) {
	if c.img == nil {
		return 0, 0
	}
	b := c.img.Bounds()
	return float64(b.Dx()) / c.scale, float64(b.Dy()) / c.scale
}

func (c *Canvas) SetComposite(comp render.Composite) {
	switch comp {
	case render.CompositeLighter:
		c.blend = ebiten.BlendLighter
	default:
		c.blend = ebiten.BlendSourceOver
	}
}

// FillLinearGradient draws two triangles with per-vertex colors; the GPU
// interpolation is exact while the gradient axis ends lie on the corners.
func (c *Canvas) FillLinearGradient(x0, y0, x1, y1 float64, from, to color.NRGBA) {
	if c.img == nil {
		return
	}
	w, h := c.Size()
	corners := [4]render.Point{{X: 0, Y: 0}, {X: w, Y: 0}, {X: 0, Y: h}, {X: w, Y: h}}
	c.vs = c.vs[:0]
	for _, p := range corners {
		clr := render.GradientColor(p.X, p.Y, x0, y0, x1, y1, from, to)
		c.vs = append(c.vs, vertex(p.X*c.scale, p.Y*c.scale, clr))
	}
	c.is = append(c.is[:0], 0, 1, 2, 1, 3, 2)
	c.img.DrawTriangles(c.vs, c.is, whiteSubImage, &ebiten.DrawTrianglesOptions{Blend: c.blend})
}

func (c *Canvas) StrokePolyline(pts []render.Point, width float64, clr color.NRGBA) {
	if c.img == nil || len(pts) < 2 || !(width > 0) {
		return
	}
	var path vector.Path
	path.MoveTo(float32(pts[0].X*c.scale), float32(pts[0].Y*c.scale))
	for _, p := range pts[1:] {
		path.LineTo(float32(p.X*c.scale), float32(p.Y*c.scale))
	}
	op := &vector.StrokeOptions{
		Width:    float32(width * c.scale),
		LineJoin: vector.LineJoinRound,
		LineCap:  vector.LineCapRound,
	}
	c.vs, c.is = path.AppendVerticesAndIndicesForStroke(c.vs[:0], c.is[:0], op)
	r, g, b, a := float32(clr.R)/0xff, float32(clr.G)/0xff, float32(clr.B)/0xff, float32(clr.A)/0xff
	for i := range c.vs {
		c.vs[i].SrcX, c.vs[i].SrcY = 1, 1
		c.vs[i].ColorR, c.vs[i].ColorG, c.vs[i].ColorB, c.vs[i].ColorA = r, g, b, a
	}
	c.img.DrawTriangles(c.vs, c.is, whiteSubImage, &ebiten.DrawTrianglesOptions{
		AntiAlias: true,
		Blend:     c.blend,
	})
}

func (c *Canvas) FillRadialGlow(cx, cy, radius float64, clr color.NRGBA) {
	if c.img == nil || !(radius > 0) {
		return
	}
	dim := float64(config.GlowSpriteDim)
	op := &ebiten.DrawImageOptions{Blend: c.blend, Filter: ebiten.FilterLinear}
	op.GeoM.Translate(-dim/2, -dim/2)
	op.GeoM.Scale(2*radius*c.scale/dim, 2*radius*c.scale/dim)
	op.GeoM.Translate(cx*c.scale, cy*c.scale)
	op.ColorScale.ScaleWithColor(clr)
	c.img.DrawImage(glowSprite, op)
}

func vertex(x, y float64, clr color.NRGBA) ebiten.Vertex {
	return ebiten.Vertex{
		DstX:   float32(x),
		DstY:   float32(y),
		SrcX:   1,
		SrcY:   1,
		ColorR: float32(clr.R) / 0xff,
		ColorG: float32(clr.G) / 0xff,
		ColorB: float32(clr.B) / 0xff,
		ColorA: float32(clr.A) / 0xff,
	}
}

var _ render.Surface = (*Canvas)(nil)
