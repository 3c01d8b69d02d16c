package game

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/iburimskiy/glowloop/internal/config"
	"github.com/iburimskiy/glowloop/internal/hud"
	"github.com/lucasb-eyer/go-colorful"
)

type buttonState struct {
	hovered bool
	pressed bool
}

// update tracks hover and press for b and reports a completed click.
func (s *buttonState) update(b hud.Button, mouseX, mouseY int) bool {
	s.hovered = b.Contains(mouseX, mouseY)
	if s.hovered && inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		s.pressed = true
	}
	clicked := false
	if inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) {
		clicked = s.pressed && s.hovered
		s.pressed = false
	}
	return clicked
}

func drawButton(screen *ebiten.Image, b hud.Button, s buttonState, enabled bool) {
	var bgColor color.Color
	switch {
	case !enabled:
		bgColor = color.RGBA{R: 50, G: 55, B: 70, A: 200}
	case s.pressed:
		bgColor = color.RGBA{R: 60, G: 80, B: 120, A: 230}
	case s.hovered:
		bgColor = color.RGBA{R: 80, G: 100, B: 140, A: 230}
	default:
		bgColor = color.RGBA{R: 100, G: 120, B: 160, A: 230}
	}
	vector.DrawFilledRect(screen, float32(b.X), float32(b.Y), float32(b.W), float32(b.H), bgColor, false)

	borderColor := color.RGBA{R: 150, G: 170, B: 200, A: 255}
	vector.StrokeRect(screen, float32(b.X), float32(b.Y), float32(b.W), float32(b.H), 2, borderColor, false)

	x, y := b.LabelPos()
	ebitenutil.DebugPrintAt(screen, b.Label, x, y)
}

// drawProgressBar draws the capture progress along the bottom of the screen.
func drawProgressBar(screen *ebiten.Image, m hud.Model) {
	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	barX := config.ProgressBarMargin
	barWidth := sw - 2*config.ProgressBarMargin
	barHeight := config.ProgressBarHeight
	barY := sh - config.ProgressBarMargin - barHeight - 16
	if barWidth <= 0 || barY <= 0 {
		return
	}

	vector.DrawFilledRect(screen, float32(barX), float32(barY), float32(barWidth), float32(barHeight), color.RGBA{R: 25, G: 30, B: 40, A: 200}, false)
	vector.StrokeRect(screen, float32(barX), float32(barY), float32(barWidth), float32(barHeight), 2, color.RGBA{R: 70, G: 80, B: 100, A: 255}, false)

	if fill := hud.ProgressFill(barWidth, m.Progress); fill > 0 {
		r, g, b := colorful.Hsv(200-m.Progress*1.2, 0.8, 0.9).Clamped().RGB255()
		vector.DrawFilledRect(screen, float32(barX), float32(barY), float32(fill), float32(barHeight), color.RGBA{R: r, G: g, B: b, A: 200}, false)
	}

	elapsed, total := m.Times()
	ebitenutil.DebugPrintAt(screen, elapsed, barX, barY+barHeight+4)
	ebitenutil.DebugPrintAt(screen, total, barX+barWidth-len(total)*6, barY+barHeight+4)
}
