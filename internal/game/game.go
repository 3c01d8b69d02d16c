// Package game is the ebiten front end: it drives the frame scheduler from
// Update, keeps the offscreen canvas in step with the window and draws the
// capture controls on top.
package game

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/iburimskiy/glowloop/internal/canvas"
	"github.com/iburimskiy/glowloop/internal/capture"
	"github.com/iburimskiy/glowloop/internal/config"
	"github.com/iburimskiy/glowloop/internal/cue"
	"github.com/iburimskiy/glowloop/internal/hud"
	"github.com/iburimskiy/glowloop/internal/logger"
	"github.com/iburimskiy/glowloop/internal/loop"
	"github.com/iburimskiy/glowloop/internal/render"
	"github.com/rs/zerolog"
)

type Game struct {
	log      zerolog.Logger
	settings *config.Settings
	now      func() time.Time
	started  time.Time

	sched *loop.Scheduler
	tap   *capture.Tap
	ctrl  *capture.Controller
	cues  *cue.Player

	vp      render.Viewport
	canvas  *canvas.Canvas
	frame   loop.Handle
	resized bool

	// input state
	recordBtn buttonState
	saveBtn   buttonState

	saving  bool
	lastErr error
	closed  bool
}

func New(settings *config.Settings, log zerolog.Logger) *Game {
	sched := loop.New()
	tap := capture.NewTap()
	opts := capture.DefaultOptions(settings.ClipDir, logger.Component(log, "recorder"))
	g := &Game{
		log:      log,
		settings: settings,
		now:      time.Now,
		sched:    sched,
		tap:      tap,
		ctrl:     capture.New(sched, tap, opts, logger.Component(log, "capture")),
		cues:     cue.New(settings.Mute, logger.Component(log, "cue")),
	}
	g.started = g.now()
	g.ctrl.AddListener(g.onTransition)
	return g
}

func (g *Game) Update() error {
	if g.closed {
		return ebiten.Termination
	}
	if ebiten.IsWindowBeingClosed() {
		return g.quit()
	}
	now := g.now()
	if g.resized {
		g.resize()
	}
	g.sched.Tick(now)

	mouseX, mouseY := ebiten.CursorPosition()
	record, save := hud.Buttons(g.ctrl.State())
	if g.recordBtn.update(record, mouseX, mouseY) {
		g.toggleCapture()
	}
	if g.saveBtn.update(save, mouseX, mouseY) && g.model(now).CanSave() {
		g.saveClip()
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		g.startCapture()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyS) {
		g.ctrl.Stop()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyQ) {
		return g.quit()
	}
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	if g.canvas != nil {
		if img := g.canvas.Image(); img != nil {
			screen.DrawImage(img, nil)
		}
	}

	m := g.model(g.now())
	record, save := hud.Buttons(m.State)
	drawButton(screen, record, g.recordBtn, m.State != capture.StateFinalizing)
	drawButton(screen, save, g.saveBtn, m.CanSave())
	if m.ShowProgress() {
		drawProgressBar(screen, m)
	}
	ebitenutil.DebugPrintAt(screen, hud.Status(m), 12, 12)
}

// Layout tracks the window size and device scale factor. The screen is the
// canvas backing resolution, so the canvas is blitted 1:1.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	scale := 1.0
	if m := ebiten.Monitor(); m != nil {
		scale = m.DeviceScaleFactor()
	}
	if g.vp.Resize(outsideWidth, outsideHeight, scale) {
		g.resized = true
	}
	return max(g.vp.BackingWidth, 1), max(g.vp.BackingHeight, 1)
}

// Close cancels the render loop, tears the capture controller down and
// releases the canvas. It is safe to call more than once.
func (g *Game) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true
	g.sched.Cancel(g.frame)
	g.frame = 0
	err := g.ctrl.Close()
	g.cues.Close()
	if g.canvas != nil {
		g.canvas.Deallocate()
	}
	if err != nil {
		g.log.Error().Err(err).Msg("capture teardown")
	}
	return err
}

func (g *Game) quit() error {
	_ = g.Close()
	return ebiten.Termination
}

// resize recreates the canvas for the new viewport and re-registers the
// render loop against it.
func (g *Game) resize() {
	g.resized = false
	g.sched.Cancel(g.frame)
	if g.canvas != nil {
		g.canvas.Deallocate()
	}
	g.canvas = canvas.New(g.vp)
	g.frame = g.sched.RequestFrame(g.renderFrame)
	g.log.Debug().Int("w", g.vp.Width).Int("h", g.vp.Height).Float64("scale", g.vp.Scale).
		Msg("canvas resized")
}

func (g *Game) renderFrame(now time.Time) {
	g.frame = g.sched.RequestFrame(g.renderFrame)
	img := g.canvas.Image()
	if img == nil {
		return
	}
	render.Frame(g.canvas, float64(now.Sub(g.started))/float64(time.Millisecond))
	g.tap.Capture(img, now)
}

func (g *Game) toggleCapture() {
	switch g.ctrl.State() {
	case capture.StateIdle:
		g.startCapture()
	case capture.StateRecording:
		g.ctrl.Stop()
	}
}

func (g *Game) startCapture() {
	if g.saving {
		return
	}
	g.lastErr = nil
	if err := g.ctrl.Start(); err != nil {
		g.lastErr = err
	}
}

func (g *Game) onTransition(prev, next capture.State) {
	switch {
	case next == capture.StateRecording:
		g.cues.Play(cue.Start)
	case prev == capture.StateFinalizing && next == capture.StateIdle && g.ctrl.Clip() != nil:
		g.cues.Play(cue.Ready)
	}
}

func (g *Game) model(now time.Time) hud.Model {
	err := g.lastErr
	if err == nil {
		err = g.ctrl.Err()
	}
	return hud.Model{
		State:    g.ctrl.State(),
		Progress: g.ctrl.Progress(),
		Elapsed:  g.ctrl.Elapsed(now),
		Duration: config.CaptureDuration,
		Clip:     g.ctrl.Clip(),
		Saving:   g.saving,
		Err:      err,
	}
}
