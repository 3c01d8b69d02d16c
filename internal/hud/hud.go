// Package hud holds the layout and text of the on-screen controls. Drawing
// lives in package game; everything here is plain data so it can be tested
// without a window.
package hud

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/iburimskiy/glowloop/internal/capture"
	"github.com/iburimskiy/glowloop/internal/config"
)

const glyphWidth = 6 // ebitenutil debug font

type Button struct {
	X, Y, W, H int
	Label      string
}

func (b Button) Contains(x, y int) bool {
	return x >= b.X && x <= b.X+b.W && y >= b.Y && y <= b.Y+b.H
}

// LabelPos centers the label inside the button.
func (b Button) LabelPos() (int, int) {
	tw := len(b.Label) * glyphWidth
	return b.X + (b.W-tw)/2, b.Y + (b.H-16)/2
}

// Buttons returns the record and save buttons for the given capture state.
func Buttons(state capture.State) (record, save Button) {
	record = Button{
		X: config.ButtonX, Y: config.ButtonY,
		W: config.ButtonWidth, H: config.ButtonHeight,
		Label: RecordLabel(state),
	}
	save = record
	save.X += config.ButtonWidth + config.ButtonGap
	save.Label = "Save"
	return record, save
}

func RecordLabel(state capture.State) string {
	switch state {
	case capture.StateRecording:
		return "Stop"
	case capture.StateFinalizing:
		return "Finishing..."
	default:
		return "Record"
	}
}

// Model is what the HUD shows for one frame.
type Model struct {
	State    capture.State
	Progress float64
	Elapsed  time.Duration
	Duration time.Duration
	Clip     *capture.Clip
	Saving   bool
	Err      error
}

// ShowProgress reports whether the progress bar is visible.
func (m Model) ShowProgress() bool {
	return m.State == capture.StateRecording || m.State == capture.StateFinalizing
}

// CanSave reports whether the save button is live.
func (m Model) CanSave() bool {
	return m.State == capture.StateIdle && m.Clip != nil && !m.Saving
}

// ProgressFill is the filled width of a bar of the given width.
func ProgressFill(width int, progress float64) float64 {
	return clamp01(progress/100) * float64(width)
}

// Status is the one-line status text.
func Status(m Model) string {
	var s string
	switch m.State {
	case capture.StateRecording:
		s = fmt.Sprintf("Recording %s / %s (%.0f%%) - S to stop",
			formatDuration(m.Elapsed), formatDuration(m.Duration), m.Progress)
	case capture.StateFinalizing:
		s = "Finishing clip..."
	default:
		switch {
		case m.Saving:
			s = "Saving clip..."
		case m.Clip != nil:
			s = fmt.Sprintf("Clip ready: %s, %s - click Save, R to record again",
				formatDuration(m.Clip.Duration), humanize.Bytes(uint64(m.Clip.Size)))
		default:
			s = fmt.Sprintf("R to record a %s clip, Esc/Q to quit", formatDuration(m.Duration))
		}
	}
	if m.Err != nil {
		s += " | Error: " + m.Err.Error()
	}
	return s
}

// Times returns the elapsed and total labels under the progress bar. While
// finalizing the elapsed label is derived from progress.
func (m Model) Times() (elapsed, total string) {
	e := m.Elapsed
	if m.State == capture.StateFinalizing {
		e = time.Duration(clamp01(m.Progress/100) * float64(m.Duration))
	}
	return formatDuration(e), formatDuration(m.Duration)
}
