package game

import (
	"errors"
	"path/filepath"

	"github.com/iburimskiy/glowloop/internal/config"
	"github.com/ncruces/zenity"
)

// saveClip asks for a destination and copies the current clip there. The
// dialog blocks, so it runs on its own goroutine and reports back through
// the scheduler.
func (g *Game) saveClip() {
	clip := g.ctrl.Clip()
	if clip == nil || g.saving {
		return
	}
	g.saving = true
	g.lastErr = nil
	go func() {
		path, err := zenity.SelectFileSave(
			zenity.Title(config.ClipTitle),
			zenity.Filename(config.ClipFilename),
			zenity.ConfirmOverwrite(),
			zenity.FileFilters{{
				Name:     "AVI video",
				Patterns: []string{"*.avi"},
			}},
		)
		if err == nil {
			if filepath.Ext(path) == "" {
				path += filepath.Ext(config.ClipFilename)
			}
			err = clip.SaveTo(path)
		}
		g.sched.Post(func() {
			g.saving = false
			switch {
			case errors.Is(err, zenity.ErrCanceled):
			case err != nil:
				g.lastErr = err
				g.log.Error().Err(err).Msg("save clip")
			default:
				g.log.Info().Str("path", path).Int64("bytes", clip.Size).Msg("clip saved")
			}
		})
	}()
}
