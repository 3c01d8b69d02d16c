package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/iburimskiy/glowloop/internal/config"
	"github.com/iburimskiy/glowloop/internal/game"
	"github.com/iburimskiy/glowloop/internal/logger"
)

func main() {
	settings, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(settings.Debug, "glowloop")
	log.Debug().Str("clip_dir", settings.ClipDir).Bool("mute", settings.Mute).Msg("settings loaded")

	ebiten.SetWindowSize(config.WindowWidth, config.WindowHeight)
	ebiten.SetWindowTitle(settings.Title + " - R: record, S: stop, Esc/Q: quit")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowClosingHandled(true)
	ebiten.SetTPS(config.CaptureFPS)

	g := game.New(settings, log)
	err = ebiten.RunGame(g)
	_ = g.Close()
	if err != nil && !errors.Is(err, ebiten.Termination) {
		log.Fatal().Err(err).Msg("run")
	}
}
