package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/kkyr/fig"
)

const (
	WindowWidth  = 1024
	WindowHeight = 512

	// Button dimensions
	ButtonWidth  = 140
	ButtonHeight = 40
	ButtonX      = 20
	ButtonY      = 40
	ButtonGap    = 12

	// Progress bar, drawn along the bottom edge while capturing
	ProgressBarHeight = 10
	ProgressBarMargin = 20

	// Visualization parameters
	WaveLayers    = 5
	WaveStep      = 6
	GlowCount     = 24
	GlowSpriteDim = 128
	HueRate       = 12.0 // degrees per second
	HueSpread     = 60.0

	// Capture parameters
	CaptureDuration    = 12 * time.Second
	CaptureFPS         = 60
	CaptureBitrate     = 8_000_000
	CaptureBufferSize  = 8
	ClipFilename       = "glowloop.avi"
	ClipMimeType       = "video/x-msvideo"
	ClipFilePrefix     = "glowloop-"
	ClipTitle          = "Save clip"
	SettingsFile       = "glowloop.yaml"
	settingsConfigPath = "glowloop"
)

// MimeTypePreference is the ordered list of container/codec types the
// recorder is asked for.
var MimeTypePreference = []string{
	"video/x-msvideo;codecs=mjpeg",
	"video/x-msvideo",
}

// Settings are the few knobs that are not fixed at build time.
type Settings struct {
	Debug   bool   `fig:"debug"`
	Title   string `fig:"title" default:"glowloop"`
	ClipDir string `fig:"clip_dir"`
	Mute    bool   `fig:"mute"`
}

// Load reads settings from SettingsFile found in path, the working directory
// or the user config directory. A missing file yields the defaults.
func Load(path string) (*Settings, error) {
	var s Settings
	dirs := []string{"."}
	if path != "" {
		dirs = []string{path}
	} else if dir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(dir, settingsConfigPath))
	}
	err := fig.Load(&s, fig.File(SettingsFile), fig.Dirs(dirs...))
	if errors.Is(err, fig.ErrFileNotFound) {
		s = Settings{}
		err = fig.Load(&s, fig.IgnoreFile())
	}
	if err != nil {
		return nil, err
	}
	if s.ClipDir == "" {
		s.ClipDir = filepath.Join(os.TempDir(), settingsConfigPath)
	}
	return &s, nil
}
