package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Debug || s.Mute || s.Title != "glowloop" {
		t.Fatalf("unexpected defaults: %+v", s)
	}
	if s.ClipDir == "" {
		t.Fatalf("clip dir must default to a temp location")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	clips := filepath.Join(dir, "clips")
	data := "debug: true\nmute: true\nclip_dir: " + clips + "\n"
	if err := os.WriteFile(filepath.Join(dir, SettingsFile), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !s.Debug || !s.Mute || s.ClipDir != clips {
		t.Fatalf("file values not applied: %+v", s)
	}
}
