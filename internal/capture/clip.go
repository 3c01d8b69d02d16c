package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
)

var (
	ErrEmptyClip = errors.New("capture: no frames recorded")
	ErrRevoked   = errors.New("capture: clip revoked")
)

// Clip is the finished recording: a video file owned by the controller until
// it is revoked.
type Clip struct {
	Path          string
	MimeType      string
	Frames        int
	Size          int64
	Duration      time.Duration
	Width, Height int

	mu      sync.Mutex
	revoked bool
}

// BuildClip muxes chunks into dir/name and returns the clip.
func BuildClip(dir, name, mime string, chunks []Chunk, fps int) (*Clip, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyClip
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("capture: clip dir: %w", err)
	}
	w, h := chunks[0].Width, chunks[0].Height
	frames := make([][]byte, len(chunks))
	for i, c := range chunks {
		frames[i] = c.Data
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("capture: create clip: %w", err)
	}
	bw := bufio.NewWriter(f)
	var result *multierror.Error
	result = multierror.Append(result, writeAVI(bw, frames, w, h, fps))
	result = multierror.Append(result, bw.Flush())
	result = multierror.Append(result, f.Close())
	if err := result.ErrorOrNil(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("capture: write clip: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("capture: stat clip: %w", err)
	}
	return &Clip{
		Path:     path,
		MimeType: mime,
		Frames:   len(chunks),
		Size:     info.Size(),
		Duration: time.Duration(len(chunks)) * time.Second / time.Duration(fps),
		Width:    w,
		Height:   h,
	}, nil
}

// Revoke deletes the backing file. Revoking twice is fine.
func (c *Clip) Revoke() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.revoked {
		return nil
	}
	c.revoked = true
	if err := os.Remove(c.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (c *Clip) Revoked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revoked
}

// SaveTo copies the clip to dst.
func (c *Clip) SaveTo(dst string) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.revoked {
		return ErrRevoked
	}
	src, err := os.Open(c.Path)
	if err != nil {
		return err
	}
	defer src.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, src)
	return err
}
