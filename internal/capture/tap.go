package capture

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/iburimskiy/glowloop/internal/config"
)

var ErrStreamClosed = errors.New("capture: stream closed")

// PixelReader is the part of the render surface the tap needs.
// *ebiten.Image satisfies it.
type PixelReader interface {
	Bounds() image.Rectangle
	ReadPixels(pixels []byte)
}

// Frame is one tapped canvas image. Image is pooled and owned by whoever
// receives the frame.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Image     *image.RGBA
}

// Tap copies the canvas into an open Stream at the stream's frame rate.
type Tap struct {
	mu     sync.Mutex
	stream *Stream
}

func NewTap() *Tap { return &Tap{} }

// CaptureStream opens a live stream of canvas frames at fps. Opening a new
// stream ends the previous one.
func (t *Tap) CaptureStream(fps int) (*Stream, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("capture: invalid frame rate %d", fps)
	}
	s := &Stream{
		tap:      t,
		fps:      fps,
		interval: time.Second / time.Duration(fps),
		frames:   make(chan Frame, config.CaptureBufferSize),
	}
	t.mu.Lock()
	old := t.stream
	t.stream = s
	t.mu.Unlock()
	if old != nil {
		old.Stop()
	}
	return s, nil
}

// Active reports whether a stream is open.
func (t *Tap) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stream != nil
}

// Capture reads src into the open stream when a frame is due and reports
// whether a frame was taken. With no open stream it does nothing.
func (t *Tap) Capture(src PixelReader, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.stream
	if s == nil || src == nil || !s.due(now) {
		return false
	}
	b := src.Bounds()
	if b.Empty() {
		return false
	}
	img := acquireFrame(image.Rect(0, 0, b.Dx(), b.Dy()))
	src.ReadPixels(img.Pix)
	s.seq++
	s.push(Frame{Seq: s.seq, Timestamp: now, Image: img})
	return true
}

// Stream is a live, bounded sequence of canvas frames. When the consumer
// falls behind the oldest buffered frame is dropped.
type Stream struct {
	tap      *Tap
	fps      int
	interval time.Duration
	frames   chan Frame

	// guarded by tap.mu
	next    time.Time
	seq     uint64
	dropped uint64
	closed  bool
}

func (s *Stream) Frames() <-chan Frame { return s.frames }
func (s *Stream) FPS() int             { return s.fps }

func (s *Stream) Closed() bool {
	s.tap.mu.Lock()
	defer s.tap.mu.Unlock()
	return s.closed
}

func (s *Stream) Dropped() uint64 {
	s.tap.mu.Lock()
	defer s.tap.mu.Unlock()
	return s.dropped
}

// Stop ends the stream. Buffered frames stay readable until the channel
// drains. Safe to call more than once and from any goroutine.
func (s *Stream) Stop() {
	s.tap.mu.Lock()
	defer s.tap.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.tap.stream == s {
		s.tap.stream = nil
	}
	close(s.frames)
}

// due reports whether a frame is owed at now. A quarter interval of slack
// absorbs tick jitter so a 60 Hz loop is not halved.
func (s *Stream) due(now time.Time) bool {
	if s.closed {
		return false
	}
	if !s.next.IsZero() && now.Before(s.next.Add(-s.interval/4)) {
		return false
	}
	if s.next.IsZero() {
		s.next = now
	}
	s.next = s.next.Add(s.interval)
	if s.next.Before(now) {
		s.next = now.Add(s.interval)
	}
	return true
}

func (s *Stream) push(f Frame) {
	select {
	case s.frames <- f:
		return
	default:
	}
	select {
	case old := <-s.frames:
		recycleFrame(old.Image)
		s.dropped++
	default:
	}
	select {
	case s.frames <- f:
	default:
		recycleFrame(f.Image)
		s.dropped++
	}
}
