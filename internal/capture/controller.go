// Package capture records the canvas into a downloadable clip.
//
// The Controller is driven entirely from the loop goroutine. Recorder events
// arrive from the recorder goroutine through the scheduler's Post and carry
// the id of the session that produced them, so events from a session that
// has been abandoned or torn down are dropped.
package capture

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/iburimskiy/glowloop/internal/config"
	"github.com/iburimskiy/glowloop/internal/loop"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("capture: controller closed")

// recordingCeiling caps progress while frames are still being recorded; 100
// is reserved for a finalized clip.
const recordingCeiling = 99.9

// Scheduler is the subset of loop.Scheduler the controller uses.
type Scheduler interface {
	RequestFrame(fn func(now time.Time)) loop.Handle
	Cancel(h loop.Handle)
	Post(fn func())
}

// StreamSource is the canvas side of a capture.
type StreamSource interface {
	CaptureStream(fps int) (*Stream, error)
}

// Options are the fixed capture parameters and the recorder to use.
type Options struct {
	Duration    time.Duration
	FPS         int
	Bitrate     int
	MimeTypes   []string
	ClipDir     string
	NewRecorder RecorderFactory
	Now         func() time.Time
}

// DefaultOptions returns the fixed capture parameters with the MJPEG
// recorder.
func DefaultOptions(clipDir string, log zerolog.Logger) Options {
	return Options{
		Duration:    config.CaptureDuration,
		FPS:         config.CaptureFPS,
		Bitrate:     config.CaptureBitrate,
		MimeTypes:   config.MimeTypePreference,
		ClipDir:     clipDir,
		NewRecorder: NewMJPEGRecorder(log),
		Now:         time.Now,
	}
}

type session struct {
	id       uuid.UUID
	started  time.Time
	chunks   []Chunk
	stream   *Stream
	recorder Recorder
	progress loop.Handle
	muxing   bool
}

type Controller struct {
	log   zerolog.Logger
	sched Scheduler
	src   StreamSource
	opts  Options

	state     State
	progress  float64
	session   *session
	clip      *Clip
	err       error
	listeners []Listener
	closed    bool

	// spawn runs clip muxing off the loop goroutine
	spawn func(fn func())
}

func New(sched Scheduler, src StreamSource, opts Options, log zerolog.Logger) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		log:   log,
		sched: sched,
		src:   src,
		opts:  opts,
		spawn: func(fn func()) { go fn() },
	}
}

func (c *Controller) AddListener(l Listener) { c.listeners = append(c.listeners, l) }

func (c *Controller) State() State { return c.state }

// Progress is the recorded share of the target duration in [0, 100].
func (c *Controller) Progress() float64 { return c.progress }

// Clip returns the current artifact or nil.
func (c *Controller) Clip() *Clip { return c.clip }

// Err returns the error that ended the last capture attempt, if any.
func (c *Controller) Err() error { return c.err }

// Elapsed returns recording time so far; zero unless recording.
func (c *Controller) Elapsed(now time.Time) time.Duration {
	if c.session == nil || c.state != StateRecording {
		return 0
	}
	return min(max(now.Sub(c.session.started), 0), c.opts.Duration)
}

// Start begins a capture session. It is a no-op unless the controller is
// idle. Construction failures leave the controller idle with Err set.
func (c *Controller) Start() error {
	if c.closed {
		return ErrClosed
	}
	if c.state != StateIdle || c.session != nil {
		c.log.Debug().Str("state", c.state.String()).Msg("start ignored, capture in progress")
		return nil
	}
	c.err = nil
	c.progress = 0
	c.revokeClip()

	mime, err := PreferredMimeType(c.opts.MimeTypes)
	if err != nil {
		return c.fail(err)
	}
	stream, err := c.src.CaptureStream(c.opts.FPS)
	if err != nil {
		return c.fail(fmt.Errorf("capture: open stream: %w", err))
	}
	s := &session{id: uuid.New(), stream: stream}
	rec, err := c.opts.NewRecorder(stream, RecorderOptions{
		MimeType:           mime,
		VideoBitsPerSecond: c.opts.Bitrate,
	}, c.handlers(s.id))
	if err != nil {
		stream.Stop()
		return c.fail(fmt.Errorf("capture: create recorder: %w", err))
	}
	if err := rec.Start(); err != nil {
		stream.Stop()
		return c.fail(fmt.Errorf("capture: start recorder: %w", err))
	}
	s.recorder = rec
	s.started = c.opts.Now()
	c.session = s
	c.transition(StateRecording)
	s.progress = c.sched.RequestFrame(c.sampleProgress(s.id))
	c.log.Info().Str("session", s.id.String()).Str("mime", mime).
		Dur("duration", c.opts.Duration).Int("fps", c.opts.FPS).Msg("capture started")
	return nil
}

// Stop ends the recording early. Without an active recording it does
// nothing.
func (c *Controller) Stop() {
	s := c.session
	if s == nil || s.recorder == nil || c.state != StateRecording {
		return
	}
	c.sched.Cancel(s.progress)
	s.progress = 0
	c.transition(StateFinalizing)
	s.recorder.Stop()
}

// Close tears the controller down: the progress loop is cancelled, any
// recorder is stopped and the clip is revoked.
func (c *Controller) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	var result *multierror.Error
	if s := c.session; s != nil {
		c.sched.Cancel(s.progress)
		s.recorder.Stop()
		s.stream.Stop()
		c.session = nil
	}
	if c.clip != nil {
		result = multierror.Append(result, c.clip.Revoke())
		c.clip = nil
	}
	c.progress = 0
	c.transition(StateIdle)
	return result.ErrorOrNil()
}

func (c *Controller) handlers(id uuid.UUID) Handlers {
	return Handlers{
		OnData:  func(ch Chunk) { c.sched.Post(func() { c.onData(id, ch) }) },
		OnStop:  func() { c.sched.Post(func() { c.onStop(id) }) },
		OnError: func(err error) { c.sched.Post(func() { c.onError(id, err) }) },
	}
}

// current returns the live session with the given id, nil when the event
// belongs to a superseded session.
func (c *Controller) current(id uuid.UUID) *session {
	if c.session == nil || c.session.id != id {
		return nil
	}
	return c.session
}

func (c *Controller) sampleProgress(id uuid.UUID) func(now time.Time) {
	return func(now time.Time) {
		s := c.current(id)
		if s == nil || c.state != StateRecording {
			return
		}
		s.progress = 0
		elapsed := now.Sub(s.started)
		pct := math.Min(100, float64(elapsed)/float64(c.opts.Duration)*100)
		c.setProgress(math.Min(pct, recordingCeiling))
		if elapsed >= c.opts.Duration {
			c.log.Debug().Dur("elapsed", elapsed).Msg("capture duration reached")
			c.Stop()
			return
		}
		s.progress = c.sched.RequestFrame(c.sampleProgress(id))
	}
}

func (c *Controller) onData(id uuid.UUID, ch Chunk) {
	s := c.current(id)
	if s == nil {
		c.log.Debug().Str("session", id.String()).Msg("stale chunk dropped")
		return
	}
	s.chunks = append(s.chunks, ch)
}

func (c *Controller) onStop(id uuid.UUID) {
	s := c.current(id)
	if s == nil || s.muxing {
		return
	}
	if c.state == StateRecording {
		// the recorder ended on its own
		c.sched.Cancel(s.progress)
		s.progress = 0
		c.transition(StateFinalizing)
	}
	s.stream.Stop()
	s.muxing = true
	chunks := s.chunks
	s.chunks = nil
	dir, name, fps := c.opts.ClipDir, config.ClipFilePrefix+id.String()+".avi", c.opts.FPS
	c.spawn(func() {
		clip, err := BuildClip(dir, name, config.ClipMimeType, chunks, fps)
		c.sched.Post(func() { c.onClip(id, clip, err) })
	})
}

// onClip receives the muxed clip. A clip for a session that was torn down
// while muxing is revoked straight away.
func (c *Controller) onClip(id uuid.UUID, clip *Clip, err error) {
	if c.current(id) == nil {
		if clip != nil {
			if rerr := clip.Revoke(); rerr != nil {
				c.log.Warn().Err(rerr).Str("path", clip.Path).Msg("revoke stale clip")
			}
		}
		c.log.Debug().Str("session", id.String()).Msg("stale clip dropped")
		return
	}
	if err != nil {
		c.fail(err)
		return
	}
	c.session = nil
	c.clip = clip
	c.progress = 100
	c.log.Info().Str("session", id.String()).Str("path", clip.Path).Int("frames", clip.Frames).
		Int64("bytes", clip.Size).Msg("clip ready")
	c.transition(StateIdle)
}

func (c *Controller) onError(id uuid.UUID, err error) {
	s := c.current(id)
	if s == nil {
		c.log.Debug().Err(err).Str("session", id.String()).Msg("stale recorder error dropped")
		return
	}
	c.sched.Cancel(s.progress)
	s.recorder.Stop()
	s.chunks = nil
	c.fail(fmt.Errorf("capture: recorder: %w", err))
}

// fail abandons the session and returns to idle with progress reset.
func (c *Controller) fail(err error) error {
	if s := c.session; s != nil {
		c.sched.Cancel(s.progress)
		s.stream.Stop()
	}
	c.session = nil
	c.err = err
	c.progress = 0
	c.log.Error().Err(err).Msg("capture failed")
	c.transition(StateIdle)
	return err
}

func (c *Controller) setProgress(p float64) {
	if p > c.progress {
		c.progress = p
	}
}

func (c *Controller) revokeClip() {
	if c.clip == nil {
		return
	}
	if err := c.clip.Revoke(); err != nil {
		c.log.Warn().Err(err).Str("path", c.clip.Path).Msg("revoke clip")
	}
	c.clip = nil
}

func (c *Controller) transition(next State) {
	prev := c.state
	if prev == next {
		return
	}
	c.state = next
	c.log.Debug().Str("from", prev.String()).Str("to", next.String()).Msg("capture state transition")
	for _, l := range c.listeners {
		l(prev, next)
	}
}
