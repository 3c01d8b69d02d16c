package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	xdraw "golang.org/x/image/draw"
)

// ErrNoSupportedType means none of the requested MIME types can be recorded.
var ErrNoSupportedType = errors.New("capture: no supported mime type")

const (
	initialQuality = 85
	minQuality     = 30
	maxQuality     = 95
)

// RecorderOptions mirrors what a media recorder is configured with.
type RecorderOptions struct {
	MimeType           string
	VideoBitsPerSecond int
}

// Chunk is one encoded piece of the recording.
type Chunk struct {
	Data          []byte
	Width, Height int
	Timestamp     time.Time
}

// Handlers receive recorder events. They are called from the recorder's
// goroutine: OnData any number of times, then exactly one of OnStop or
// OnError.
type Handlers struct {
	OnData  func(Chunk)
	OnStop  func()
	OnError func(error)
}

type Recorder interface {
	Start() error
	// Stop asks the recorder to flush and finish. Calling it on a finished
	// recorder does nothing.
	Stop()
}

// RecorderFactory builds a recorder bound to a stream.
type RecorderFactory func(s *Stream, opts RecorderOptions, h Handlers) (Recorder, error)

var supportedTypes = map[string]bool{
	"video/x-msvideo;codecs=mjpeg": true,
	"video/x-msvideo":              true,
}

func normalizeType(mime string) string {
	return strings.ToLower(strings.ReplaceAll(mime, " ", ""))
}

// IsTypeSupported reports whether the MJPEG recorder can produce mime.
func IsTypeSupported(mime string) bool { return supportedTypes[normalizeType(mime)] }

// PreferredMimeType picks the first supported candidate.
func PreferredMimeType(candidates []string) (string, error) {
	for _, c := range candidates {
		if IsTypeSupported(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: tried %v", ErrNoSupportedType, candidates)
}

// mjpegRecorder encodes every stream frame as a JPEG chunk on its own
// goroutine, steering JPEG quality towards the per-frame byte budget implied
// by the target bitrate.
type mjpegRecorder struct {
	log    zerolog.Logger
	stream *Stream
	h      Handlers

	budget  int
	quality int

	width, height int
	scaled        *image.RGBA
	frames        int

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
}

// NewMJPEGRecorder returns a RecorderFactory for the MJPEG recorder.
func NewMJPEGRecorder(log zerolog.Logger) RecorderFactory {
	return func(s *Stream, opts RecorderOptions, h Handlers) (Recorder, error) {
		if s == nil {
			return nil, errors.New("capture: nil stream")
		}
		if !IsTypeSupported(opts.MimeType) {
			return nil, fmt.Errorf("%w: %q", ErrNoSupportedType, opts.MimeType)
		}
		if h.OnData == nil || h.OnStop == nil || h.OnError == nil {
			return nil, errors.New("capture: all recorder handlers are required")
		}
		budget := 0
		if opts.VideoBitsPerSecond > 0 {
			budget = opts.VideoBitsPerSecond / 8 / s.FPS()
		}
		return &mjpegRecorder{
			log:     log,
			stream:  s,
			h:       h,
			budget:  budget,
			quality: initialQuality,
			stop:    make(chan struct{}),
		}, nil
	}
}

func (r *mjpegRecorder) Start() error {
	err := errors.New("capture: recorder already started")
	r.startOnce.Do(func() {
		if r.stream.Closed() {
			err = ErrStreamClosed
			return
		}
		err = nil
		go r.run()
	})
	return err
}

func (r *mjpegRecorder) Stop() { r.stopOnce.Do(func() { close(r.stop) }) }

func (r *mjpegRecorder) run() {
	frames := r.stream.Frames()
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				r.finish()
				return
			}
			if err := r.encode(f); err != nil {
				r.fail(err)
				return
			}
		case <-r.stop:
			r.stream.Stop()
			for f := range frames {
				if err := r.encode(f); err != nil {
					r.fail(err)
					return
				}
			}
			r.finish()
			return
		}
	}
}

func (r *mjpegRecorder) finish() {
	r.log.Debug().Int("frames", r.frames).Int("quality", r.quality).
		Uint64("dropped", r.stream.Dropped()).Msg("recorder flushed")
	r.h.OnStop()
}

func (r *mjpegRecorder) fail(err error) {
	r.stream.Stop()
	for f := range r.stream.Frames() {
		recycleFrame(f.Image)
	}
	r.h.OnError(err)
}

func (r *mjpegRecorder) encode(f Frame) error {
	defer recycleFrame(f.Image)
	src := f.Image
	if src == nil || src.Rect.Empty() {
		return nil
	}
	if r.width == 0 {
		r.width, r.height = src.Rect.Dx(), src.Rect.Dy()
	}
	var img image.Image = src
	if src.Rect.Dx() != r.width || src.Rect.Dy() != r.height {
		if r.scaled == nil {
			r.scaled = image.NewRGBA(image.Rect(0, 0, r.width, r.height))
		}
		xdraw.ApproxBiLinear.Scale(r.scaled, r.scaled.Bounds(), src, src.Bounds(), xdraw.Src, nil)
		img = r.scaled
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
		return fmt.Errorf("encode frame %d: %w", f.Seq, err)
	}
	r.frames++
	r.quality = nextQuality(r.quality, buf.Len(), r.budget)
	r.h.OnData(Chunk{Data: buf.Bytes(), Width: r.width, Height: r.height, Timestamp: f.Timestamp})
	return nil
}

// nextQuality lowers quality quickly when a chunk overshoots the budget by
// more than 10% and raises it slowly when it undershoots by more than 20%.
func nextQuality(q, size, budget int) int {
	if budget <= 0 {
		return q
	}
	switch {
	case size*10 > budget*11:
		q -= 5
	case size*10 < budget*8:
		q += 2
	}
	return min(max(q, minQuality), maxQuality)
}
