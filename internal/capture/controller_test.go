package capture

import (
	"bytes"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/iburimskiy/glowloop/internal/config"
	"github.com/iburimskiy/glowloop/internal/loop"
	"github.com/rs/zerolog"
)

const tick = time.Second / 60

// fakeRecorder flushes synchronously: the first Stop emits its chunks and
// then OnStop, both of which the controller receives through Post.
type fakeRecorder struct {
	h        Handlers
	chunks   int
	silent   bool
	startErr error
	starts   int
	stops    int
}

func (r *fakeRecorder) Start() error {
	r.starts++
	return r.startErr
}

func (r *fakeRecorder) Stop() {
	r.stops++
	if r.stops > 1 || r.silent {
		return
	}
	for i := 0; i < r.chunks; i++ {
		r.h.OnData(Chunk{Data: []byte{0xff, 0xd8, byte(i), 0xff, 0xd9}, Width: 4, Height: 2})
	}
	r.h.OnStop()
}

type harness struct {
	t     *testing.T
	now   time.Time
	sched *loop.Scheduler
	tap   *Tap
	ctrl  *Controller
	recs  []*fakeRecorder

	// applied to every recorder the factory builds
	chunks     int
	silent     bool
	startErr   error
	factoryErr error
}

func newHarness(t *testing.T) *harness {
	h := &harness{t: t, now: epoch, sched: loop.New(), tap: NewTap(), chunks: 3}
	opts := Options{
		Duration:  config.CaptureDuration,
		FPS:       config.CaptureFPS,
		Bitrate:   config.CaptureBitrate,
		MimeTypes: config.MimeTypePreference,
		ClipDir:   t.TempDir(),
		NewRecorder: func(s *Stream, o RecorderOptions, hs Handlers) (Recorder, error) {
			if h.factoryErr != nil {
				return nil, h.factoryErr
			}
			r := &fakeRecorder{h: hs, chunks: h.chunks, silent: h.silent, startErr: h.startErr}
			h.recs = append(h.recs, r)
			return r, nil
		},
		Now: func() time.Time { return h.now },
	}
	h.ctrl = New(h.sched, h.tap, opts, zerolog.Nop())
	h.ctrl.spawn = func(fn func()) { fn() }
	return h
}

func (h *harness) step(d time.Duration) {
	h.now = h.now.Add(d)
	h.sched.Tick(h.now)
}

// flush delivers the recorder's stop, then the muxed clip.
func (h *harness) flush() {
	h.step(tick)
	h.step(tick)
}

func (h *harness) start() {
	h.t.Helper()
	if err := h.ctrl.Start(); err != nil {
		h.t.Fatalf("start: %v", err)
	}
	if h.ctrl.State() != StateRecording {
		h.t.Fatalf("state after start is %v", h.ctrl.State())
	}
}

func (h *harness) rec() *fakeRecorder {
	h.t.Helper()
	if len(h.recs) == 0 {
		h.t.Fatalf("no recorder created")
	}
	return h.recs[len(h.recs)-1]
}

func TestController_AutoStopsAfterDuration(t *testing.T) {
	h := newHarness(t)
	h.start()

	last := 0.0
	steps := 0
	for h.ctrl.State() == StateRecording {
		if steps > 2*config.CaptureFPS*int(config.CaptureDuration/time.Second) {
			t.Fatalf("still recording after %d ticks", steps)
		}
		h.step(tick)
		steps++
		p := h.ctrl.Progress()
		if p < last || p >= 100 {
			t.Fatalf("tick %d: progress %v after %v", steps, p, last)
		}
		last = p
	}
	if elapsed := h.now.Sub(epoch); elapsed < config.CaptureDuration || elapsed > config.CaptureDuration+tick {
		t.Fatalf("stopped after %v", elapsed)
	}
	if h.ctrl.State() != StateFinalizing || h.rec().stops != 1 {
		t.Fatalf("want finalizing with one recorder stop, got %v and %d stops", h.ctrl.State(), h.rec().stops)
	}

	h.flush()
	if h.ctrl.State() != StateIdle || h.ctrl.Progress() != 100 {
		t.Fatalf("after flush: state %v progress %v", h.ctrl.State(), h.ctrl.Progress())
	}
	clip := h.ctrl.Clip()
	if clip == nil || clip.Frames != 3 || clip.MimeType != config.ClipMimeType {
		t.Fatalf("unexpected clip %+v", clip)
	}
	if _, err := os.Stat(clip.Path); err != nil {
		t.Fatalf("clip file missing: %v", err)
	}
	if h.tap.Active() {
		t.Fatalf("stream left open")
	}
	if h.sched.Len() != 0 {
		t.Fatalf("%d callbacks still pending", h.sched.Len())
	}
}

func TestController_ManualStop(t *testing.T) {
	h := newHarness(t)
	h.start()
	for i := 0; i < 3*config.CaptureFPS; i++ {
		h.step(tick)
	}
	if p := h.ctrl.Progress(); p < 24.9 || p > 25 {
		t.Fatalf("progress at 3s is %v", p)
	}
	if e := h.ctrl.Elapsed(h.now); e < 2900*time.Millisecond || e > 3*time.Second {
		t.Fatalf("elapsed at 3s is %v", e)
	}

	h.ctrl.Stop()
	if h.ctrl.State() != StateFinalizing {
		t.Fatalf("state after stop is %v", h.ctrl.State())
	}
	if h.sched.Len() != 0 {
		t.Fatalf("progress loop still scheduled")
	}
	h.ctrl.Stop()

	h.flush()
	if h.ctrl.State() != StateIdle || h.ctrl.Progress() != 100 || h.ctrl.Clip() == nil {
		t.Fatalf("clip not finalized: %v %v", h.ctrl.State(), h.ctrl.Progress())
	}
	for i := 0; i < 12*config.CaptureFPS; i++ {
		h.step(tick)
	}
	if h.rec().stops != 1 || h.ctrl.Progress() != 100 {
		t.Fatalf("stale timer fired after manual stop")
	}
}

func TestController_StartIgnoredWhileBusy(t *testing.T) {
	h := newHarness(t)
	h.start()
	if err := h.ctrl.Start(); err != nil {
		t.Fatal(err)
	}
	h.ctrl.Stop()
	if err := h.ctrl.Start(); err != nil {
		t.Fatal(err)
	}
	if len(h.recs) != 1 || h.recs[0].starts != 1 {
		t.Fatalf("busy start created %d recorders", len(h.recs))
	}
	if h.ctrl.State() != StateFinalizing {
		t.Fatalf("state changed by ignored start: %v", h.ctrl.State())
	}
}

func TestController_StopWhenIdle(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Stop()
	if h.ctrl.State() != StateIdle || len(h.recs) != 0 {
		t.Fatalf("stop while idle had an effect")
	}
}

func TestController_ErrorWhileRecording(t *testing.T) {
	h := newHarness(t)
	h.start()
	for i := 0; i < 30; i++ {
		h.step(tick)
	}
	rec := h.rec()
	rec.h.OnError(errors.New("boom"))
	h.step(tick)

	if h.ctrl.State() != StateIdle || h.ctrl.Progress() != 0 || h.ctrl.Clip() != nil {
		t.Fatalf("after error: %v %v %v", h.ctrl.State(), h.ctrl.Progress(), h.ctrl.Clip())
	}
	if err := h.ctrl.Err(); err == nil || !bytes.Contains([]byte(err.Error()), []byte("boom")) {
		t.Fatalf("error not surfaced: %v", err)
	}
	if h.sched.Len() != 0 || h.tap.Active() {
		t.Fatalf("loops left running after error")
	}

	// the flush triggered by the error path and any late events are stale
	rec.h.OnData(Chunk{Data: []byte{1}, Width: 1, Height: 1})
	rec.h.OnStop()
	h.step(tick)
	h.step(tick)
	if h.ctrl.State() != StateIdle || h.ctrl.Progress() != 0 || h.ctrl.Clip() != nil {
		t.Fatalf("late events changed state: %v %v", h.ctrl.State(), h.ctrl.Progress())
	}

	h.start()
	if h.ctrl.Err() != nil {
		t.Fatalf("new session kept old error")
	}
}

func TestController_ErrorWhileFinalizing(t *testing.T) {
	h := newHarness(t)
	h.silent = true
	h.start()
	h.step(tick)
	h.ctrl.Stop()
	if h.ctrl.State() != StateFinalizing {
		t.Fatalf("state %v", h.ctrl.State())
	}
	h.rec().h.OnError(errors.New("encoder gone"))
	h.step(tick)
	if h.ctrl.State() != StateIdle || h.ctrl.Progress() != 0 || h.ctrl.Err() == nil || h.ctrl.Clip() != nil {
		t.Fatalf("after error: %v %v %v", h.ctrl.State(), h.ctrl.Progress(), h.ctrl.Err())
	}
}

func TestController_StaleSessionEvents(t *testing.T) {
	h := newHarness(t)
	h.silent = true
	h.start()
	first := h.rec()
	first.h.OnError(errors.New("first failed"))
	h.step(tick)

	h.silent = false
	h.start()
	first.h.OnStop()
	h.step(tick)
	if h.ctrl.State() != StateRecording {
		t.Fatalf("old session's stop leaked into the new one: %v", h.ctrl.State())
	}
}

func TestController_NewCaptureRevokesPreviousClip(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.ctrl.Stop()
	h.flush()
	old := h.ctrl.Clip()
	if old == nil {
		t.Fatalf("no clip")
	}

	h.start()
	if !old.Revoked() || h.ctrl.Clip() != nil {
		t.Fatalf("previous clip still live")
	}
	if _, err := os.Stat(old.Path); !os.IsNotExist(err) {
		t.Fatalf("previous clip file still on disk")
	}
	if h.ctrl.Progress() != 0 {
		t.Fatalf("progress not reset: %v", h.ctrl.Progress())
	}
}

// deferMux holds clip muxing until the returned func is called.
func (h *harness) deferMux() (run func()) {
	var pending []func()
	h.ctrl.spawn = func(fn func()) { pending = append(pending, fn) }
	return func() {
		for _, fn := range pending {
			fn()
		}
		pending = nil
	}
}

func TestController_MuxesOffLoop(t *testing.T) {
	h := newHarness(t)
	run := h.deferMux()
	h.start()
	h.ctrl.Stop()
	h.step(tick)
	if h.ctrl.State() != StateFinalizing || h.ctrl.Clip() != nil {
		t.Fatalf("clip built on the loop goroutine: %v %v", h.ctrl.State(), h.ctrl.Clip())
	}
	if entries, _ := os.ReadDir(h.ctrl.opts.ClipDir); len(entries) != 0 {
		t.Fatalf("clip written before muxing ran")
	}

	// a repeated stop event while muxing must not start a second mux
	h.rec().h.OnStop()
	h.step(tick)

	run()
	h.step(tick)
	if h.ctrl.State() != StateIdle || h.ctrl.Progress() != 100 || h.ctrl.Clip() == nil || h.ctrl.Err() != nil {
		t.Fatalf("after mux: %v %v %v", h.ctrl.State(), h.ctrl.Progress(), h.ctrl.Err())
	}
	run()
	h.step(tick)
	if h.ctrl.Err() != nil {
		t.Fatalf("second mux ran: %v", h.ctrl.Err())
	}
}

func TestController_CloseWhileMuxing(t *testing.T) {
	h := newHarness(t)
	run := h.deferMux()
	h.start()
	h.ctrl.Stop()
	h.step(tick)
	if err := h.ctrl.Close(); err != nil {
		t.Fatal(err)
	}
	run()
	h.step(tick)
	if h.ctrl.Clip() != nil || h.ctrl.Progress() != 0 {
		t.Fatalf("clip adopted after close")
	}
	if entries, _ := os.ReadDir(h.ctrl.opts.ClipDir); len(entries) != 0 {
		t.Fatalf("stale clip left on disk: %d files", len(entries))
	}
}

func TestController_ConstructionFailures(t *testing.T) {
	t.Run("factory", func(t *testing.T) {
		h := newHarness(t)
		h.factoryErr = errors.New("no encoder")
		if err := h.ctrl.Start(); err == nil {
			t.Fatalf("start succeeded")
		}
		if h.ctrl.State() != StateIdle || h.ctrl.Err() == nil || h.tap.Active() {
			t.Fatalf("failed start left state %v err %v", h.ctrl.State(), h.ctrl.Err())
		}
	})
	t.Run("recorder start", func(t *testing.T) {
		h := newHarness(t)
		h.startErr = errors.New("busy")
		if err := h.ctrl.Start(); err == nil {
			t.Fatalf("start succeeded")
		}
		if h.ctrl.State() != StateIdle || h.tap.Active() || h.sched.Len() != 0 {
			t.Fatalf("failed start left resources behind")
		}
	})
	t.Run("mime", func(t *testing.T) {
		h := newHarness(t)
		h.ctrl.opts.MimeTypes = []string{"video/webm;codecs=vp9"}
		if err := h.ctrl.Start(); !errors.Is(err, ErrNoSupportedType) {
			t.Fatalf("got %v", err)
		}
		if len(h.recs) != 0 {
			t.Fatalf("recorder built without a supported type")
		}
	})
}

func TestController_EmptyRecording(t *testing.T) {
	h := newHarness(t)
	h.chunks = 0
	h.start()
	h.ctrl.Stop()
	h.flush()
	if !errors.Is(h.ctrl.Err(), ErrEmptyClip) || h.ctrl.State() != StateIdle || h.ctrl.Progress() != 0 {
		t.Fatalf("empty recording: %v %v %v", h.ctrl.Err(), h.ctrl.State(), h.ctrl.Progress())
	}
}

func TestController_Close(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.step(tick)
	if err := h.ctrl.Close(); err != nil {
		t.Fatal(err)
	}
	if h.ctrl.State() != StateIdle || h.sched.Len() != 0 || h.tap.Active() {
		t.Fatalf("close left loops running")
	}
	if h.rec().stops != 1 {
		t.Fatalf("recorder not stopped on close")
	}
	h.step(tick)
	if h.ctrl.Clip() != nil || h.ctrl.Progress() != 0 {
		t.Fatalf("flush after close produced a clip")
	}
	if err := h.ctrl.Start(); !errors.Is(err, ErrClosed) {
		t.Fatalf("start after close: %v", err)
	}
	if err := h.ctrl.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestController_CloseRevokesClip(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.ctrl.Stop()
	h.flush()
	clip := h.ctrl.Clip()
	if err := h.ctrl.Close(); err != nil {
		t.Fatal(err)
	}
	if clip == nil || !clip.Revoked() || h.ctrl.Clip() != nil {
		t.Fatalf("clip survived close")
	}
}

func TestController_ListenerSequence(t *testing.T) {
	h := newHarness(t)
	var got []string
	h.ctrl.AddListener(func(prev, next State) { got = append(got, prev.String()+">"+next.String()) })
	h.start()
	h.ctrl.Stop()
	h.flush()
	h.silent = true
	h.start()
	h.rec().h.OnError(errors.New("x"))
	h.step(tick)

	want := []string{
		"idle>recording", "recording>finalizing", "finalizing>idle",
		"idle>recording", "recording>idle",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("transitions (-want +got):\n%s", diff)
	}
}

func TestController_WithMJPEGRecorder(t *testing.T) {
	sched := loop.New()
	tap := NewTap()
	now := epoch
	opts := DefaultOptions(t.TempDir(), zerolog.Nop())
	opts.Duration = 250 * time.Millisecond
	opts.Now = func() time.Time { return now }
	ctrl := New(sched, tap, opts, zerolog.Nop())

	canvas := &fakeCanvas{w: 16, h: 8, fill: 0x90}
	var render func(time.Time)
	render = func(at time.Time) {
		tap.Capture(canvas, at)
		sched.RequestFrame(render)
	}
	sched.RequestFrame(render)

	if err := ctrl.Start(); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for ctrl.State() != StateIdle {
		if time.Now().After(deadline) {
			t.Fatalf("capture stuck in %v", ctrl.State())
		}
		now = now.Add(tick)
		sched.Tick(now)
		if ctrl.State() == StateFinalizing {
			time.Sleep(time.Millisecond)
		}
	}
	if err := ctrl.Err(); err != nil {
		t.Fatal(err)
	}
	clip := ctrl.Clip()
	if clip == nil || clip.Frames == 0 || clip.Width != 16 || clip.Height != 8 {
		t.Fatalf("unexpected clip %+v", clip)
	}
	data, err := os.ReadFile(clip.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) || !bytes.Contains(data, []byte("MJPG")) {
		t.Fatalf("clip is not an MJPEG AVI")
	}
	if err := ctrl.Close(); err != nil {
		t.Fatal(err)
	}
}
