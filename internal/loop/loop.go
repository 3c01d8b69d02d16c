// Package loop provides a cooperative frame scheduler.
//
// All callbacks run on the goroutine calling Tick, one at a time, so code
// driven by the scheduler needs no locking. Work produced on other goroutines
// enters the loop through Post.
package loop

import (
	"sync"
	"time"
)

// Handle identifies a pending frame callback. The zero Handle is never issued.
type Handle uint64

type frameCallback struct {
	h  Handle
	fn func(now time.Time)
}

type Scheduler struct {
	mu     sync.Mutex
	seq    Handle
	frames []frameCallback
	posted []func()
}

func New() *Scheduler { return &Scheduler{} }

// RequestFrame registers fn to run once on the next Tick. Repeating tasks
// request the following frame from inside their callback.
func (s *Scheduler) RequestFrame(fn func(now time.Time)) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.frames = append(s.frames, frameCallback{h: s.seq, fn: fn})
	return s.seq
}

// Cancel removes a pending frame callback. Unknown or already executed
// handles are ignored.
func (s *Scheduler) Cancel(h Handle) {
	if h == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.frames {
		if f.h == h {
			s.frames = append(s.frames[:i], s.frames[i+1:]...)
			return
		}
	}
}

// Post queues fn for the next Tick. Safe for concurrent use.
func (s *Scheduler) Post(fn func()) {
	s.mu.Lock()
	s.posted = append(s.posted, fn)
	s.mu.Unlock()
}

// Tick runs posted functions, then every frame callback registered before
// this call, in registration order.
func (s *Scheduler) Tick(now time.Time) {
	s.mu.Lock()
	posted := s.posted
	s.posted = nil
	s.mu.Unlock()
	for _, fn := range posted {
		fn()
	}

	s.mu.Lock()
	due := make([]Handle, len(s.frames))
	for i, f := range s.frames {
		due[i] = f.h
	}
	s.mu.Unlock()

	for _, h := range due {
		// a callback earlier in this tick may have cancelled h
		fn := s.take(h)
		if fn != nil {
			fn(now)
		}
	}
}

func (s *Scheduler) take(h Handle) func(time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.frames {
		if f.h == h {
			s.frames = append(s.frames[:i], s.frames[i+1:]...)
			return f.fn
		}
	}
	return nil
}

// Len reports the number of pending frame callbacks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}
