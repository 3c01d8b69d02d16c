// Package cue plays short audible blips for capture events.
package cue

import (
	"math"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/rs/zerolog"
)

type Kind int

const (
	// Start sounds when recording begins.
	Start Kind = iota
	// Ready sounds when a clip has been finalized.
	Ready
)

const (
	sampleRate = beep.SampleRate(44100)
	blipLength = 90 * time.Millisecond
	blipGap    = 60 * time.Millisecond
	rampLength = 5 * time.Millisecond
	gain       = 0.25
)

type Player struct {
	log     zerolog.Logger
	enabled bool
}

// New opens the speaker. A muted player, or one whose audio device failed to
// open, accepts Play calls and does nothing.
func New(mute bool, log zerolog.Logger) *Player {
	p := &Player{log: log}
	if mute {
		log.Debug().Msg("audio cues muted")
		return p
	}
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/20)); err != nil {
		log.Warn().Err(err).Msg("audio cues disabled")
		return p
	}
	p.enabled = true
	return p
}

func (p *Player) Enabled() bool { return p.enabled }

func (p *Player) Play(k Kind) {
	if !p.enabled {
		return
	}
	speaker.Play(Streamer(k, sampleRate))
}

// Close silences anything still playing.
func (p *Player) Close() {
	if !p.enabled {
		return
	}
	speaker.Lock()
	speaker.Clear()
	speaker.Unlock()
	p.enabled = false
}

// Streamer returns the blip sequence for k at sr.
func Streamer(k Kind, sr beep.SampleRate) beep.Streamer {
	switch k {
	case Ready:
		return beep.Seq(
			tone(sr, 660, blipLength),
			beep.Silence(sr.N(blipGap)),
			tone(sr, 990, blipLength),
		)
	default:
		return tone(sr, 880, blipLength)
	}
}

// tone is a sine of freq Hz lasting d, with linear ramps at both ends so
// playback starts and ends without a click.
func tone(sr beep.SampleRate, freq float64, d time.Duration) beep.Streamer {
	total := sr.N(d)
	ramp := max(sr.N(rampLength), 1)
	step := 2 * math.Pi * freq / float64(sr)
	pos := 0
	return beep.StreamerFunc(func(samples [][2]float64) (n int, ok bool) {
		if pos >= total {
			return 0, false
		}
		for i := range samples {
			if pos >= total {
				break
			}
			env := math.Min(1, math.Min(float64(pos)/float64(ramp), float64(total-pos)/float64(ramp)))
			v := gain * env * math.Sin(step*float64(pos))
			samples[i][0], samples[i][1] = v, v
			pos++
			n++
		}
		return n, true
	})
}
