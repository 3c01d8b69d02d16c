package capture

import (
	"encoding/binary"
	"errors"
	"io"
	"time"
)

// AVI (RIFF) container holding one Motion-JPEG video stream. Everything is
// known up front, so sizes are computed before writing and the output is a
// single forward pass.

const (
	aviMainHeaderSize   = 56
	aviStreamHeaderSize = 56
	bitmapInfoSize      = 40
	aviIndexEntrySize   = 16

	avifHasIndex  = 0x10
	aviifKeyframe = 0x10
	mjpegBitCount = 24
	riffChunkHead = 8 // fourcc + size
)

type aviWriter struct {
	w   io.Writer
	err error
}

func (a *aviWriter) fourcc(s string) {
	if a.err != nil {
		return
	}
	_, a.err = io.WriteString(a.w, s)
}

func (a *aviWriter) u32(v uint32) {
	if a.err != nil {
		return
	}
	a.err = binary.Write(a.w, binary.LittleEndian, v)
}

func (a *aviWriter) u16(v uint16) {
	if a.err != nil {
		return
	}
	a.err = binary.Write(a.w, binary.LittleEndian, v)
}

func (a *aviWriter) bytes(b []byte) {
	if a.err != nil {
		return
	}
	_, a.err = a.w.Write(b)
}

func padded(n int) int { return n + n&1 }

// writeAVI writes frames (JPEG images of width x height) as an MJPEG AVI
// playing at fps.
func writeAVI(w io.Writer, frames [][]byte, width, height, fps int) error {
	if len(frames) == 0 {
		return ErrEmptyClip
	}
	if width <= 0 || height <= 0 || fps <= 0 {
		return errors.New("capture: invalid avi geometry")
	}
	maxFrame := 0
	movi := 4
	for _, f := range frames {
		maxFrame = max(maxFrame, len(f))
		movi += riffChunkHead + padded(len(f))
	}
	strl := 4 + riffChunkHead + aviStreamHeaderSize + riffChunkHead + bitmapInfoSize
	hdrl := 4 + riffChunkHead + aviMainHeaderSize + riffChunkHead + strl
	idx := len(frames) * aviIndexEntrySize
	riff := 4 + riffChunkHead + hdrl + riffChunkHead + movi + riffChunkHead + idx

	n := uint32(len(frames))
	usPerFrame := uint32(time.Second / time.Microsecond / time.Duration(fps))
	bytesPerSec := uint32(maxFrame * fps)

	a := &aviWriter{w: w}
	a.fourcc("RIFF")
	a.u32(uint32(riff))
	a.fourcc("AVI ")

	a.fourcc("LIST")
	a.u32(uint32(hdrl))
	a.fourcc("hdrl")

	a.fourcc("avih")
	a.u32(aviMainHeaderSize)
	a.u32(usPerFrame)
	a.u32(bytesPerSec)
	a.u32(0) // padding granularity
	a.u32(avifHasIndex)
	a.u32(n)
	a.u32(0) // initial frames
	a.u32(1) // streams
	a.u32(uint32(maxFrame))
	a.u32(uint32(width))
	a.u32(uint32(height))
	for i := 0; i < 4; i++ {
		a.u32(0)
	}

	a.fourcc("LIST")
	a.u32(uint32(strl))
	a.fourcc("strl")

	a.fourcc("strh")
	a.u32(aviStreamHeaderSize)
	a.fourcc("vids")
	a.fourcc("MJPG")
	a.u32(0) // flags
	a.u16(0) // priority
	a.u16(0) // language
	a.u32(0) // initial frames
	a.u32(1) // scale
	a.u32(uint32(fps))
	a.u32(0) // start
	a.u32(n)
	a.u32(uint32(maxFrame))
	a.u32(0xFFFFFFFF) // quality: driver default
	a.u32(0)          // sample size
	a.u16(0)
	a.u16(0)
	a.u16(uint16(width))
	a.u16(uint16(height))

	a.fourcc("strf")
	a.u32(bitmapInfoSize)
	a.u32(bitmapInfoSize)
	a.u32(uint32(width))
	a.u32(uint32(height))
	a.u16(1) // planes
	a.u16(mjpegBitCount)
	a.fourcc("MJPG")
	a.u32(uint32(width * height * 3))
	for i := 0; i < 4; i++ {
		a.u32(0)
	}

	a.fourcc("LIST")
	a.u32(uint32(movi))
	a.fourcc("movi")
	for _, f := range frames {
		a.fourcc("00dc")
		a.u32(uint32(len(f)))
		a.bytes(f)
		if len(f)&1 == 1 {
			a.bytes([]byte{0})
		}
	}

	a.fourcc("idx1")
	a.u32(uint32(idx))
	offset := 4
	for _, f := range frames {
		a.fourcc("00dc")
		a.u32(aviifKeyframe)
		a.u32(uint32(offset))
		a.u32(uint32(len(f)))
		offset += riffChunkHead + padded(len(f))
	}
	return a.err
}
