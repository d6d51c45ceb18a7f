// Package codec turns an RTSP URL into a sequence of decoded frames.
//
// Codec and Handle are the seam between the capture state machine and the
// decoder. The production implementation drives an ffmpeg child process;
// tests substitute an in-memory fake.
package codec

import (
	"context"
	"errors"
	"image"
	"time"
)

var (
	// ErrClosed is returned once the decoder is gone: the handle was closed or
	// the stream ended. A closed handle never yields frames again.
	ErrClosed = errors.New("codec: handle closed")
	// ErrReadTimeout is returned when no frame arrived within the read timeout.
	ErrReadTimeout = errors.New("codec: read timed out")
	// ErrEmptyFrame marks a read that completed without image data.
	ErrEmptyFrame = errors.New("codec: empty frame")
)

// Frame is one decoded image.
type Frame struct {
	Image    *image.RGBA
	Captured time.Time
}

// Empty reports whether f carries no pixels.
func (f *Frame) Empty() bool {
	return f == nil || f.Image == nil || len(f.Image.Pix) == 0
}

// Codec opens decode handles.
type Codec interface {
	// Open starts decoding url. An error means the stream could not even be
	// started; connection problems after that surface from ReadFrame.
	Open(ctx context.Context, url string) (Handle, error)
}

// Handle is one open decode session. ReadFrame must not be called
// concurrently; Close may be called from any goroutine, any number of times.
type Handle interface {
	ReadFrame(ctx context.Context) (*Frame, error)
	Close() error
}
