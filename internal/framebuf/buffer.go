// Package framebuf holds the single most recent encoded frame.
//
// There is one writer (the capture session) and any number of readers (HTTP
// consumers, recognition). Publishing swaps an immutable Frame under a short
// lock; readers copy the pointer out and never block the writer for longer
// than that.
package framebuf

import (
	"sync"
	"time"
)

// Frame is a published JPEG. Data must not be modified.
type Frame struct {
	Data      []byte
	Seq       uint64
	Published time.Time
}

// Buffer is a single-slot, latest-wins frame holder. The zero value is ready
// to use.
type Buffer struct {
	mu   sync.RWMutex
	slot *Frame
	seq  uint64
}

// New returns an empty buffer.
func New() *Buffer {
	return &Buffer{}
}

// Publish copies data into the slot, replacing the previous frame, and
// returns its sequence number. Empty payloads are ignored and return 0.
func (b *Buffer) Publish(data []byte) uint64 {
	if len(data) == 0 {
		return 0
	}
	frame := &Frame{
		Data:      append([]byte(nil), data...),
		Published: time.Now(),
	}

	b.mu.Lock()
	b.seq++
	frame.Seq = b.seq
	b.slot = frame
	b.mu.Unlock()
	return frame.Seq
}

// Snapshot returns the current frame. ok is false until the first Publish.
func (b *Buffer) Snapshot() (frame Frame, ok bool) {
	b.mu.RLock()
	f := b.slot
	b.mu.RUnlock()
	if f == nil {
		return Frame{}, false
	}
	return *f, true
}

// HasFrame reports whether anything was published yet.
func (b *Buffer) HasFrame() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.slot != nil
}

// Seq returns the sequence number of the current frame, 0 when empty.
func (b *Buffer) Seq() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.seq
}
