package framebuf

import (
	"bytes"
	"sync"
	"testing"
)

func TestEmptyBuffer(t *testing.T) {
	var b Buffer
	if b.HasFrame() {
		t.Error("HasFrame() = true on empty buffer")
	}
	if _, ok := b.Snapshot(); ok {
		t.Error("Snapshot() ok = true on empty buffer")
	}
	if b.Seq() != 0 {
		t.Errorf("Seq() = %d, want 0", b.Seq())
	}
}

func TestPublishReplacesFrame(t *testing.T) {
	b := New()
	if seq := b.Publish([]byte("first")); seq != 1 {
		t.Errorf("first Publish() = %d, want 1", seq)
	}
	if seq := b.Publish([]byte("second")); seq != 2 {
		t.Errorf("second Publish() = %d, want 2", seq)
	}

	f, ok := b.Snapshot()
	if !ok {
		t.Fatal("Snapshot() ok = false")
	}
	if string(f.Data) != "second" || f.Seq != 2 {
		t.Errorf("Snapshot() = %q seq %d, want second seq 2", f.Data, f.Seq)
	}
	if f.Published.IsZero() {
		t.Error("Published not set")
	}
}

func TestPublishCopiesPayload(t *testing.T) {
	b := New()
	src := []byte("jpeg")
	b.Publish(src)
	src[0] = 'X'

	f, _ := b.Snapshot()
	if string(f.Data) != "jpeg" {
		t.Errorf("stored payload changed with caller buffer: %q", f.Data)
	}
}

func TestPublishIgnoresEmpty(t *testing.T) {
	b := New()
	if seq := b.Publish(nil); seq != 0 {
		t.Errorf("Publish(nil) = %d, want 0", seq)
	}
	if b.HasFrame() {
		t.Error("empty publish stored a frame")
	}
}

// Every payload is a run of one repeated byte, so a torn read would show
// mixed bytes.
func TestConcurrentReadersNeverSeeTornFrames(t *testing.T) {
	b := New()
	const size = 4096
	const writes = 2000

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var lastSeq uint64
			for {
				select {
				case <-stop:
					return
				default:
				}
				f, ok := b.Snapshot()
				if !ok {
					continue
				}
				if len(f.Data) != size {
					t.Errorf("frame %d has %d bytes, want %d", f.Seq, len(f.Data), size)
					return
				}
				if !bytes.Equal(f.Data, bytes.Repeat(f.Data[:1], size)) {
					t.Errorf("frame %d is torn", f.Seq)
					return
				}
				if f.Seq < lastSeq {
					t.Errorf("seq went backwards: %d after %d", f.Seq, lastSeq)
					return
				}
				lastSeq = f.Seq
			}
		}()
	}

	for i := 0; i < writes; i++ {
		b.Publish(bytes.Repeat([]byte{byte(i)}, size))
	}
	close(stop)
	wg.Wait()

	if b.Seq() != writes {
		t.Errorf("Seq() = %d, want %d", b.Seq(), writes)
	}
}
