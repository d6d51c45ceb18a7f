package capture

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/camrelay/internal/codec"
	"github.com/smazurov/camrelay/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var errUnreachable = errors.New("connection refused")

// solidFrame returns a 2x2 frame with every byte set to v.
func solidFrame(v byte) *codec.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return &codec.Frame{Image: img, Captured: time.Now()}
}

// fakeHandle answers reads from script, called with a 0-based read index.
type fakeHandle struct {
	script func(n int) (*codec.Frame, error)

	mu     sync.Mutex
	reads  int
	closes int
}

func (h *fakeHandle) ReadFrame(ctx context.Context) (*codec.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	n := h.reads
	h.reads++
	closed := h.closes > 0
	h.mu.Unlock()
	if closed {
		return nil, codec.ErrClosed
	}
	return h.script(n)
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closes++
	return nil
}

func (h *fakeHandle) Closes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closes
}

func (h *fakeHandle) Reads() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reads
}

// Scripts.
func alwaysFresh(n int) (*codec.Frame, error) { return solidFrame(byte(n)), nil }
func alwaysSame(int) (*codec.Frame, error)    { return solidFrame(42), nil }
func alwaysFail(int) (*codec.Frame, error)    { return nil, codec.ErrReadTimeout }

// fakeCodec hands out handles per URL. A URL without a script fails to open.
type fakeCodec struct {
	scripts map[string]func(n int) (*codec.Frame, error)

	mu      sync.Mutex
	opens   []string
	handles []*fakeHandle
}

func newFakeCodec() *fakeCodec {
	return &fakeCodec{scripts: make(map[string]func(int) (*codec.Frame, error))}
}

func (c *fakeCodec) Open(_ context.Context, url string) (codec.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opens = append(c.opens, url)
	script, ok := c.scripts[url]
	if !ok {
		return nil, errUnreachable
	}
	h := &fakeHandle{script: script}
	c.handles = append(c.handles, h)
	return h, nil
}

func (c *fakeCodec) Opens() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.opens...)
}

func (c *fakeCodec) Handles() []*fakeHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeHandle(nil), c.handles...)
}

// recorder captures published events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func eventsOf[T events.Event](r *recorder) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []T
	for _, ev := range r.events {
		if e, ok := ev.(T); ok {
			out = append(out, e)
		}
	}
	return out
}

func noSleep(ctx context.Context, _ time.Duration) bool { return ctx.Err() == nil }

var testCandidates = []Candidate{
	{URL: "rtsp://admin:pw@cam:554/main?transportmode=unicast", Rank: 0, Label: "main"},
	{URL: "rtsp://admin:pw@cam:554/sub?transportmode=unicast", Rank: 1, Label: "sub"},
}

func fastProbeConfig() ProbeConfig {
	return ProbeConfig{Timeout: 200 * time.Millisecond, RequiredFrames: 3, FailBackoff: time.Millisecond}
}

func waitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
