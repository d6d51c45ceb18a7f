package codec

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/camrelay/internal/ffmpeg"
	"github.com/smazurov/camrelay/internal/logging"
	"github.com/smazurov/camrelay/internal/process"
)

// FFmpegConfig configures the ffmpeg decoder.
type FFmpegConfig struct {
	Binary        string
	Width         int
	Height        int
	ReadTimeout   time.Duration
	Transport     string
	SocketTimeout time.Duration
	Options       []ffmpeg.OptionType
	LogLevel      string
	// StopTimeout is how long Close waits for SIGINT before killing.
	StopTimeout time.Duration
}

// DefaultFFmpegConfig returns TCP transport, a 5 s socket timeout and 720p
// RGBA output.
func DefaultFFmpegConfig() FFmpegConfig {
	return FFmpegConfig{
		Binary:        "ffmpeg",
		Width:         1280,
		Height:        720,
		ReadTimeout:   5 * time.Second,
		Transport:     "tcp",
		SocketTimeout: 5 * time.Second,
		Options:       ffmpeg.DefaultOptions(),
		StopTimeout:   2 * time.Second,
	}
}

// FFmpeg decodes through an ffmpeg child process per handle.
type FFmpeg struct {
	cfg    FFmpegConfig
	logger logging.Logger
	nextID atomic.Uint64
}

// NewFFmpeg returns a Codec backed by the ffmpeg binary in cfg.
func NewFFmpeg(cfg FFmpegConfig, logger logging.Logger) *FFmpeg {
	return &FFmpeg{cfg: cfg, logger: logger}
}

// Open spawns ffmpeg for url. It fails only if the process cannot start.
func (f *FFmpeg) Open(_ context.Context, url string) (Handle, error) {
	params := ffmpeg.DecodeParams{
		InputURL:      url,
		Transport:     f.cfg.Transport,
		SocketTimeout: f.cfg.SocketTimeout,
		Width:         f.cfg.Width,
		Height:        f.cfg.Height,
		Options:       f.cfg.Options,
		LogLevel:      f.cfg.LogLevel,
	}
	args, err := ffmpeg.BuildDecodeArgs(params)
	if err != nil {
		return nil, err
	}

	id := fmt.Sprintf("decoder-%d", f.nextID.Add(1))
	proc := process.New(id, f.cfg.Binary, args, f.logger)
	proc.SetLogParser(logging.GetLogger("ffmpeg"), ffmpeg.ParseLogLevel)
	if f.cfg.StopTimeout > 0 {
		proc.SetTimeouts(f.cfg.StopTimeout, f.cfg.StopTimeout)
	}

	stdout, err := proc.Start()
	if err != nil {
		return nil, err
	}

	h := newStreamHandle(stdout, f.cfg.Width, f.cfg.Height, f.cfg.ReadTimeout, proc.Stop)
	f.logger.Debug("Decoder started", "id", id, "pid", proc.PID())
	return h, nil
}

// streamHandle reads fixed-size RGBA frames from r. A pump goroutine keeps
// only the newest undelivered frame so a slow reader never sees stale video.
type streamHandle struct {
	width, height int
	readTimeout   time.Duration
	stop          func() int

	frames chan *Frame
	done   chan struct{}

	mu      sync.Mutex
	pumpErr error

	closeOnce sync.Once
	closed    chan struct{}
}

func newStreamHandle(r io.Reader, width, height int, readTimeout time.Duration, stop func() int) *streamHandle {
	h := &streamHandle{
		width:       width,
		height:      height,
		readTimeout: readTimeout,
		stop:        stop,
		frames:      make(chan *Frame, 1),
		done:        make(chan struct{}),
		closed:      make(chan struct{}),
	}
	go h.pump(r)
	return h
}

func (h *streamHandle) pump(r io.Reader) {
	defer close(h.done)
	size := h.width * h.height * 4
	for {
		buf := make([]byte, size)
		if _, err := io.ReadFull(r, buf); err != nil {
			h.mu.Lock()
			h.pumpErr = err
			h.mu.Unlock()
			return
		}
		frame := &Frame{
			Image: &image.RGBA{
				Pix:    buf,
				Stride: h.width * 4,
				Rect:   image.Rect(0, 0, h.width, h.height),
			},
			Captured: time.Now(),
		}
		// Only the pump sends, so after the drain the send cannot block.
		select {
		case <-h.frames:
		default:
		}
		h.frames <- frame
	}
}

// ReadFrame returns the newest frame, waiting up to the read timeout.
func (h *streamHandle) ReadFrame(ctx context.Context) (*Frame, error) {
	select {
	case <-h.closed:
		return nil, ErrClosed
	default:
	}

	var timeout <-chan time.Time
	if h.readTimeout > 0 {
		t := time.NewTimer(h.readTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case f := <-h.frames:
		return f, nil
	case <-h.done:
		select {
		case f := <-h.frames:
			return f, nil
		default:
		}
		return nil, h.endErr()
	case <-h.closed:
		return nil, ErrClosed
	case <-timeout:
		return nil, ErrReadTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *streamHandle) endErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pumpErr == nil || h.pumpErr == io.EOF {
		return ErrClosed
	}
	return fmt.Errorf("%w: %v", ErrClosed, h.pumpErr)
}

// Close stops the decoder and waits for the pump to exit. Only the first call
// does anything.
func (h *streamHandle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		close(h.closed)
		code := 0
		if h.stop != nil {
			code = h.stop()
		}
		<-h.done
		if code != 0 && code != 255 && code != 130 {
			err = fmt.Errorf("decoder exited with code %d", code)
		}
	})
	return err
}
