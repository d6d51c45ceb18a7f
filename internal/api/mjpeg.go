package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smazurov/camrelay/internal/framebuf"
)

// Boundary separates parts of the multipart MJPEG stream.
const Boundary = "frame"

// MJPEGContentType is the Content-Type of /video_feed.
const MJPEGContentType = "multipart/x-mixed-replace; boundary=" + Boundary

var (
	streamActiveConsumers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "camrelay",
		Name:      "stream_active_consumers",
		Help:      "Open /video_feed connections",
	})

	streamPartsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "camrelay",
		Name:      "stream_parts_sent_total",
		Help:      "MJPEG parts written to consumers",
	})

	streamBytesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "camrelay",
		Name:      "stream_bytes_sent_total",
		Help:      "JPEG payload bytes written to consumers",
	})
)

// FrameSource is read by each consumer. *framebuf.Buffer implements it.
type FrameSource interface {
	Snapshot() (framebuf.Frame, bool)
}

// MJPEGWriter streams the latest frame as multipart parts. Each call to
// Stream is an independent consumer with no state shared with others.
type MJPEGWriter struct {
	frames FrameSource
	poll   time.Duration
	pacing time.Duration
}

// NewMJPEGWriter returns a writer. Zero durations fall back to 50 ms poll
// and 30 ms pacing.
func NewMJPEGWriter(frames FrameSource, poll, pacing time.Duration) *MJPEGWriter {
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	if pacing <= 0 {
		pacing = 30 * time.Millisecond
	}
	return &MJPEGWriter{frames: frames, poll: poll, pacing: pacing}
}

// Stream writes parts to w until ctx is done or a write fails. Once the
// buffer holds a frame, the latest one is sent every pacing interval whether
// or not it changed, so viewers keep receiving bytes while the camera is
// frozen or reconnecting. Returns nil when ctx ends the stream.
func (m *MJPEGWriter) Stream(ctx context.Context, w io.Writer) error {
	streamActiveConsumers.Inc()
	defer streamActiveConsumers.Dec()

	flush := func() {}
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}

	for {
		frame, ok := m.frames.Snapshot()
		if !ok {
			if !wait(ctx, m.poll) {
				return nil
			}
			continue
		}

		if err := WritePart(w, frame.Data); err != nil {
			return err
		}
		flush()
		streamPartsSent.Inc()
		streamBytesSent.Add(float64(len(frame.Data)))

		if !wait(ctx, m.pacing) {
			return nil
		}
	}
}

// WritePart writes one multipart part carrying a JPEG.
func WritePart(w io.Writer, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", Boundary, len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
