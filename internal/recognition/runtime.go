package recognition

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/framebuf"
	"github.com/smazurov/camrelay/internal/logging"
	"github.com/smazurov/camrelay/internal/records"
)

var resultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "camrelay",
	Subsystem: "recognition",
	Name:      "results_total",
	Help:      "Recognition results by status",
}, []string{"status"})

var errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "camrelay",
	Subsystem: "recognition",
	Name:      "errors_total",
	Help:      "Recognizer call failures by stage",
}, []string{"stage"})

// FrameSource is where the runtime takes frames from. *framebuf.Buffer
// implements it.
type FrameSource interface {
	Snapshot() (framebuf.Frame, bool)
}

// Config tunes the runtime.
type Config struct {
	// Threshold is the minimum confidence for a MATCH.
	Threshold float64
	// MaxPerSec caps analysed frames per second; zero or less means no cap.
	MaxPerSec float64
	// Poll is how often the frame buffer is checked for a new frame.
	Poll time.Duration
}

// Runtime pulls the newest frame, runs the recognizer on it and appends one
// record per face.
type Runtime struct {
	recognizer Recognizer
	frames     FrameSource
	labels     *records.LabelMap
	log        *records.Log
	events     events.Publisher
	logger     logging.Logger
	cfg        Config
	limiter    *rate.Limiter
	now        func() time.Time

	lastSeq uint64
}

// NewRuntime wires a runtime. bus may be nil.
func NewRuntime(r Recognizer, frames FrameSource, labels *records.LabelMap, log *records.Log, cfg Config, logger logging.Logger, bus events.Publisher) *Runtime {
	if cfg.Poll <= 0 {
		cfg.Poll = 50 * time.Millisecond
	}
	limit := rate.Inf
	if cfg.MaxPerSec > 0 {
		limit = rate.Limit(cfg.MaxPerSec)
	}
	return &Runtime{
		recognizer: r,
		frames:     frames,
		labels:     labels,
		log:        log,
		events:     bus,
		logger:     logger,
		cfg:        cfg,
		limiter:    rate.NewLimiter(limit, 1),
		now:        time.Now,
	}
}

// Run analyses each new frame at most once until ctx is done. Frames that
// arrive while the limiter is exhausted are skipped, not queued.
func (rt *Runtime) Run(ctx context.Context) error {
	rt.logger.Info("Recognition runtime started", "threshold", rt.cfg.Threshold, "max_per_sec", rt.cfg.MaxPerSec)
	ticker := time.NewTicker(rt.cfg.Poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rt.logger.Info("Recognition runtime stopped")
			return nil
		case <-ticker.C:
		}

		frame, ok := rt.frames.Snapshot()
		if !ok || frame.Seq == rt.lastSeq {
			continue
		}
		if !rt.limiter.Allow() {
			continue
		}
		rt.lastSeq = frame.Seq
		rt.Process(ctx, frame)
	}
}

// Process runs the recognizer over one frame and returns the entries it
// recorded. Recognizer errors are logged and end processing of the frame or
// face they occurred on.
func (rt *Runtime) Process(ctx context.Context, frame framebuf.Frame) []records.Entry {
	faces, err := rt.recognizer.Detect(ctx, frame.Data)
	if err != nil {
		errorsTotal.WithLabelValues("detect").Inc()
		rt.logger.Warn("Face detection failed", "seq", frame.Seq, "error", err)
		return nil
	}

	var out []records.Entry
	for _, face := range faces {
		feature, err := rt.recognizer.Extract(ctx, frame.Data, face)
		if err != nil {
			errorsTotal.WithLabelValues("extract").Inc()
			rt.logger.Warn("Feature extraction failed", "seq", frame.Seq, "error", err)
			continue
		}
		if len(feature) == 0 {
			continue
		}
		match, err := rt.recognizer.Search(ctx, feature)
		if err != nil {
			errorsTotal.WithLabelValues("search").Inc()
			rt.logger.Warn("Feature search failed", "seq", frame.Seq, "error", err)
			continue
		}

		entry := rt.classify(match)
		if err := rt.log.Append(entry); err != nil {
			rt.logger.Error("Writing record failed", "path", rt.log.Path(), "error", err)
		}
		resultsTotal.WithLabelValues(entry.Status).Inc()
		rt.publish(entry, frame.Seq)
		out = append(out, entry)
	}
	return out
}

func (rt *Runtime) classify(m *Match) records.Entry {
	entry := records.Entry{Time: rt.now(), Threshold: rt.cfg.Threshold, Status: records.StatusUnknown}
	if m == nil || m.ID == NoIdentity || m.Confidence < rt.cfg.Threshold {
		rt.logger.Info("Unknown face detected")
		return entry
	}

	label, ok := rt.labels.Lookup(m.ID)
	if !ok {
		rt.logger.Debug("Identity has no label", "id", m.ID)
	}
	entry.Label = label
	entry.Confidence = m.Confidence
	entry.Status = records.StatusMatch
	rt.logger.Info("Face matched", "id", m.ID, "label", label, "confidence", m.Confidence)
	return entry
}

func (rt *Runtime) publish(e records.Entry, seq uint64) {
	if rt.events == nil {
		return
	}
	rt.events.Publish(events.RecognitionEvent{
		Label:      e.Label,
		Confidence: e.Confidence,
		Threshold:  e.Threshold,
		Status:     e.Status,
		FrameSeq:   seq,
		Timestamp:  e.Time,
	})
}
