package capture

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/smazurov/camrelay/internal/codec"
	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/logging"
)

// SessionConfig holds the capture loop thresholds.
type SessionConfig struct {
	// MaxConsecutiveFails failed reads in a row force a reconnect.
	MaxConsecutiveFails int
	// ReadFailSleep is slept after every failed read.
	ReadFailSleep time.Duration
	// FreezeMaxFrames identical frames in a row force a reconnect.
	FreezeMaxFrames int
	// RetryDelay is slept after a sweep in which every candidate failed.
	RetryDelay  time.Duration
	JPEGQuality int
}

// DefaultSessionConfig returns the stock thresholds.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxConsecutiveFails: 30,
		ReadFailSleep:       200 * time.Millisecond,
		FreezeMaxFrames:     30,
		RetryDelay:          time.Second,
		JPEGQuality:         80,
	}
}

// Sweeper finds a working candidate. *Prober implements it.
type Sweeper interface {
	Sweep(ctx context.Context, candidates []Candidate) (codec.Handle, Candidate, error)
}

// FramePublisher receives encoded frames. *framebuf.Buffer implements it.
type FramePublisher interface {
	Publish(data []byte) uint64
}

// Session owns the single camera connection. Run drives it; everything else
// only observes through Status.
type Session struct {
	cfg        SessionConfig
	candidates []Candidate
	sweeper    Sweeper
	frames     FramePublisher
	events     events.Publisher
	logger     logging.Logger
	encode     Encoder
	sleep      func(ctx context.Context, d time.Duration) bool
	now        func() time.Time

	// Owned by the Run goroutine.
	handle   codec.Handle
	active   Candidate
	failures int
	freezes  int
	lastFP   Fingerprint
	haveFP   bool

	mu     sync.Mutex
	state  State
	status SessionStatus
}

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithEvents publishes state changes and freezes to bus.
func WithEvents(bus events.Publisher) SessionOption {
	return func(s *Session) { s.events = bus }
}

// WithEncoder replaces the JPEG encoder.
func WithEncoder(enc Encoder) SessionOption {
	return func(s *Session) { s.encode = enc }
}

// WithClock replaces the wall clock and the sleep used between retries.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) bool) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// NewSession returns an idle session over the given candidates.
func NewSession(candidates []Candidate, sweeper Sweeper, frames FramePublisher, cfg SessionConfig, logger logging.Logger, opts ...SessionOption) *Session {
	s := &Session{
		cfg:        cfg,
		candidates: append([]Candidate(nil), candidates...),
		sweeper:    sweeper,
		frames:     frames,
		logger:     logger,
		encode:     JPEGEncoder(cfg.JPEGQuality),
		sleep:      sleepCtx,
		now:        time.Now,
		state:      StateDisconnected,
		status: SessionStatus{
			State:         StateDisconnected.String(),
			CandidateRank: -1,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run connects, reads and reconnects until ctx is done, then closes the open
// handle and returns nil. Stream failures are never returned; a panic in the
// loop is recovered and returned as an error.
func (s *Session) Run(ctx context.Context) (err error) {
	if len(s.candidates) == 0 {
		return errors.New("capture: no candidates configured")
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Capture worker panicked", "panic", r, "fatal", true, "stack", string(debug.Stack()))
			s.closeHandle(ReasonPanic)
			s.setState(StateDisconnected, ReasonPanic)
			err = fmt.Errorf("capture: worker panic: %v", r)
		}
	}()

	s.logger.Info("Capture session starting", "candidates", len(s.candidates))
	for ctx.Err() == nil {
		if s.handle == nil {
			s.connect(ctx)
			continue
		}
		s.step(ctx)
	}

	s.closeHandle(ReasonShutdown)
	s.setState(StateDisconnected, ReasonShutdown)
	s.logger.Info("Capture session stopped")
	return nil
}

// Status returns a copy of the observable state.
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) connect(ctx context.Context) {
	s.setState(StateProbing, "")
	h, cand, err := s.sweeper.Sweep(ctx, s.candidates)
	if err != nil {
		s.setState(StateDisconnected, ReasonSweepFailed)
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("No candidate delivered frames, retrying",
			"retry_in", s.cfg.RetryDelay, "error", err)
		s.sleep(ctx, s.cfg.RetryDelay)
		return
	}
	s.attach(h, cand)
}

func (s *Session) attach(h codec.Handle, cand Candidate) {
	s.handle = h
	s.active = cand
	s.failures, s.freezes, s.haveFP = 0, 0, false

	s.mu.Lock()
	s.status.Candidate = cand.Redacted()
	s.status.CandidateRank = cand.Rank
	s.status.ConnectedSince = s.now()
	s.status.ConsecutiveFailures = 0
	s.status.FreezeCount = 0
	s.mu.Unlock()

	s.logger.Info("Connected", "rank", cand.Rank, "candidate", cand.Redacted())
	s.setState(StateConnected, "")
}

// step performs one read on the open handle.
func (s *Session) step(ctx context.Context) {
	frame, err := s.handle.ReadFrame(ctx)
	if ctx.Err() != nil {
		return
	}
	if err == nil && frame.Empty() {
		err = codec.ErrEmptyFrame
	}
	if err != nil {
		s.readFailed(ctx, err)
		return
	}

	s.failures = 0
	fp := FingerprintOf(frame.Image)
	if s.haveFP && fp == s.lastFP {
		s.repeated(fp)
		return
	}
	s.freezes = 0
	s.lastFP, s.haveFP = fp, true
	s.publish(frame)
}

func (s *Session) readFailed(ctx context.Context, err error) {
	s.failures++
	readFailuresTotal.Inc()
	s.logger.Warn("Frame read failed", "failures", s.failures, "max", s.cfg.MaxConsecutiveFails,
		"candidate", s.active.Redacted(), "error", err)

	if s.failures >= s.cfg.MaxConsecutiveFails {
		s.reconnect(ReasonReadFailures, newSessionError(KindReadFailure, s.active, err))
	} else {
		s.syncCounters()
		s.setState(StateDegraded, ReasonReadFailures)
	}
	s.sleep(ctx, s.cfg.ReadFailSleep)
}

// repeated handles a frame identical to the previous one. s.freezes is the
// length of the identical run including its first copy, so FreezeMaxFrames
// identical reads trip the reconnect and the status reports the same count.
func (s *Session) repeated(fp Fingerprint) {
	if s.freezes == 0 {
		s.freezes = 1
	}
	s.freezes++
	frozenFramesTotal.Inc()
	run := s.freezes

	if run >= s.cfg.FreezeMaxFrames {
		s.logger.Warn("Stream frozen", "identical_frames", run, "candidate", s.active.Redacted(),
			"fingerprint", fp.String())
		if s.events != nil {
			s.events.Publish(events.FrameFrozenEvent{
				Candidate:   s.active.Redacted(),
				Repeats:     run,
				Fingerprint: fp.String(),
				Timestamp:   s.now(),
			})
		}
		s.reconnect(ReasonFrozen, newSessionError(KindFrozen, s.active, nil))
		return
	}
	s.syncCounters()
	s.setState(StateDegraded, ReasonFrozen)
}

func (s *Session) publish(frame *codec.Frame) {
	data, err := s.encode(frame.Image)
	if err != nil {
		encodeFailuresTotal.Inc()
		s.logger.Warn("Dropping frame", "error", newSessionError(KindEncode, s.active, err))
		return
	}
	s.frames.Publish(data)
	framesPublishedTotal.Inc()

	s.mu.Lock()
	s.status.FramesPublished++
	s.status.LastFrameAt = s.now()
	s.status.ConsecutiveFailures = 0
	s.status.FreezeCount = 0
	s.mu.Unlock()
	s.setState(StateConnected, "")
}

func (s *Session) reconnect(reason string, cause error) {
	s.logger.Warn("Reconnecting", "reason", reason, "candidate", s.active.Redacted(), "error", cause)
	reconnectsTotal.WithLabelValues(reason).Inc()
	s.closeHandle(reason)
	s.failures, s.freezes, s.haveFP = 0, 0, false

	s.mu.Lock()
	s.status.Reconnects++
	s.status.ConsecutiveFailures = 0
	s.status.FreezeCount = 0
	s.status.Candidate = ""
	s.status.CandidateRank = -1
	s.status.ConnectedSince = time.Time{}
	s.mu.Unlock()
	s.setState(StateDisconnected, reason)
}

// closeHandle releases the open handle, if any. The field is cleared before
// Close so a handle is never closed twice from here; a failing Close is
// logged and otherwise ignored.
func (s *Session) closeHandle(reason string) {
	h := s.handle
	if h == nil {
		return
	}
	s.handle = nil
	if err := h.Close(); err != nil {
		s.logger.Warn("Closing stream failed", "reason", reason, "candidate", s.active.Redacted(), "error", err)
	}
}

func (s *Session) syncCounters() {
	s.mu.Lock()
	s.status.ConsecutiveFailures = s.failures
	s.status.FreezeCount = s.freezes
	s.mu.Unlock()
}

func (s *Session) setState(to State, reason string) {
	s.mu.Lock()
	from := s.state
	if from == to {
		s.mu.Unlock()
		return
	}
	s.state = to
	s.status.State = to.String()
	candidate := s.status.Candidate
	s.mu.Unlock()

	recordState(to)
	s.logger.Debug("Session state changed", "from", from.String(), "to", to.String(), "reason", reason)
	if s.events != nil {
		s.events.Publish(events.SessionStateChangedEvent{
			From:      from.String(),
			To:        to.String(),
			Candidate: candidate,
			Reason:    reason,
			Timestamp: s.now(),
		})
	}
}
