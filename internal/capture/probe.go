package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smazurov/camrelay/internal/codec"
	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/logging"
)

// ProbeConfig bounds how a candidate proves it delivers video.
type ProbeConfig struct {
	// Timeout is the whole budget for one candidate, measured from the
	// start of the probe.
	Timeout time.Duration
	// RequiredFrames non-empty frames must arrive back to back.
	RequiredFrames int
	// FailBackoff is slept after a failed read.
	FailBackoff time.Duration
	// Describe, when set, runs before the codec is opened.
	Describe DescribeFunc
}

// DefaultProbeConfig returns a 6 s budget for 8 consecutive frames.
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		Timeout:        6 * time.Second,
		RequiredFrames: 8,
		FailBackoff:    50 * time.Millisecond,
	}
}

// Probe opens cand and reads until cfg.RequiredFrames consecutive non-empty
// frames arrive inside cfg.Timeout. On success the handle is returned open
// and owned by the caller. On any failure the handle is already closed.
func Probe(ctx context.Context, c codec.Codec, cand Candidate, cfg ProbeConfig) (codec.Handle, error) {
	deadline := time.Now().Add(cfg.Timeout)
	probeCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	if cfg.Describe != nil {
		if err := cfg.Describe(probeCtx, cand.URL); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, newSessionError(KindOpenFailure, cand, err)
		}
	}

	h, err := c.Open(probeCtx, cand.URL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, newSessionError(KindOpenFailure, cand, err)
	}

	consecutive, best := 0, 0
	var lastErr error
loop:
	for {
		frame, err := h.ReadFrame(probeCtx)
		switch {
		case ctx.Err() != nil:
			_ = h.Close()
			return nil, ctx.Err()
		case !time.Now().Before(deadline):
			break loop
		case err == nil && !frame.Empty():
			consecutive++
			if consecutive >= cfg.RequiredFrames {
				return h, nil
			}
			continue
		}

		if err == nil {
			err = codec.ErrEmptyFrame
		}
		lastErr = err
		best = max(best, consecutive)
		consecutive = 0

		// A decoder that exited will never produce frames; don't wait out
		// the budget. The transport did open, so this is a probe failure.
		if errors.Is(err, codec.ErrClosed) {
			_ = h.Close()
			best = max(best, consecutive)
			return nil, newSessionError(KindProbeFailure, cand,
				fmt.Errorf("decoder exited after best run %d/%d frames: %w", best, cfg.RequiredFrames, err))
		}
		if !sleepCtx(probeCtx, cfg.FailBackoff) && ctx.Err() == nil {
			break
		}
	}

	_ = h.Close()
	best = max(best, consecutive)
	cause := fmt.Errorf("best run %d/%d frames in %s", best, cfg.RequiredFrames, cfg.Timeout)
	if lastErr != nil {
		cause = fmt.Errorf("%w, last error: %w", cause, lastErr)
	}
	return nil, newSessionError(KindProbeFailure, cand, cause)
}

// Prober runs probes against a fixed codec and reports each attempt.
type Prober struct {
	codec  codec.Codec
	cfg    ProbeConfig
	events events.Publisher
	logger logging.Logger
}

// NewProber returns a Prober. bus may be nil.
func NewProber(c codec.Codec, cfg ProbeConfig, bus events.Publisher, logger logging.Logger) *Prober {
	return &Prober{codec: c, cfg: cfg, events: bus, logger: logger}
}

// Sweep probes candidates in order and returns the first one that delivers.
// It never probes past the first success.
func (p *Prober) Sweep(ctx context.Context, candidates []Candidate) (codec.Handle, Candidate, error) {
	var errs []error
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, Candidate{}, err
		}

		p.logger.Info("Probing candidate", "rank", cand.Rank, "candidate", cand.Redacted())
		start := time.Now()
		h, err := Probe(ctx, p.codec, cand, p.cfg)
		elapsed := time.Since(start)

		if err != nil && ctx.Err() != nil {
			return nil, Candidate{}, ctx.Err()
		}
		p.report(cand, err, elapsed)
		if err == nil {
			p.logger.Info("Candidate accepted", "rank", cand.Rank, "candidate", cand.Redacted(),
				"elapsed", elapsed.Round(time.Millisecond))
			return h, cand, nil
		}
		p.logger.Warn("Candidate failed", "rank", cand.Rank, "candidate", cand.Redacted(),
			"elapsed", elapsed.Round(time.Millisecond), "error", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, Candidate{}, ErrNoCandidate
	}
	return nil, Candidate{}, fmt.Errorf("%w: %w", ErrNoCandidate, errors.Join(errs...))
}

func (p *Prober) report(cand Candidate, err error, elapsed time.Duration) {
	result := "ok"
	switch {
	case errors.Is(err, ErrOpenFailed):
		result = "open_failed"
	case err != nil:
		result = "timeout"
	}
	probeAttemptsTotal.WithLabelValues(result).Inc()

	if p.events == nil {
		return
	}
	ev := events.CandidateProbedEvent{
		Rank:       cand.Rank,
		Candidate:  cand.Redacted(),
		OK:         err == nil,
		DurationMs: elapsed.Milliseconds(),
		Timestamp:  time.Now(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	p.events.Publish(ev)
}

// sleepCtx waits for d or until ctx is done, reporting whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
