package capture

import (
	"errors"
	"fmt"
)

// Sentinels for the failure categories of the capture path. None of them is
// fatal; each leads to a retry or a reconnect.
var (
	ErrOpenFailed   = errors.New("capture: open failed")
	ErrProbeTimeout = errors.New("capture: probe timed out")
	ErrReadFailed   = errors.New("capture: read failed")
	ErrFrozen       = errors.New("capture: stream frozen")
	ErrEncodeFailed = errors.New("capture: encode failed")
	ErrNoCandidate  = errors.New("capture: no candidate delivered frames")
)

// ErrorKind classifies a SessionError.
type ErrorKind string

const (
	KindOpenFailure  ErrorKind = "open_failure"
	KindProbeFailure ErrorKind = "probe_failure"
	KindReadFailure  ErrorKind = "read_failure"
	KindFrozen       ErrorKind = "frozen"
	KindEncode       ErrorKind = "encode_failure"
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindOpenFailure:
		return ErrOpenFailed
	case KindProbeFailure:
		return ErrProbeTimeout
	case KindReadFailure:
		return ErrReadFailed
	case KindFrozen:
		return ErrFrozen
	case KindEncode:
		return ErrEncodeFailed
	}
	return nil
}

// SessionError is a classified capture failure tied to a candidate.
type SessionError struct {
	Kind      ErrorKind
	Candidate Candidate
	Cause     error
}

func newSessionError(kind ErrorKind, c Candidate, cause error) *SessionError {
	return &SessionError{Kind: kind, Candidate: c, Cause: cause}
}

func (e *SessionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s on %s: %v", e.Kind, e.Candidate.Redacted(), e.Cause)
	}
	return fmt.Sprintf("%s on %s", e.Kind, e.Candidate.Redacted())
}

// Unwrap exposes both the category sentinel and the underlying cause, so
// errors.Is works against either.
func (e *SessionError) Unwrap() []error {
	var out []error
	if s := e.Kind.sentinel(); s != nil {
		out = append(out, s)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}
