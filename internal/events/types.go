package events

import "time"

// Event type identifiers for kelindar/event.
const (
	TypeSessionStateChanged uint32 = iota + 1
	TypeCandidateProbed
	TypeFrameFrozen
	TypeRecognition
	TypeLogEntry
)

// Event is implemented by everything sent over the Bus.
type Event interface {
	Type() uint32
}

// SessionStateChangedEvent reports a capture session state transition.
type SessionStateChangedEvent struct {
	From      string    `json:"from" example:"probing" doc:"Previous state"`
	To        string    `json:"to" example:"connected" doc:"New state"`
	Candidate string    `json:"candidate,omitempty" doc:"Active candidate URL with password redacted"`
	Reason    string    `json:"reason,omitempty" example:"read_failures" doc:"Why the transition happened"`
	Timestamp time.Time `json:"timestamp" doc:"When the transition happened"`
}

func (e SessionStateChangedEvent) Type() uint32 { return TypeSessionStateChanged }

// CandidateProbedEvent reports the outcome of probing one candidate.
type CandidateProbedEvent struct {
	Rank       int       `json:"rank" example:"0" doc:"Position in the candidate list"`
	Candidate  string    `json:"candidate" doc:"Candidate URL with password redacted"`
	OK         bool      `json:"ok" doc:"Whether the probe accepted the candidate"`
	Error      string    `json:"error,omitempty" doc:"Failure reason"`
	DurationMs int64     `json:"duration_ms" doc:"Probe duration in milliseconds"`
	Timestamp  time.Time `json:"timestamp" doc:"When the probe finished"`
}

func (e CandidateProbedEvent) Type() uint32 { return TypeCandidateProbed }

// FrameFrozenEvent is published when identical frames force a reconnect.
type FrameFrozenEvent struct {
	Candidate   string    `json:"candidate" doc:"Candidate URL with password redacted"`
	Repeats     int       `json:"repeats" example:"30" doc:"Identical frames observed in a row"`
	Fingerprint string    `json:"fingerprint" doc:"Hex fingerprint of the frozen frame"`
	Timestamp   time.Time `json:"timestamp" doc:"When the freeze was detected"`
}

func (e FrameFrozenEvent) Type() uint32 { return TypeFrameFrozen }

// RecognitionEvent carries one recognition record.
type RecognitionEvent struct {
	Label      string    `json:"label" example:"alice" doc:"Resolved label or UNKNOWN"`
	Confidence float64   `json:"confidence" example:"0.91" doc:"Match confidence"`
	Threshold  float64   `json:"threshold" example:"0.48" doc:"Threshold in effect"`
	Status     string    `json:"status" example:"MATCH" doc:"MATCH or UNKNOWN"`
	FrameSeq   uint64    `json:"frame_seq" doc:"Sequence number of the analysed frame"`
	Timestamp  time.Time `json:"timestamp" doc:"When the record was written"`
}

func (e RecognitionEvent) Type() uint32 { return TypeRecognition }

// LogEntryEvent mirrors a log record for live streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" doc:"Log sequence number"`
	Timestamp  time.Time      `json:"timestamp" doc:"Log time"`
	Level      string         `json:"level" example:"warn" doc:"Log level"`
	Module     string         `json:"module" example:"capture" doc:"Emitting module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
