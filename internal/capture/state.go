package capture

import "time"

// State is the capture session's connection state.
type State int

const (
	StateDisconnected State = iota
	StateProbing
	StateConnected
	// StateDegraded is connected, but with recent read failures or repeated
	// frames.
	StateDegraded
)

var stateNames = [...]string{
	StateDisconnected: "disconnected",
	StateProbing:      "probing",
	StateConnected:    "connected",
	StateDegraded:     "degraded",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Live reports whether the state holds an open handle.
func (s State) Live() bool {
	return s == StateConnected || s == StateDegraded
}

// Reconnect reasons, used in logs, events and metric labels.
const (
	ReasonReadFailures = "read_failures"
	ReasonFrozen       = "frozen"
	ReasonShutdown     = "shutdown"
	ReasonPanic        = "panic"
	ReasonSweepFailed  = "sweep_failed"
)

// SessionStatus is a point-in-time copy of the session's observable state.
type SessionStatus struct {
	State               string    `json:"state" example:"connected" doc:"disconnected, probing, connected or degraded"`
	Candidate           string    `json:"candidate,omitempty" doc:"Active candidate with password redacted"`
	CandidateRank       int       `json:"candidate_rank" doc:"Rank of the active candidate, -1 when none"`
	ConsecutiveFailures int       `json:"consecutive_failures" doc:"Read failures in a row"`
	FreezeCount         int       `json:"freeze_count" doc:"Repeated identical frames in a row"`
	Reconnects          int       `json:"reconnects" doc:"Reconnects since start"`
	FramesPublished     uint64    `json:"frames_published" doc:"Frames published since start"`
	LastFrameAt         time.Time `json:"last_frame_at,omitzero" doc:"Time of the last published frame"`
	ConnectedSince      time.Time `json:"connected_since,omitzero" doc:"Time the active candidate was accepted"`
}
