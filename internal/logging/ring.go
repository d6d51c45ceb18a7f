package logging

import (
	"sync"
	"time"
)

// LogEntry is one record held in the ring.
type LogEntry struct {
	Seq        uint64         `json:"seq"`
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Ring keeps the most recent log entries. Each entry is stamped with a
// monotonically increasing Seq so readers can resume with Since.
type Ring struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int
	full    bool
	seq     uint64
}

// NewRing returns a ring holding at most capacity entries.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{entries: make([]LogEntry, capacity)}
}

// Append stores entry, evicting the oldest one when the ring is full, and
// returns the entry as stored.
func (r *Ring) Append(entry LogEntry) LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	entry.Seq = r.seq
	r.entries[r.next] = entry
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
		r.full = true
	}
	return entry
}

// Entries returns every held entry, oldest first.
func (r *Ring) Entries() []LogEntry {
	return r.Since(0)
}

// Since returns held entries with Seq greater than seq, oldest first.
func (r *Ring) Since(seq uint64) []LogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ordered []LogEntry
	if r.full {
		ordered = append(ordered, r.entries[r.next:]...)
	}
	ordered = append(ordered, r.entries[:r.next]...)

	out := ordered[:0]
	for _, e := range ordered {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Len reports how many entries are held.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.entries)
	}
	return r.next
}
