package logging

import (
	"strings"
	"testing"
	"time"
)

func TestRingEvictsOldest(t *testing.T) {
	r := NewRing(3)
	for _, msg := range []string{"a", "b", "c", "d"} {
		r.Append(LogEntry{Message: msg})
	}

	got := r.Entries()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	var msgs []string
	for _, e := range got {
		msgs = append(msgs, e.Message)
	}
	if strings.Join(msgs, "") != "bcd" {
		t.Errorf("messages = %v, want [b c d]", msgs)
	}
	if got[0].Seq != 2 || got[2].Seq != 4 {
		t.Errorf("seqs = %d..%d, want 2..4", got[0].Seq, got[2].Seq)
	}
}

func TestRingSince(t *testing.T) {
	r := NewRing(10)
	for i := 0; i < 5; i++ {
		r.Append(LogEntry{Message: "x"})
	}
	if got := r.Since(3); len(got) != 2 || got[0].Seq != 4 {
		t.Errorf("Since(3) = %+v, want seqs 4,5", got)
	}
	if got := r.Since(5); got != nil {
		t.Errorf("Since(5) = %+v, want nil", got)
	}
	if r.Len() != 5 {
		t.Errorf("Len() = %d, want 5", r.Len())
	}
}

func TestFormatLine(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	line := FormatLine(LogEntry{
		Timestamp:  ts,
		Level:      "warn",
		Module:     "capture",
		Message:    "Frame read failed",
		Attributes: map[string]any{"failures": 2, "candidate": 0},
	})
	want := "2025-03-01T12:00:00Z [WARN] [capture] Frame read failed candidate=0 failures=2"
	if line != want {
		t.Errorf("FormatLine() = %q, want %q", line, want)
	}
}
