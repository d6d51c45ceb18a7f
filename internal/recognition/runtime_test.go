package recognition

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/framebuf"
	"github.com/smazurov/camrelay/internal/records"
)

// fakeRecognizer returns one face per entry in matches; features maps the
// face index to its vector.
type fakeRecognizer struct {
	detectErr error
	matches   []*Match
	empty     map[int]bool

	mu      sync.Mutex
	detects int
}

func (f *fakeRecognizer) Detect(context.Context, []byte) ([]Face, error) {
	f.mu.Lock()
	f.detects++
	f.mu.Unlock()
	if f.detectErr != nil {
		return nil, f.detectErr
	}
	faces := make([]Face, len(f.matches))
	for i := range faces {
		faces[i] = Face{X: i}
	}
	return faces, nil
}

func (f *fakeRecognizer) Extract(_ context.Context, _ []byte, face Face) ([]float32, error) {
	if f.empty[face.X] {
		return nil, nil
	}
	return []float32{float32(face.X)}, nil
}

func (f *fakeRecognizer) Search(_ context.Context, feature []float32) (*Match, error) {
	return f.matches[int(feature[0])], nil
}

func (f *fakeRecognizer) Detects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detects
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func newTestRuntime(t *testing.T, r Recognizer, frames FrameSource, bus events.Publisher) (*Runtime, *records.Log) {
	t.Helper()
	log := records.NewLog(filepath.Join(t.TempDir(), "records.csv"))
	labels := records.NewLabelMap(map[string]string{"7": "alice"})
	cfg := Config{Threshold: 0.48, Poll: time.Millisecond}
	return NewRuntime(r, frames, labels, log, cfg, testLogger(), bus), log
}

func TestProcessClassifiesMatches(t *testing.T) {
	fr := &fakeRecognizer{matches: []*Match{
		{ID: 7, Confidence: 0.9},  // match with label
		{ID: 7, Confidence: 0.47}, // below threshold
		{ID: -1, Confidence: 0.99},
		{ID: 9, Confidence: 0.48}, // match without label
		nil,
	}}
	rec := &recorder{}
	rt, log := newTestRuntime(t, fr, framebuf.New(), rec)

	entries := rt.Process(context.Background(), framebuf.Frame{Data: []byte{1}, Seq: 3})

	want := []struct {
		label  string
		status string
		conf   float64
	}{
		{"alice", records.StatusMatch, 0.9},
		{"", records.StatusUnknown, 0},
		{"", records.StatusUnknown, 0},
		{"", records.StatusMatch, 0.48},
		{"", records.StatusUnknown, 0},
	}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, w := range want {
		e := entries[i]
		if e.Label != w.label || e.Status != w.status || e.Confidence != w.conf || e.Threshold != 0.48 {
			t.Errorf("entry %d = %+v, want %+v", i, e, w)
		}
	}

	stored, err := records.Load(log.Path())
	if err != nil || len(stored) != 5 {
		t.Fatalf("stored %d records, err %v", len(stored), err)
	}
	if stored[0].MatchName != "alice" || stored[0].Similarity != "0.900000" {
		t.Errorf("first record = %+v", stored[0])
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) != 5 {
		t.Fatalf("published %d events", len(rec.events))
	}
	if ev := rec.events[0].(events.RecognitionEvent); ev.FrameSeq != 3 || ev.Label != "alice" {
		t.Errorf("event = %+v", ev)
	}
}

func TestProcessSkipsEmptyFeatures(t *testing.T) {
	fr := &fakeRecognizer{
		matches: []*Match{{ID: 7, Confidence: 0.9}, {ID: 7, Confidence: 0.9}},
		empty:   map[int]bool{0: true},
	}
	rt, _ := newTestRuntime(t, fr, framebuf.New(), nil)

	if entries := rt.Process(context.Background(), framebuf.Frame{Data: []byte{1}, Seq: 1}); len(entries) != 1 {
		t.Errorf("got %d entries, want 1", len(entries))
	}
}

func TestProcessSurvivesDetectError(t *testing.T) {
	fr := &fakeRecognizer{detectErr: errors.New("sidecar down")}
	rt, log := newTestRuntime(t, fr, framebuf.New(), nil)

	if entries := rt.Process(context.Background(), framebuf.Frame{Data: []byte{1}, Seq: 1}); entries != nil {
		t.Errorf("entries = %v", entries)
	}
	if stored, _ := records.Load(log.Path()); len(stored) != 0 {
		t.Errorf("records written on detect error: %v", stored)
	}
}

func TestRunAnalysesEachFrameOnce(t *testing.T) {
	fr := &fakeRecognizer{}
	buf := framebuf.New()
	rt, _ := newTestRuntime(t, fr, buf, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	if fr.Detects() != 0 {
		t.Fatal("analysed an empty buffer")
	}

	buf.Publish([]byte{1})
	time.Sleep(30 * time.Millisecond)
	if fr.Detects() != 1 {
		t.Errorf("detects after one frame = %d, want 1", fr.Detects())
	}

	buf.Publish([]byte{2})
	time.Sleep(30 * time.Millisecond)
	if fr.Detects() != 2 {
		t.Errorf("detects after two frames = %d, want 2", fr.Detects())
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestRunRespectsRateLimit(t *testing.T) {
	fr := &fakeRecognizer{}
	buf := framebuf.New()
	log := records.NewLog(filepath.Join(t.TempDir(), "records.csv"))
	rt := NewRuntime(fr, buf, records.NewLabelMap(nil), log,
		Config{Threshold: 0.5, MaxPerSec: 1, Poll: time.Millisecond}, testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	for i := 0; i < 10; i++ {
		buf.Publish([]byte{byte(i + 1)})
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if n := fr.Detects(); n != 1 {
		t.Errorf("detects = %d, want 1 within the first second", n)
	}
}
