package process

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProcess(script string) *Process {
	p := New("test", "sh", []string{"-c", script}, testLogger())
	p.SetTimeouts(100*time.Millisecond, 100*time.Millisecond)
	return p
}

func waitDone(t *testing.T, p *Process, timeout time.Duration) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(timeout):
		t.Fatal("timeout waiting for process to exit")
	}
}

func TestStdoutIsReturned(t *testing.T) {
	p := newTestProcess("printf 'frame-bytes'")
	stdout, err := p.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	data, _ := io.ReadAll(stdout)
	if string(data) != "frame-bytes" {
		t.Errorf("stdout = %q, want frame-bytes", data)
	}
	waitDone(t, p, time.Second)
	if code := p.Stop(); code != 0 {
		t.Errorf("Stop() = %d, want 0", code)
	}
}

func TestGracefulStop(t *testing.T) {
	p := newTestProcess("trap 'exit 0' INT; while :; do sleep 0.05; done")
	p.SetTimeouts(time.Second, 100*time.Millisecond)
	if _, err := p.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if code := p.Stop(); code != 0 {
		t.Errorf("Stop() = %d, want 0", code)
	}
	if p.State() != StateExited {
		t.Errorf("State() = %s, want exited", p.State())
	}
}

func TestForceKillAfterGrace(t *testing.T) {
	p := newTestProcess("trap '' INT; sleep 10")
	if _, err := p.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	if code := p.Stop(); code != exitCodeKilled {
		t.Errorf("Stop() = %d, want %d", code, exitCodeKilled)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Stop() took %v", elapsed)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	p := newTestProcess("sleep 10")
	if _, err := p.Start(); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	codes := make([]int, 4)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = p.Stop()
		}(i)
	}
	wg.Wait()

	for i, c := range codes[1:] {
		if c != codes[0] {
			t.Errorf("Stop() call %d = %d, first call = %d", i+1, c, codes[0])
		}
	}
	waitDone(t, p, time.Second)
}

func TestStopBeforeStart(t *testing.T) {
	p := newTestProcess("true")
	if code := p.Stop(); code != 0 {
		t.Errorf("Stop() = %d, want 0", code)
	}
}

func TestStartMissingBinary(t *testing.T) {
	p := New("missing", "/nonexistent/decoder", nil, testLogger())
	if _, err := p.Start(); err == nil {
		t.Fatal("Start() error = nil, want failure")
	}
	select {
	case <-p.Done():
	default:
		t.Error("Done() not closed after failed start")
	}
	if _, err := p.Start(); err == nil || !strings.Contains(err.Error(), "already started") {
		t.Errorf("second Start() error = %v", err)
	}
}

func TestStderrGoesThroughParser(t *testing.T) {
	p := newTestProcess("echo '[error] boom' 1>&2")
	var mu sync.Mutex
	var lines []string
	p.SetLogParser(testLogger(), func(line string) (slog.Level, string) {
		mu.Lock()
		lines = append(lines, line)
		mu.Unlock()
		return slog.LevelError, line
	})
	stdout, err := p.Start()
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(io.Discard, stdout)
	waitDone(t, p, time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(lines) != 1 || lines[0] != "[error] boom" {
		t.Errorf("parser saw %q", lines)
	}
}
