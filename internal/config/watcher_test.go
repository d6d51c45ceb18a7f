package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readTrimmed(path string) (string, error) {
	data, err := os.ReadFile(path)
	return strings.TrimSpace(string(data)), err
}

func startWatcher(t *testing.T, w *Watcher[string]) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run() error = %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	// let fsnotify register the directory
	time.Sleep(50 * time.Millisecond)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.json")
	if err := os.WriteFile(path, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewWatcher(path, readTrimmed, testLogger(), WithDebounce[string](20*time.Millisecond))
	got := make(chan string, 4)
	w.OnReload(func(v string) { got <- v })
	startWatcher(t, w)

	if err := os.WriteFile(path, []byte("two"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case v := <-got:
		if v != "two" {
			t.Errorf("reloaded %q, want two", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after write")
	}
}

func TestWatcherSeesAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labels.json")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewWatcher(path, readTrimmed, testLogger(), WithDebounce[string](20*time.Millisecond))
	got := make(chan string, 4)
	w.OnReload(func(v string) { got <- v })
	startWatcher(t, w)

	tmp := filepath.Join(dir, ".labels.tmp")
	if err := os.WriteFile(tmp, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case v := <-got:
		if v != "new" {
			t.Errorf("reloaded %q, want new", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after rename")
	}
}

func TestWatcherUnsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.json")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewWatcher(path, readTrimmed, testLogger())
	calls := 0
	unsubscribe := w.OnReload(func(string) { calls++ })
	unsubscribe()
	w.reload()

	if calls != 0 {
		t.Errorf("handler called %d times after unsubscribe", calls)
	}
}

func TestWatcherKeepsValueOnLoadError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	var gotErr error
	w := NewWatcher(path, readTrimmed, testLogger(), WithErrorHandler[string](func(err error) { gotErr = err }))
	called := false
	w.OnReload(func(string) { called = true })

	w.reload()

	if called {
		t.Error("handler called despite load error")
	}
	if gotErr == nil {
		t.Error("error handler not called")
	}
}
