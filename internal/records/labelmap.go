package records

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/renameio/v2"
)

// LoadLabelMap reads an identity ID to name mapping from a JSON object.
func LoadLabelMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string)
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse label map %s: %w", path, err)
	}
	return m, nil
}

// SaveLabelMap writes m to path atomically, so a concurrent reader or the
// file watcher never sees a partial document.
func SaveLabelMap(path string, m map[string]string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode label map: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create label map directory: %w", err)
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending label map: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write label map: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace label map: %w", err)
	}
	return nil
}

// LabelMap is a swappable, concurrency-safe label map.
type LabelMap struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewLabelMap returns a holder over a copy of m.
func NewLabelMap(m map[string]string) *LabelMap {
	l := &LabelMap{}
	l.Replace(m)
	return l
}

// Lookup returns the name for an identity ID.
func (l *LabelMap) Lookup(id int64) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	name, ok := l.m[strconv.FormatInt(id, 10)]
	return name, ok
}

// Replace swaps in a copy of m.
func (l *LabelMap) Replace(m map[string]string) {
	next := make(map[string]string, len(m))
	for k, v := range m {
		next[k] = v
	}
	l.mu.Lock()
	l.m = next
	l.mu.Unlock()
}

// Snapshot returns a copy of the current map.
func (l *LabelMap) Snapshot() map[string]string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]string, len(l.m))
	for k, v := range l.m {
		out[k] = v
	}
	return out
}

// Len returns the number of entries.
func (l *LabelMap) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.m)
}
