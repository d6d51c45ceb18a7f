package logging

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// EntryCallback receives every entry after it lands in the ring.
type EntryCallback func(entry LogEntry)

// ringHandler records into the package ring. The ring and callback are looked
// up per record so loggers created before Initialize still end up there.
type ringHandler struct {
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

func newRingHandler(level slog.Leveler) *ringHandler {
	return &ringHandler{level: level}
}

func (h *ringHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *ringHandler) Handle(_ context.Context, r slog.Record) error {
	mutex.RLock()
	ring, callback := logRing, entryCallback
	mutex.RUnlock()
	if ring == nil {
		return nil
	}

	entry := LogEntry{
		Timestamp:  r.Time,
		Level:      levelName(r.Level),
		Module:     "app",
		Message:    r.Message,
		Attributes: make(map[string]any),
	}
	collect := func(a slog.Attr) {
		if a.Key == "module" && len(h.groups) == 0 {
			entry.Module = a.Value.String()
			return
		}
		flatten(entry.Attributes, h.groups, a)
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(a)
		return true
	})
	if len(entry.Attributes) == 0 {
		entry.Attributes = nil
	}

	entry = ring.Append(entry)
	if callback != nil {
		callback(entry)
	}
	return nil
}

func (h *ringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

func (h *ringHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(append([]string(nil), h.groups...), name)
	return &next
}

func flatten(dst map[string]any, groups []string, a slog.Attr) {
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		sub := append(append([]string(nil), groups...), a.Key)
		for _, ga := range v.Group() {
			flatten(dst, sub, ga)
		}
	case slog.KindTime:
		dst[key] = v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		dst[key] = v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			dst[key] = err.Error()
		} else {
			dst[key] = v.Any()
		}
	default:
		dst[key] = v.Any()
	}
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

// FormatLine renders an entry as a single display line.
func FormatLine(entry LogEntry) string {
	var sb strings.Builder
	sb.WriteString(entry.Timestamp.Format(time.RFC3339Nano))
	fmt.Fprintf(&sb, " [%s] [%s] %s", strings.ToUpper(entry.Level), entry.Module, entry.Message)

	keys := make([]string, 0, len(entry.Attributes))
	for k := range entry.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, entry.Attributes[k])
	}
	return sb.String()
}
