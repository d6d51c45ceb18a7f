package ffmpeg

import (
	"log/slog"
	"strings"
)

// ParseLogLevel classifies one stderr line produced with -loglevel level+X.
// Lines look like "[error] msg" or "[rtsp @ 0x55d0] [warning] msg". The level
// bracket is removed; a component prefix is kept.
func ParseLogLevel(line string) (slog.Level, string) {
	if !strings.HasPrefix(line, "[") {
		return slog.LevelInfo, line
	}
	end := strings.Index(line, "] ")
	if end < 0 {
		return slog.LevelInfo, line
	}
	if level, ok := levelOf(line[1:end]); ok {
		return level, line[end+2:]
	}

	component, rest := line[:end+2], line[end+2:]
	if strings.HasPrefix(rest, "[") {
		if next := strings.Index(rest, "] "); next > 0 {
			if level, ok := levelOf(rest[1:next]); ok {
				return level, component + rest[next+2:]
			}
		}
	}
	return slog.LevelInfo, line
}

func levelOf(name string) (slog.Level, bool) {
	switch name {
	case "panic", "fatal", "error":
		return slog.LevelError, true
	case "warning":
		return slog.LevelWarn, true
	case "info":
		return slog.LevelInfo, true
	case "verbose", "debug", "trace", "quiet":
		return slog.LevelDebug, true
	}
	return 0, false
}
