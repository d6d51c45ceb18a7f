package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	ringCapacity = 1000

	// Rotation limits for the log file.
	fileMaxSizeMB  = 10
	fileMaxBackups = 3
)

// Logger is the subset of *slog.Logger that components depend on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config selects levels and sinks.
type Config struct {
	Level   string
	Format  string
	File    string
	Modules map[string]string
}

var (
	mutex         sync.RWMutex
	config        Config
	initialized   bool
	loggers       = make(map[string]*slog.Logger)
	levels        = make(map[string]*slog.LevelVar)
	rootLevel     = &slog.LevelVar{}
	logRing       *Ring
	entryCallback EntryCallback
	fileWriter    *lumberjack.Logger
)

// Initialize applies cfg to every existing and future module logger. It may
// be called again to change levels or sinks.
func Initialize(cfg Config) {
	mutex.Lock()
	defer mutex.Unlock()

	config = cfg
	initialized = true
	if logRing == nil {
		logRing = NewRing(ringCapacity)
	}

	if fileWriter != nil {
		_ = fileWriter.Close()
		fileWriter = nil
	}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err == nil {
			fileWriter = &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    fileMaxSizeMB,
				MaxBackups: fileMaxBackups,
			}
		}
	}

	rootLevel.Set(ParseLevel(cfg.Level, slog.LevelInfo))
	for module, lv := range levels {
		lv.Set(moduleLevel(module))
		loggers[module] = slog.New(buildHandler(lv)).With("module", module)
	}
	slog.SetDefault(slog.New(buildHandler(rootLevel)))
}

// Close flushes and closes the log file, if any.
func Close() error {
	mutex.Lock()
	defer mutex.Unlock()
	if fileWriter == nil {
		return nil
	}
	err := fileWriter.Close()
	fileWriter = nil
	return err
}

// GetLogger returns the logger for module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	logger, ok := loggers[module]
	mutex.RUnlock()
	if ok {
		return logger
	}

	mutex.Lock()
	defer mutex.Unlock()
	if logger, ok := loggers[module]; ok {
		return logger
	}

	lv := &slog.LevelVar{}
	lv.Set(moduleLevel(module))
	logger = slog.New(buildHandler(lv)).With("module", module)
	loggers[module] = logger
	levels[module] = lv
	return logger
}

// SetModuleLevel changes one module's level at runtime.
func SetModuleLevel(module, level string) {
	GetLogger(module)
	mutex.Lock()
	defer mutex.Unlock()
	levels[module].Set(ParseLevel(level, rootLevel.Level()))
}

// Buffer returns the ring of recent entries, or nil before Initialize.
func Buffer() *Ring {
	mutex.RLock()
	defer mutex.RUnlock()
	return logRing
}

// SetEntryCallback registers fn to observe each entry written to the ring.
func SetEntryCallback(fn EntryCallback) {
	mutex.Lock()
	defer mutex.Unlock()
	entryCallback = fn
}

// moduleLevel must be called with mutex held.
func moduleLevel(module string) slog.Level {
	if !initialized {
		return slog.LevelInfo
	}
	base := ParseLevel(config.Level, slog.LevelInfo)
	if override, ok := config.Modules[module]; ok {
		return ParseLevel(override, base)
	}
	return base
}

// buildHandler must be called with mutex held.
func buildHandler(level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	format := "text"
	if initialized {
		format = config.Format
	}

	var sinks fanout
	if stdoutAttached() {
		sinks = append(sinks, streamHandler(os.Stdout, format, opts))
	}
	if fileWriter != nil {
		sinks = append(sinks, slog.NewTextHandler(fileWriter, opts))
	}
	if initialized && JournalAvailable() {
		sinks = append(sinks, newJournalHandler(level))
	}
	sinks = append(sinks, newRingHandler(level))

	if len(sinks) == 1 {
		return sinks[0]
	}
	return sinks
}

func streamHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// stdoutAttached is false when stdout is closed or points at /dev/null.
func stdoutAttached() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&os.ModeCharDevice != 0 || mode&os.ModeNamedPipe != 0 ||
		mode&os.ModeSocket != 0 || mode.IsRegular()
}

// ParseLevel maps a level name to slog.Level, returning fallback for unknown
// names.
func ParseLevel(name string, fallback slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}
