// Package logging provides per-module slog loggers for camrelay.
//
// Every logger returned by GetLogger carries a "module" attribute and its own
// level, so a noisy module can be raised to debug without touching the rest:
//
//	[logging]
//	level = "info"
//	capture = "debug"
//	ffmpeg = "warn"
//
// Records fan out to every available sink: stdout (text or json), the systemd
// journal when journald is reachable, a size-rotated file, and an in-memory
// ring that backs /api/logs/stream.
//
// Journal output can be filtered by module:
//
//	journalctl -t camrelay MODULE=capture -f
package logging
