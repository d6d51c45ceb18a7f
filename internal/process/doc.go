// Package process supervises a single child process whose stdout is consumed
// by the caller.
//
// Start launches the command in its own process group and returns its stdout.
// Stderr is scanned line by line and logged through an optional LogParser.
// Stop sends SIGINT, waits for the grace period, then kills; it is safe to
// call any number of times and always returns the same exit code.
package process
