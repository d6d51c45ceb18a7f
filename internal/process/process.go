package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/camrelay/internal/logging"
)

// LogParser extracts a level and message from one line of stderr.
type LogParser func(line string) (slog.Level, string)

// Process runs one command. A Process is started at most once.
type Process struct {
	id   string
	path string
	args []string

	logger       logging.Logger
	outputLogger logging.Logger
	parser       LogParser
	graceTimeout time.Duration
	killTimeout  time.Duration

	mu       sync.Mutex
	state    State
	cmd      *exec.Cmd
	done     chan struct{}
	waitErr  error
	stdout   *os.File
	stopOnce sync.Once
	exitCode int
}

// New prepares a process; nothing runs until Start.
func New(id, path string, args []string, logger logging.Logger) *Process {
	return &Process{
		id:           id,
		path:         path,
		args:         args,
		logger:       logger,
		graceTimeout: 2 * time.Second,
		killTimeout:  2 * time.Second,
		state:        StateIdle,
		done:         make(chan struct{}),
	}
}

// SetLogParser routes stderr to logger, classifying each line with parser.
func (p *Process) SetLogParser(logger logging.Logger, parser LogParser) {
	p.outputLogger = logger
	p.parser = parser
}

// SetTimeouts overrides the SIGINT grace period and the post-kill wait.
func (p *Process) SetTimeouts(grace, kill time.Duration) {
	p.graceTimeout = grace
	p.killTimeout = kill
}

// Start launches the process and returns its stdout. The reader reaches EOF
// once the process exits; it is closed by Stop.
func (p *Process) Start() (io.Reader, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateIdle {
		return nil, fmt.Errorf("process %s: already started", p.id)
	}

	cmd := exec.Command(p.path, p.args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// An os.Pipe rather than StdoutPipe: Wait must not close the read end
	// while the consumer still has buffered frames to drain.
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("process %s: stdout pipe: %w", p.id, err)
	}
	cmd.Stdout = stdoutW
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdout.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("process %s: stderr pipe: %w", p.id, err)
	}
	startErr := cmd.Start()
	stdoutW.Close()
	if startErr != nil {
		stdout.Close()
		p.state = StateExited
		close(p.done)
		return nil, fmt.Errorf("process %s: start %s: %w", p.id, p.path, startErr)
	}

	p.cmd = cmd
	p.stdout = stdout
	p.state = StateRunning
	p.logger.Debug("Process started", "id", p.id, "pid", cmd.Process.Pid)

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		p.logOutput(stderr)
	}()
	go func() {
		// Wait closes the pipes, so stderr must be drained first.
		<-stderrDone
		err := cmd.Wait()
		p.mu.Lock()
		p.waitErr = err
		p.state = StateExited
		p.mu.Unlock()
		close(p.done)
	}()

	return stdout, nil
}

// Done is closed once the process has exited and its output is drained.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err returns the wait error after Done is closed.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

// State reports the current lifecycle state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// PID returns the process id, or 0 if it never started.
func (p *Process) PID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Stop terminates the process and returns its exit code. Repeated calls
// return the first result without signalling again.
func (p *Process) Stop() int {
	p.stopOnce.Do(func() {
		p.exitCode = p.stop()
		p.mu.Lock()
		if p.stdout != nil {
			p.stdout.Close()
		}
		p.mu.Unlock()
	})
	return p.exitCode
}

func (p *Process) stop() int {
	p.mu.Lock()
	cmd := p.cmd
	if p.state == StateRunning {
		p.state = StateStopping
	}
	p.mu.Unlock()

	if cmd == nil {
		return exitCode(p.Err())
	}

	select {
	case <-p.done:
		return exitCode(p.Err())
	default:
	}

	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGINT); err != nil && !errors.Is(err, syscall.ESRCH) {
		p.logger.Warn("Failed to interrupt process", "id", p.id, "error", err)
	}

	select {
	case <-p.done:
		return exitCode(p.Err())
	case <-time.After(p.graceTimeout):
	}

	p.logger.Warn("Process ignored SIGINT, killing", "id", p.id, "grace", p.graceTimeout)
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.logger.Error("Failed to kill process", "id", p.id, "error", err)
		}
	}
	select {
	case <-p.done:
	case <-time.After(p.killTimeout):
		p.logger.Error("Process did not exit after SIGKILL", "id", p.id)
	}
	return exitCodeKilled
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
		// terminated by a signal
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
	}
	return 1
}

func (p *Process) logOutput(r io.Reader) {
	logger := p.outputLogger
	if logger == nil {
		logger = p.logger
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		level, msg := slog.LevelInfo, scanner.Text()
		if p.parser != nil {
			level, msg = p.parser(msg)
		}
		switch {
		case level >= slog.LevelError:
			logger.Error(msg, "id", p.id)
		case level >= slog.LevelWarn:
			logger.Warn(msg, "id", p.id)
		case level >= slog.LevelInfo:
			logger.Info(msg, "id", p.id)
		default:
			logger.Debug(msg, "id", p.id)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		p.logger.Warn("Error reading process output", "id", p.id, "error", err)
	}
}
