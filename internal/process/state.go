package process

// State is the lifecycle position of a Process.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateExited   State = "exited"
)

// exitCodeKilled is reported when the process had to be SIGKILLed.
const exitCodeKilled = 137
