package sandbox

import (
	"context"
	"errors"
	"fmt"
)

// ErrLaunch is wrapped by Exec errors when the command could not be started.
var ErrLaunch = errors.New("launching command")

// ExecOpts describes one process invocation.
type ExecOpts struct {
	Command []string // argv; Command[0] is the binary
	Dir     string   // directory holding the artifact; also the working directory
	Image   string   // container image, used by the docker driver only
	Stdin   string
}

// ExecResult is the output of a finished process. Stdout and Stderr are kept
// apart and left undecoded.
type ExecResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Success reports whether the process exited with status zero.
func (r *ExecResult) Success() bool { return r.ExitCode == 0 }

// Sandbox runs a command and waits for it to exit. A non-zero exit is not an
// error; errors mean the command could not be run.
type Sandbox interface {
	Exec(ctx context.Context, opts ExecOpts) (*ExecResult, error)
}

// Driver names accepted by New.
const (
	DriverLocal  = "local"
	DriverDocker = "docker"
)

// New returns the sandbox for driver.
func New(driver string, policy Policy) (Sandbox, error) {
	switch driver {
	case "", DriverLocal:
		return NewLocalSandbox(), nil
	case DriverDocker:
		return NewDockerSandbox(policy), nil
	default:
		return nil, fmt.Errorf("unknown sandbox driver %q", driver)
	}
}
