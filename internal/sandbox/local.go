package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// LocalSandbox runs commands directly on the host.
type LocalSandbox struct{}

// NewLocalSandbox creates a host process launcher.
func NewLocalSandbox() *LocalSandbox {
	return &LocalSandbox{}
}

func (l *LocalSandbox) Exec(ctx context.Context, opts ExecOpts) (*ExecResult, error) {
	if len(opts.Command) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrLaunch)
	}

	cmd := exec.CommandContext(ctx, opts.Command[0], opts.Command[1:]...)
	cmd.Dir = opts.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if opts.Stdin != "" {
		cmd.Stdin = strings.NewReader(opts.Stdin)
	}

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("running %s: %w", opts.Command[0], ctxErr)
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w %s: %w", ErrLaunch, opts.Command[0], err)
		}
		exitCode = exitErr.ExitCode()
	}

	return &ExecResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
	}, nil
}
