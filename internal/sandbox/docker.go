package sandbox

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

const containerWorkdir = "/workspace"

// dockerDaemonError is the exit status docker run uses when the container
// could not be created at all.
const dockerDaemonError = 125

// DockerSandbox runs commands in throwaway Docker containers. The artifact
// directory is mounted read-only at /workspace and host paths inside it are
// rewritten to their container location.
type DockerSandbox struct {
	Policy Policy
	local  *LocalSandbox
}

// NewDockerSandbox creates a sandbox with the given policy.
func NewDockerSandbox(policy Policy) *DockerSandbox {
	return &DockerSandbox{Policy: policy, local: NewLocalSandbox()}
}

func (d *DockerSandbox) Exec(ctx context.Context, opts ExecOpts) (*ExecResult, error) {
	if opts.Image == "" {
		return nil, fmt.Errorf("%w: no image configured for %v", ErrLaunch, opts.Command)
	}
	if !d.Policy.IsImageAllowed(opts.Image) {
		return nil, fmt.Errorf("%w: image %q not in allowlist", ErrLaunch, opts.Image)
	}

	res, err := d.local.Exec(ctx, ExecOpts{
		Command: d.dockerArgs(opts),
		Stdin:   opts.Stdin,
	})
	if err != nil {
		return nil, err
	}
	if res.ExitCode == dockerDaemonError {
		return nil, fmt.Errorf("%w: docker: %s", ErrLaunch, strings.TrimSpace(string(res.Stderr)))
	}
	return res, nil
}

func (d *DockerSandbox) dockerArgs(opts ExecOpts) []string {
	args := []string{
		"docker", "run", "--rm", "-i",
		"--memory", d.Policy.MaxMemory,
		"--stop-timeout", fmt.Sprintf("%d", int(d.Policy.MaxTimeout.Seconds())),
	}

	if opts.Dir != "" {
		args = append(args,
			"-v", opts.Dir+":"+containerWorkdir+":ro",
			"-w", containerWorkdir,
		)
	}

	if !d.Policy.Network {
		args = append(args, "--network=none")
	}

	args = append(args, opts.Image)
	for _, a := range opts.Command {
		args = append(args, containerPath(opts.Dir, a))
	}
	return args
}

// containerPath maps a host path under dir to the mounted location. Other
// arguments are returned unchanged.
func containerPath(dir, arg string) string {
	if dir == "" {
		return arg
	}
	rel, err := filepath.Rel(dir, arg)
	if err != nil || rel == ".." || strings.HasPrefix(rel, "../") || !filepath.IsAbs(arg) {
		return arg
	}
	return filepath.ToSlash(filepath.Join(containerWorkdir, rel))
}
