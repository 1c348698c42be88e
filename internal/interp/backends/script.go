// Package backends holds the interpreter implementations. Most languages only
// differ in binary, file extension and tags, so they share the Script
// backend configured by a ScriptSpec.
package backends

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/michaelbrown/snipforge/internal/interp"
	"github.com/michaelbrown/snipforge/internal/sandbox"
)

// ScriptSpec describes a backend that writes the snippet to one file and
// hands it to an interpreter binary.
type ScriptSpec struct {
	Name      string
	Languages []string
	Subdir    string // private directory under the run's work dir
	Extension string // artifact is main.<Extension>
	Binary    string
	Args      []string // placed between Binary and the artifact path
	MaxLevel  interp.SupportLevel
	Default   bool
	ReplLike  bool
	Image     string // used by the docker driver

	// Boilerplate wraps fetched code. Nil means the code runs as-is.
	Boilerplate func(code string) string
}

// Descriptor binds spec to a sandbox for registration.
func (spec ScriptSpec) Descriptor(sb sandbox.Sandbox) interp.Descriptor {
	return interp.Descriptor{
		Name:               spec.Name,
		Languages:          spec.Languages,
		MaxLevel:           spec.MaxLevel,
		DefaultForFiletype: spec.Default,
		ReplLike:           spec.ReplLike,
		New: func(data interp.Data, level interp.SupportLevel) (interp.Interpreter, error) {
			s, err := NewScript(spec, sb, data, level)
			if err != nil {
				return nil, err
			}
			if spec.ReplLike {
				return &replScript{Script: s}, nil
			}
			return s, nil
		},
	}
}

// Script is the backend instance for one run.
type Script struct {
	spec         ScriptSpec
	sb           sandbox.Sandbox
	level        interp.SupportLevel
	data         interp.Data
	code         string
	dir          string
	mainFilePath string
}

// NewScript creates the backend's directory under data.WorkDir and returns
// an instance ready for FetchCode. An existing directory is reused.
func NewScript(spec ScriptSpec, sb sandbox.Sandbox, data interp.Data, level interp.SupportLevel) (*Script, error) {
	if level > spec.MaxLevel {
		return nil, fmt.Errorf("%s at level %s: %w", spec.Name, level, interp.ErrLevelAboveMax)
	}

	// Sandboxes run the tool inside dir, so the artifact path must not be relative.
	dir, err := filepath.Abs(filepath.Join(data.WorkDir, spec.Subdir))
	if err != nil {
		return nil, &interp.ProvisionError{Op: "resolving directory", Path: data.WorkDir, Err: err}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &interp.ProvisionError{Op: "creating directory", Path: dir, Err: err}
	}

	return &Script{
		spec:         spec,
		sb:           sb,
		level:        level,
		data:         data.Clone(),
		dir:          dir,
		mainFilePath: filepath.Join(dir, "main."+spec.Extension),
	}, nil
}

func (s *Script) Name() string                         { return s.spec.Name }
func (s *Script) Languages() []string                  { return append([]string(nil), s.spec.Languages...) }
func (s *Script) MaxSupportLevel() interp.SupportLevel { return s.spec.MaxLevel }
func (s *Script) CurrentLevel() interp.SupportLevel    { return s.level }
func (s *Script) DefaultForFiletype() bool             { return s.spec.Default }
func (s *Script) Data() interp.Data                    { return s.data.Clone() }

func (s *Script) SetCurrentLevel(level interp.SupportLevel) error {
	if level > s.spec.MaxLevel {
		return fmt.Errorf("%s at level %s: %w", s.spec.Name, level, interp.ErrLevelAboveMax)
	}
	s.level = level
	return nil
}

// Code returns the buffer built so far.
func (s *Script) Code() string { return s.code }

// MainFilePath returns the artifact location.
func (s *Script) MainFilePath() string { return s.mainFilePath }

func (s *Script) FetchCode() error {
	s.code = interp.SelectCode(s.data, s.level)
	return nil
}

func (s *Script) AddBoilerplate() error {
	if s.spec.Boilerplate != nil {
		s.code = s.spec.Boilerplate(s.code)
	}
	return nil
}

func (s *Script) Build() error {
	if err := os.WriteFile(s.mainFilePath, []byte(s.code), 0o644); err != nil {
		return &interp.ProvisionError{Op: "writing artifact", Path: s.mainFilePath, Err: err}
	}
	return nil
}

func (s *Script) Execute(ctx context.Context) (string, error) {
	argv := make([]string, 0, 2+len(s.spec.Args)+len(s.data.CLIArgs))
	argv = append(argv, s.spec.Binary)
	argv = append(argv, s.spec.Args...)
	argv = append(argv, s.mainFilePath)
	argv = append(argv, s.data.CLIArgs...)

	res, err := s.sb.Exec(ctx, sandbox.ExecOpts{
		Command: argv,
		Dir:     s.dir,
		Image:   s.spec.Image,
	})
	if err != nil {
		if errors.Is(err, sandbox.ErrLaunch) {
			return "", &interp.LaunchError{Binary: s.spec.Binary, Err: err}
		}
		return "", fmt.Errorf("executing %s: %w", s.spec.Name, err)
	}

	if res.Success() {
		return interp.DecodeOutput("stdout", res.Stdout)
	}

	stderr, err := interp.DecodeOutput("stderr", res.Stderr)
	if err != nil {
		return "", err
	}
	return "", &interp.RuntimeError{
		Interpreter: s.spec.Name,
		ExitCode:    res.ExitCode,
		Stderr:      stderr,
	}
}

// replScript marks a Script as usable for incremental execution.
type replScript struct {
	*Script
}

func (r *replScript) ReplLike() {}
