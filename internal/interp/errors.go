package interp

import (
	"errors"
	"fmt"
)

// Sentinel errors for classifying pipeline failures.
var (
	// ErrProvisioning indicates the backend's cache directory or artifact
	// file could not be created or written.
	ErrProvisioning = errors.New("environment provisioning failed")

	// ErrRuntime indicates the external tool ran and exited unsuccessfully.
	ErrRuntime = errors.New("runtime error")

	// ErrLaunch indicates the external tool could not be started at all.
	ErrLaunch = errors.New("interpreter could not be started")

	// ErrDecode indicates captured output was not valid text.
	ErrDecode = errors.New("output is not valid UTF-8 text")

	// ErrStageOrder is returned when a pipeline stage is called before the
	// stage it depends on has succeeded.
	ErrStageOrder = errors.New("pipeline stage called out of order")

	// ErrPipelineAborted is returned for any stage called after an earlier
	// stage failed.
	ErrPipelineAborted = errors.New("pipeline aborted by earlier failure")

	// ErrLevelAboveMax is returned when a level above the backend's declared
	// maximum is requested.
	ErrLevelAboveMax = errors.New("support level above interpreter maximum")
)

// Registry errors.
var (
	ErrInterpreterExists   = errors.New("interpreter already registered")
	ErrInterpreterNotFound = errors.New("interpreter not found")
	ErrUnsupportedLanguage = errors.New("no interpreter for language")
	ErrAmbiguousLanguage   = errors.New("several interpreters claim language and none is default")
	ErrInvalidDescriptor   = errors.New("invalid interpreter descriptor")
)

// ProvisionError reports a filesystem operation that failed while preparing
// the environment for a run.
type ProvisionError struct {
	Op   string
	Path string
	Err  error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

func (e *ProvisionError) Is(target error) bool { return target == ErrProvisioning }

// RuntimeError carries the diagnostics of a tool that exited with a
// non-success status. Error returns Stderr unchanged so it can be shown to the
// user as-is.
type RuntimeError struct {
	Interpreter string
	ExitCode    int
	Stderr      string
}

func (e *RuntimeError) Error() string { return e.Stderr }

func (e *RuntimeError) Is(target error) bool { return target == ErrRuntime }

// LaunchError reports that the tool binary could not be started.
type LaunchError struct {
	Binary string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("starting %s: %v", e.Binary, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

func (e *LaunchError) Is(target error) bool { return target == ErrLaunch }

// DecodeError reports that a captured stream was not valid text.
type DecodeError struct {
	Stream string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.Stream, ErrDecode)
}

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// Kind names the class of err for logs, history records and API payloads.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRuntime):
		return "runtime"
	case errors.Is(err, ErrLaunch):
		return "launch"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrProvisioning):
		return "provisioning"
	case errors.Is(err, ErrStageOrder), errors.Is(err, ErrPipelineAborted):
		return "pipeline"
	case errors.Is(err, ErrLevelAboveMax):
		return "level"
	case errors.Is(err, ErrUnsupportedLanguage), errors.Is(err, ErrInterpreterNotFound):
		return "not_found"
	case errors.Is(err, ErrAmbiguousLanguage):
		return "ambiguous"
	default:
		return "internal"
	}
}
