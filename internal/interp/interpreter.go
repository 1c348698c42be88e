package interp

import (
	"context"
	"strings"
)

// Interpreter is implemented by every language backend. A value handles
// exactly one run: the caller invokes FetchCode, AddBoilerplate, Build and
// Execute in that order and stops at the first error. Use Pipeline to have
// the order enforced.
type Interpreter interface {
	// Name is a stable identifier, distinct from the language tags.
	Name() string

	// Languages lists the tags the backend answers to. The first entry is the
	// display name, the rest are aliases and file extensions.
	Languages() []string

	MaxSupportLevel() SupportLevel
	CurrentLevel() SupportLevel

	// SetCurrentLevel returns ErrLevelAboveMax if level exceeds
	// MaxSupportLevel.
	SetCurrentLevel(level SupportLevel) error

	// DefaultForFiletype reports whether the backend should win when several
	// backends claim the same filetype.
	DefaultForFiletype() bool

	// Data returns a copy of the context the backend was built with.
	Data() Data

	FetchCode() error
	AddBoilerplate() error
	Build() error
	Execute(ctx context.Context) (string, error)
}

// ReplLikeInterpreter is implemented by backends that can take part in
// incremental execution. ReplLike does nothing; it only marks the capability.
type ReplLikeInterpreter interface {
	Interpreter
	ReplLike()
}

// IsReplLike reports whether in supports REPL-style execution.
func IsReplLike(in Interpreter) bool {
	_, ok := in.(ReplLikeInterpreter)
	return ok
}

// Factory constructs a backend bound to data at the given level. Factories
// create the backend's private directory under data.WorkDir.
type Factory func(data Data, level SupportLevel) (Interpreter, error)

// Descriptor holds what the registry needs to know about a backend type
// without constructing it.
type Descriptor struct {
	Name               string
	Languages          []string
	MaxLevel           SupportLevel
	DefaultForFiletype bool
	ReplLike           bool
	New                Factory
}

// DisplayName returns the human readable language name.
func (d Descriptor) DisplayName() string {
	if len(d.Languages) == 0 {
		return ""
	}
	return d.Languages[0]
}

// Claims reports whether tag is one of the descriptor's languages.
func (d Descriptor) Claims(tag string) bool {
	for _, l := range d.Languages {
		if l == tag {
			return true
		}
	}
	return false
}

func (d Descriptor) validate() error {
	switch {
	case strings.TrimSpace(d.Name) == "":
		return ErrInvalidDescriptor
	case len(d.Languages) == 0:
		return ErrInvalidDescriptor
	case d.New == nil:
		return ErrInvalidDescriptor
	case d.MaxLevel <= Unsupported:
		return ErrInvalidDescriptor
	}
	return nil
}

// SelectCode picks the code a backend at level should run. A block wins when
// it has non-whitespace content and the level allows blocks; otherwise the
// current line is used when it has something besides spaces and the level
// allows lines. Anything else yields "".
func SelectCode(data Data, level SupportLevel) string {
	if stripChars(data.CurrentBloc, " \t\n\r") != "" && level >= Bloc {
		return data.CurrentBloc
	}
	if stripChars(data.CurrentLine, " ") != "" && level >= Line {
		return data.CurrentLine
	}
	return ""
}

func stripChars(s, chars string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(chars, r) {
			return -1
		}
		return r
	}, s)
}
