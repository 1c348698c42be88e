package interp

import (
	"fmt"
	"strings"
)

// SupportLevel ranks how much of a language a backend can execute.
// Levels are ordered: a backend supporting Bloc also supports Line.
type SupportLevel int

const (
	Unsupported SupportLevel = iota
	Line
	Bloc
	Import
	File
	Project
	System
)

var levelNames = []string{"unsupported", "line", "bloc", "import", "file", "project", "system"}

func (l SupportLevel) String() string {
	if l < Unsupported || int(l) >= len(levelNames) {
		return fmt.Sprintf("SupportLevel(%d)", int(l))
	}
	return levelNames[l]
}

// ParseSupportLevel parses a level name such as "bloc" or "Line".
// "block" is accepted as an alias for "bloc".
func ParseSupportLevel(s string) (SupportLevel, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "block" {
		name = "bloc"
	}
	for i, n := range levelNames {
		if n == name {
			return SupportLevel(i), nil
		}
	}
	return Unsupported, fmt.Errorf("unknown support level %q", s)
}

// MinLevel returns the lower of two levels.
func MinLevel(a, b SupportLevel) SupportLevel {
	if a < b {
		return a
	}
	return b
}

func (l SupportLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *SupportLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseSupportLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
