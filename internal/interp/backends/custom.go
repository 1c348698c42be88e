package backends

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/michaelbrown/snipforge/internal/interp"
	"github.com/michaelbrown/snipforge/internal/sandbox"
)

// Definition is a user-declared script interpreter.
type Definition struct {
	Name      string   `yaml:"name"`
	Languages []string `yaml:"languages"`
	Binary    string   `yaml:"binary"`
	Args      []string `yaml:"args"`
	Extension string   `yaml:"extension"`
	MaxLevel  string   `yaml:"max_level"`
	Default   bool     `yaml:"default"`
	ReplLike  bool     `yaml:"repl_like"`
	Image     string   `yaml:"image"`
}

// Custom interpreters are provisioned below this directory so they never share
// a directory with a built-in.
const customSubdir = "custom"

type definitionsFile struct {
	Interpreters []Definition `yaml:"interpreters"`
}

// LoadDefinitions reads interpreter definitions from a YAML file.
func LoadDefinitions(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading interpreters %s: %w", path, err)
	}

	var f definitionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing interpreters %s: %w", path, err)
	}
	return f.Interpreters, nil
}

// Spec converts the definition into a ScriptSpec. MaxLevel defaults to bloc.
func (d Definition) Spec() (ScriptSpec, error) {
	if d.Name == "" {
		return ScriptSpec{}, fmt.Errorf("interpreter definition without name: %w", interp.ErrInvalidDescriptor)
	}
	if d.Binary == "" || d.Extension == "" || len(d.Languages) == 0 {
		return ScriptSpec{}, fmt.Errorf("interpreter %s needs binary, extension and languages: %w", d.Name, interp.ErrInvalidDescriptor)
	}

	if strings.ContainsAny(d.Name, `/\`) || !filepath.IsLocal(d.Name) {
		return ScriptSpec{}, fmt.Errorf("interpreter name %q is not a plain file name: %w", d.Name, interp.ErrInvalidDescriptor)
	}

	level := interp.Bloc
	if d.MaxLevel != "" {
		var err error
		if level, err = interp.ParseSupportLevel(d.MaxLevel); err != nil {
			return ScriptSpec{}, fmt.Errorf("interpreter %s: %w", d.Name, err)
		}
	}

	return ScriptSpec{
		Name:      d.Name,
		Languages: d.Languages,
		Subdir:    filepath.Join(customSubdir, strings.ToLower(d.Name)),
		Extension: strings.TrimPrefix(d.Extension, "."),
		Binary:    d.Binary,
		Args:      d.Args,
		MaxLevel:  level,
		Default:   d.Default,
		ReplLike:  d.ReplLike,
		Image:     d.Image,
	}, nil
}

// Register adds the built-in interpreters and defs to reg, all bound to sb.
func Register(reg *interp.Registry, sb sandbox.Sandbox, defs []Definition) error {
	for _, spec := range Builtins() {
		if err := reg.Register(spec.Descriptor(sb)); err != nil {
			return err
		}
	}
	for _, def := range defs {
		spec, err := def.Spec()
		if err != nil {
			return err
		}
		if err := reg.Register(spec.Descriptor(sb)); err != nil {
			return err
		}
	}
	return nil
}
