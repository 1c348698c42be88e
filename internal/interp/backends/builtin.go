package backends

import (
	"strings"

	"github.com/michaelbrown/snipforge/internal/interp"
)

// Perl runs snippets with the system perl.
var Perl = ScriptSpec{
	Name:      "Perl_original",
	Languages: []string{"Perl", "perl", "pm", "pl"},
	Subdir:    "perl_original",
	Extension: "pl",
	Binary:    "perl",
	MaxLevel:  interp.Bloc,
	Default:   true,
	ReplLike:  true,
	Image:     "perl:5.40-slim",
}

var Python3 = ScriptSpec{
	Name:      "Python3_original",
	Languages: []string{"Python 3", "python", "python3", "py"},
	Subdir:    "python3_original",
	Extension: "py",
	Binary:    "python3",
	MaxLevel:  interp.Bloc,
	Default:   true,
	Image:     "python:3.12-slim",
}

var Ruby = ScriptSpec{
	Name:      "Ruby_original",
	Languages: []string{"Ruby", "ruby", "rb"},
	Subdir:    "ruby_original",
	Extension: "rb",
	Binary:    "ruby",
	MaxLevel:  interp.Bloc,
	Default:   true,
	Image:     "ruby:3.3-slim",
}

var Bash = ScriptSpec{
	Name:      "Bash_original",
	Languages: []string{"Bash/Shell", "bash", "shell", "sh"},
	Subdir:    "bash_original",
	Extension: "sh",
	Binary:    "bash",
	MaxLevel:  interp.Bloc,
	Default:   true,
	Image:     "bash:5.2",
}

var Lua = ScriptSpec{
	Name:      "Lua_original",
	Languages: []string{"Lua", "lua"},
	Subdir:    "lua_original",
	Extension: "lua",
	Binary:    "lua",
	MaxLevel:  interp.Bloc,
	Default:   true,
	Image:     "nickblah/lua:5.4",
}

var JavaScript = ScriptSpec{
	Name:      "JS_original",
	Languages: []string{"JavaScript", "javascript", "js"},
	Subdir:    "js_original",
	Extension: "js",
	Binary:    "node",
	MaxLevel:  interp.Bloc,
	Default:   true,
	Image:     "node:22-slim",
}

// Go needs a package clause and a main function, so bare statements are
// wrapped before the artifact is written.
var Go = ScriptSpec{
	Name:        "Go_original",
	Languages:   []string{"Go", "go"},
	Subdir:      "go_original",
	Extension:   "go",
	Binary:      "go",
	Args:        []string{"run"},
	MaxLevel:    interp.Bloc,
	Default:     true,
	Image:       "golang:1.23-alpine",
	Boilerplate: goBoilerplate,
}

// Builtins returns the interpreters shipped with snipforge.
func Builtins() []ScriptSpec {
	return []ScriptSpec{Perl, Python3, Ruby, Bash, Lua, JavaScript, Go}
}

func goBoilerplate(code string) string {
	if strings.Contains(code, "package main") {
		return code
	}

	var b strings.Builder
	b.WriteString("package main\n\n")
	if strings.Contains(code, "fmt.") && !strings.Contains(code, `"fmt"`) {
		b.WriteString("import \"fmt\"\n\n")
	}
	b.WriteString("func main() {\n")
	b.WriteString(code)
	b.WriteString("\n}\n")
	return b.String()
}
