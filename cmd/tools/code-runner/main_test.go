package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelbrown/snipforge/internal/interp"
	"github.com/michaelbrown/snipforge/internal/interp/backends"
	"github.com/michaelbrown/snipforge/internal/runner"
	"github.com/michaelbrown/snipforge/internal/sandbox"
)

// echoSandbox prints the artifact and the program arguments back, or fails
// when the artifact reads "die".
type echoSandbox struct{}

func (echoSandbox) Exec(_ context.Context, opts sandbox.ExecOpts) (*sandbox.ExecResult, error) {
	for i, a := range opts.Command {
		if !strings.HasPrefix(a, opts.Dir+string(filepath.Separator)) {
			continue
		}
		code, err := os.ReadFile(a)
		if err != nil {
			return nil, err
		}
		if string(code) == "die" {
			return &sandbox.ExecResult{Stderr: []byte("Died at main.pl line 1.\n"), ExitCode: 255}, nil
		}
		out := string(code)
		if rest := opts.Command[i+1:]; len(rest) > 0 {
			out += " " + strings.Join(rest, " ")
		}
		return &sandbox.ExecResult{Stdout: []byte(out)}, nil
	}
	return nil, errors.New("no artifact")
}

func newTestRunner(t *testing.T) *runner.Runner {
	t.Helper()
	reg := interp.NewRegistry()
	require.NoError(t, backends.Register(reg, echoSandbox{}, nil))
	return runner.New(reg, runner.Options{WorkDir: t.TempDir(), Isolate: true})
}

func call(t *testing.T, rn *runner.Runner, args any) (string, bool) {
	t.Helper()
	res, err := snippetRunHandler(rn)(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      "snippet_run",
			Arguments: args,
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text, res.IsError
}

func TestSnippetRun(t *testing.T) {
	rn := newTestRunner(t)

	text, isErr := call(t, rn, map[string]any{
		"language": "perl",
		"code":     `print "Hello,World!"`,
		"args":     []any{"a", "b"},
	})
	assert.False(t, isErr)
	assert.Equal(t, `print "Hello,World!" a b`, text)
}

func TestSnippetRun_RuntimeError(t *testing.T) {
	text, isErr := call(t, newTestRunner(t), map[string]any{"language": "pl", "code": "die"})
	assert.True(t, isErr)
	assert.Contains(t, text, "STDERR:\nDied at main.pl line 1.")
	assert.Contains(t, text, "exit code: 255")
}

func TestSnippetRun_BadInput(t *testing.T) {
	rn := newTestRunner(t)

	tests := []struct {
		name string
		args any
		want string
	}{
		{"no arguments", nil, "invalid arguments"},
		{"missing code", map[string]any{"language": "perl"}, "required"},
		{"bad args", map[string]any{"language": "perl", "code": "1", "args": []any{1}}, "list of strings"},
		{"unknown language", map[string]any{"language": "brainfuck", "code": "+"}, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := call(t, rn, tt.args)
			assert.True(t, isErr)
			assert.Contains(t, text, tt.want)
		})
	}
}

func TestSnippetRun_Truncates(t *testing.T) {
	text, isErr := call(t, newTestRunner(t), map[string]any{
		"language": "perl",
		"code":     strings.Repeat("x", maxOutput+100),
	})
	assert.False(t, isErr)
	assert.True(t, strings.HasSuffix(text, "... (output truncated)"))
	assert.Len(t, text, maxOutput+len("\n... (output truncated)"))
}

func TestTruncate_RuneBoundary(t *testing.T) {
	// "é" is two bytes; the byte limit falls inside the last one.
	text := strings.Repeat("a", maxOutput-1) + "é" + "tail"
	got := truncate(text)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", maxOutput-1)+"\n... (output truncated)", got)

	exact := strings.Repeat("a", maxOutput-2) + "é"
	assert.Equal(t, exact, truncate(exact))
}

func TestNewServer(t *testing.T) {
	assert.NotNil(t, newServer(newTestRunner(t)))
}
