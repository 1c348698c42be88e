package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/michaelbrown/snipforge/internal/app"
	"github.com/michaelbrown/snipforge/internal/config"
	"github.com/michaelbrown/snipforge/internal/interp"
	"github.com/michaelbrown/snipforge/internal/runner"
)

const maxOutput = 4000

func main() {
	cfg, err := config.Load(os.Getenv("SNIPFORGE_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	// Stdio carries the protocol; a.Log writes to stderr.
	a, err := app.New(cfg, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	s := newServer(a.Runner)
	if err := server.ServeStdio(s); err != nil {
		a.Log.WithError(err).Error("server error")
	}
}

func newServer(rn *runner.Runner) *server.MCPServer {
	s := server.NewMCPServer("snipforge-code-runner", "0.1.0")

	// Build language list for description
	var langs []string
	for _, d := range rn.Registry().List() {
		langs = append(langs, d.DisplayName())
	}

	s.AddTool(mcp.Tool{
		Name:        "snippet_run",
		Description: fmt.Sprintf("Run a code snippet and return what it printed. Supported languages: %s.", strings.Join(langs, ", ")),
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"language": map[string]any{
					"type":        "string",
					"description": "Language name, alias or file extension (perl, python, pl, ...)",
				},
				"code": map[string]any{
					"type":        "string",
					"description": "Source code to run as a block",
				},
				"args": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Command-line arguments for the program (optional)",
				},
			},
			Required: []string{"language", "code"},
		},
	}, snippetRunHandler(rn))

	return s
}

func snippetRunHandler(rn *runner.Runner) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)
		if args == nil {
			return errResult("error: invalid arguments"), nil
		}

		language, _ := args["language"].(string)
		code, _ := args["code"].(string)
		if language == "" || code == "" {
			return errResult("error: 'language' and 'code' are required"), nil
		}

		var cliArgs []string
		if raw, ok := args["args"].([]any); ok {
			for _, v := range raw {
				s, ok := v.(string)
				if !ok {
					return errResult("error: 'args' must be a list of strings"), nil
				}
				cliArgs = append(cliArgs, s)
			}
		}

		res, err := rn.Run(ctx, runner.Request{Data: interp.Data{
			Filetype:    language,
			CurrentBloc: code,
			CLIArgs:     cliArgs,
		}})
		if err != nil {
			var rt *interp.RuntimeError
			if errors.As(err, &rt) {
				text := "STDERR:\n" + rt.Stderr
				text += fmt.Sprintf("\nexit code: %d", rt.ExitCode)
				return errResult(truncate(text)), nil
			}
			return errResult(fmt.Sprintf("error (%s): %v", interp.Kind(err), err)), nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: truncate(res.Output)}},
		}, nil
	}
}

func truncate(text string) string {
	if len(text) <= maxOutput {
		return text
	}
	cut := maxOutput
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "\n... (output truncated)"
}

func errResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}
