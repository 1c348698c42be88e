package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/snipforge/internal/interp"
	"github.com/michaelbrown/snipforge/internal/runner"
)

var (
	langFlag        string
	interpreterFlag string
	lineFlag        string
	blocFlag        string
	fileFlag        string
	levelFlag       string
)

var runCmd = &cobra.Command{
	Use:   "run [flags] [-- args...]",
	Short: "Run a line or block of code",
	Long: `Run a snippet with the interpreter for its language and print its output.

The block is used when it is non-empty and the interpreter supports blocks,
otherwise the line. Arguments after -- are passed to the program.

Examples:
  snipforge run --lang perl --line 'print "hi"'
  snipforge run -f script.pl -- one two
  echo 'print 1+1' | snipforge run --lang perl -f -`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&langFlag, "lang", "", "Language or file extension (default: from --file)")
	runCmd.Flags().StringVar(&interpreterFlag, "interpreter", "", "Interpreter name, e.g. Perl_original")
	runCmd.Flags().StringVar(&lineFlag, "line", "", "Single line of code")
	runCmd.Flags().StringVar(&blocFlag, "bloc", "", "Block of code")
	runCmd.Flags().StringVarP(&fileFlag, "file", "f", "", "Read the block from a file (- for stdin)")
	runCmd.Flags().StringVar(&levelFlag, "level", "", "Cap the support level (line, bloc)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	req := runner.Request{
		Interpreter: interpreterFlag,
		Data: interp.Data{
			Filetype:    langFlag,
			CurrentLine: lineFlag,
			CurrentBloc: blocFlag,
		},
	}
	if len(args) > 0 {
		req.Data.CLIArgs = args
	}

	if fileFlag != "" {
		code, err := readSource(fileFlag, cmd.InOrStdin())
		if err != nil {
			return err
		}
		req.Data.CurrentBloc = code
		if req.Data.Filetype == "" && fileFlag != "-" {
			req.Data.Filetype = filetypeOf(fileFlag)
		}
	}

	if req.Data.Filetype == "" && req.Interpreter == "" {
		return fmt.Errorf("--lang, --interpreter or a --file with an extension is required")
	}

	if levelFlag != "" {
		level, err := interp.ParseSupportLevel(levelFlag)
		if err != nil {
			return err
		}
		req.Level = level
	}

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := a.Runner.Run(ctx, req)
	if err != nil {
		return reportRunError(cmd.ErrOrStderr(), err)
	}
	fmt.Fprint(cmd.OutOrStdout(), res.Output)
	return nil
}

// reportRunError prints a failed run. A program that ran and failed exits
// with status 1 after its stderr is shown; other failures are returned.
func reportRunError(w io.Writer, err error) error {
	var rt *interp.RuntimeError
	if errors.As(err, &rt) {
		fmt.Fprint(w, rt.Stderr)
		return &exitError{code: 1}
	}
	return err
}

func readSource(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading source: %w", err)
	}
	return string(data), nil
}

// filetypeOf returns the extension of path without the dot.
func filetypeOf(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}
