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
	"sync"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/snipforge/internal/interp"
	"github.com/michaelbrown/snipforge/internal/runner"
)

var (
	replLangFlag  string
	replLevelFlag string
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive snippet session",
	Long: `Start an interactive session. Each line you type runs on its own;
/bloc starts a block that runs when you type /end.

Examples:
  snipforge repl --lang perl
  snipforge repl --lang python --level line`,
	Args: cobra.NoArgs,
	RunE: runRepl,
}

func init() {
	replCmd.Flags().StringVar(&replLangFlag, "lang", "perl", "Language to start with")
	replCmd.Flags().StringVar(&replLevelFlag, "level", "", "Cap the support level")
	rootCmd.AddCommand(replCmd)
}

// replSession holds the state of one interactive session.
type replSession struct {
	runner *runner.Runner
	lang   string
	level  interp.SupportLevel
	out    io.Writer
	errOut io.Writer

	inBloc bool
	bloc   []string
}

func runRepl(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	sess := &replSession{
		runner: a.Runner,
		lang:   replLangFlag,
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
	}
	if replLevelFlag != "" {
		if sess.level, err = interp.ParseSupportLevel(replLevelFlag); err != nil {
			return err
		}
	}

	fmt.Fprintf(sess.out, "Snipforge - Interactive Snippets\n")
	sess.describe()
	fmt.Fprintf(sess.out, "Type /help for commands, /quit to exit\n\n")

	historyFile := filepath.Join(os.TempDir(), "snipforge_history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          sess.prompt(),
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	// Ctrl+C cancels the running snippet, not the session.
	var (
		mu        sync.Mutex
		runCancel context.CancelFunc
	)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			mu.Lock()
			if runCancel != nil {
				runCancel()
			}
			mu.Unlock()
		}
	}()

	for {
		rl.SetPrompt(sess.prompt())
		input, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Fprintln(sess.out, "\nGoodbye!")
				return nil
			}
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		mu.Lock()
		runCancel = cancel
		mu.Unlock()

		quit := sess.handle(ctx, input)

		mu.Lock()
		runCancel = nil
		mu.Unlock()
		cancel()

		if quit {
			fmt.Fprintln(sess.out, "Goodbye!")
			return nil
		}
	}
}

func (s *replSession) prompt() string {
	if s.inBloc {
		return "\033[90m....\033[0m "
	}
	return fmt.Sprintf("\033[36m%s>\033[0m ", s.lang)
}

// handle processes one input line and reports whether the session should end.
func (s *replSession) handle(ctx context.Context, input string) bool {
	trimmed := strings.TrimSpace(input)

	if s.inBloc {
		if trimmed == "/end" {
			code := strings.Join(s.bloc, "\n")
			s.inBloc, s.bloc = false, nil
			s.run(ctx, interp.Data{Filetype: s.lang, CurrentBloc: code}, s.level)
			return false
		}
		s.bloc = append(s.bloc, input)
		return false
	}

	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "/") {
		return s.command(trimmed)
	}

	s.run(ctx, interp.Data{Filetype: s.lang, CurrentLine: input}, interp.Line)
	return false
}

func (s *replSession) command(input string) bool {
	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/exit", "/q":
		return true
	case "/bloc", "/block":
		s.inBloc = true
		s.bloc = nil
	case "/lang":
		if len(fields) != 2 {
			fmt.Fprintln(s.errOut, "usage: /lang <language>")
			break
		}
		s.lang = fields[1]
		s.describe()
	case "/level":
		if len(fields) != 2 {
			fmt.Fprintf(s.out, "Level cap: %s\n", s.level)
			break
		}
		level, err := interp.ParseSupportLevel(fields[1])
		if err != nil {
			fmt.Fprintf(s.errOut, "error: %s\n", err)
			break
		}
		s.level = level
		fmt.Fprintf(s.out, "Level cap: %s\n", s.level)
	case "/help":
		fmt.Fprintln(s.out, "Commands:")
		fmt.Fprintln(s.out, "  /bloc          - Start a block, finish it with /end")
		fmt.Fprintln(s.out, "  /lang <tag>    - Switch language")
		fmt.Fprintln(s.out, "  /level [lvl]   - Show or cap the support level")
		fmt.Fprintln(s.out, "  /help          - Show this help")
		fmt.Fprintln(s.out, "  /quit          - Exit")
	default:
		fmt.Fprintf(s.errOut, "Unknown command: %s (try /help)\n", input)
	}
	return false
}

// describe prints which interpreter the current language resolves to.
func (s *replSession) describe() {
	d, err := s.runner.Resolve(runner.Request{Data: interp.Data{Filetype: s.lang}})
	if err != nil {
		fmt.Fprintf(s.errOut, "warning: %s\n", err)
		return
	}
	mode := "each input runs on its own"
	if d.ReplLike {
		mode = "repl-capable"
	}
	fmt.Fprintf(s.out, "Language: %s | Interpreter: %s (%s)\n", s.lang, d.Name, mode)
}

func (s *replSession) run(ctx context.Context, data interp.Data, level interp.SupportLevel) {
	if s.level > interp.Unsupported {
		level = interp.MinLevel(level, s.level)
	}
	res, err := s.runner.Run(ctx, runner.Request{Data: data, Level: level})
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(s.errOut, "(interrupted)")
			return
		}
		var rt *interp.RuntimeError
		if errors.As(err, &rt) {
			fmt.Fprintf(s.errOut, "\033[31m%s\033[0m", ensureNewline(rt.Stderr))
			return
		}
		fmt.Fprintf(s.errOut, "\033[31merror: %s\033[0m\n", err)
		return
	}
	fmt.Fprint(s.out, ensureNewline(res.Output))
}

func ensureNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
