package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/snipforge/internal/interp"
	"github.com/michaelbrown/snipforge/internal/runner"
)

var (
	watchLangFlag     string
	watchDebounceFlag time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <file> [-- args...]",
	Short: "Re-run a file every time it is saved",
	Long: `Watch a source file and run it as a block whenever it changes.

Examples:
  snipforge watch script.pl
  snipforge watch --lang perl notes.txt -- --verbose`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchLangFlag, "lang", "", "Language (default: from the file extension)")
	watchCmd.Flags().DurationVar(&watchDebounceFlag, "debounce", 200*time.Millisecond, "Quiet period before a re-run")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	lang := watchLangFlag
	if lang == "" {
		lang = filetypeOf(path)
	}
	var cliArgs []string
	if len(args) > 1 {
		cliArgs = args[1:]
	}

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file on save, so watch its directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	runOnce := func() {
		code, err := readSource(path, nil)
		if err != nil {
			a.Log.WithError(err).Warn("reading watched file")
			return
		}
		fmt.Fprintf(out, "\033[90m── %s %s\033[0m\n", filepath.Base(path), time.Now().Format("15:04:05"))
		res, err := a.Runner.Run(ctx, runner.Request{Data: interp.Data{
			Filetype:    lang,
			CurrentBloc: code,
			CLIArgs:     cliArgs,
		}})
		if err != nil {
			var rt *interp.RuntimeError
			if errors.As(err, &rt) {
				fmt.Fprint(errOut, ensureNewline(rt.Stderr))
				return
			}
			fmt.Fprintf(errOut, "error: %s\n", err)
			return
		}
		fmt.Fprint(out, ensureNewline(res.Output))
	}

	a.Log.WithField("file", path).Info("watching for changes")
	runOnce()
	return watchFile(ctx, watcher, path, watchDebounceFlag, runOnce)
}

// watchFile calls onChange once per burst of write or create events on path.
// It returns when ctx is done or the watcher is closed.
func watchFile(ctx context.Context, w *fsnotify.Watcher, path string, debounce time.Duration, onChange func()) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher: %w", err)
		case <-fire:
			fire = nil
			onChange()
		}
	}
}
