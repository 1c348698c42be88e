package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/snipforge/internal/app"
	"github.com/michaelbrown/snipforge/internal/config"
)

var (
	configFlag   string
	logLevelFlag string
	driverFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "snipforge",
	Short: "Snipforge - run code snippets through language backends",
	Long: `Snipforge runs a line or a block of code with the interpreter for its
language and prints what the program wrote.

It is meant to sit behind an editor: the CLI, the HTTP server and the MCP tool
all share the same interpreter registry and run history.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default ./snipforge.yaml or ~/.snipforge/snipforge.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (overrides config)")
	rootCmd.PersistentFlags().StringVar(&driverFlag, "driver", "", "Sandbox driver: local or docker (overrides config)")
}

// loadConfig reads the config and applies the persistent flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	if driverFlag != "" {
		cfg.Sandbox.Driver = driverFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApp(isolate bool) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, isolate)
}

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
