// Package app wires config, logging, sandbox, interpreter registry, run
// history and runner together for the binaries.
package app

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/michaelbrown/snipforge/internal/config"
	"github.com/michaelbrown/snipforge/internal/interp"
	"github.com/michaelbrown/snipforge/internal/interp/backends"
	"github.com/michaelbrown/snipforge/internal/logging"
	"github.com/michaelbrown/snipforge/internal/runner"
	"github.com/michaelbrown/snipforge/internal/sandbox"
	"github.com/michaelbrown/snipforge/internal/storage"
	"github.com/michaelbrown/snipforge/internal/storage/sqlite"
)

// App bundles what every entry point needs.
type App struct {
	Config *config.Config
	Log    *logrus.Logger
	Store  storage.Store // nil when history is disabled
	Runner *runner.Runner
}

// New builds an App from cfg. isolate gives every run its own work dir and
// must be set when runs may execute concurrently.
func New(cfg *config.Config, isolate bool) (*App, error) {
	log, err := logging.New(cfg.LogLevel, nil)
	if err != nil {
		return nil, err
	}

	reg, err := BuildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	maxLevel, err := cfg.MaxLevel()
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Log: log}
	if cfg.Run.History {
		store, err := sqlite.Open(cfg.Storage.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening storage: %w", err)
		}
		a.Store = store
	}

	a.Runner = runner.New(reg, runner.Options{
		MaxLevel: maxLevel,
		Selected: cfg.Run.SelectedInterpreters,
		CLIArgs:  cfg.Run.CLIArgs,
		WorkDir:  cfg.Run.WorkDir,
		Timeout:  cfg.Run.Timeout,
		Isolate:  isolate,
		Store:    a.Store,
		Log:      log,
	})

	log.WithFields(logrus.Fields{
		"driver":       cfg.Sandbox.Driver,
		"interpreters": reg.Count(),
		"history":      a.Store != nil,
	}).Debug("initialized")
	return a, nil
}

// BuildRegistry registers the built-in backends and any from
// interpreters_file, all running through the configured sandbox driver.
func BuildRegistry(cfg *config.Config) (*interp.Registry, error) {
	sb, err := sandbox.New(cfg.Sandbox.Driver, cfg.Policy())
	if err != nil {
		return nil, err
	}

	var defs []backends.Definition
	if cfg.InterpretersFile != "" {
		defs, err = backends.LoadDefinitions(cfg.InterpretersFile)
		if err != nil {
			return nil, err
		}
	}
	reg := interp.NewRegistry()
	if err := backends.Register(reg, sb, defs); err != nil {
		return nil, err
	}
	return reg, nil
}

// Close releases the history store.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
