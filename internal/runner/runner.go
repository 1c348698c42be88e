// Package runner selects an interpreter for a request, drives it through the
// pipeline and records the outcome. It is the single entry point used by the
// CLI, the HTTP server and the MCP tool.
package runner

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/michaelbrown/snipforge/internal/interp"
	"github.com/michaelbrown/snipforge/internal/logging"
	"github.com/michaelbrown/snipforge/internal/storage"
)

// Options configures a Runner. The zero value runs with no level cap, no
// timeout and no history.
type Options struct {
	MaxLevel interp.SupportLevel // Unsupported means no cap
	Selected []string            // preferred interpreters when a tag is shared
	CLIArgs  []string            // used when a request carries no args
	WorkDir  string              // used when a request carries no work dir
	Timeout  time.Duration

	// Isolate gives every run its own work dir, removed afterwards. Set it
	// when runs may execute concurrently.
	Isolate bool

	Store storage.Store
	Log   *logrus.Logger
}

// Request is one snippet to execute.
type Request struct {
	Data        interp.Data
	Interpreter string              // explicit backend name; overrides Data.Filetype
	Level       interp.SupportLevel // optional further cap for this run
}

// Result is a successful run.
type Result struct {
	RunID       string              `json:"run_id"`
	Interpreter string              `json:"interpreter"`
	Language    string              `json:"language"`
	Level       interp.SupportLevel `json:"level"`
	Output      string              `json:"output"`
	Duration    time.Duration       `json:"-"`
	DurationMS  int64               `json:"duration_ms"`
	ReplLike    bool                `json:"repl_like"`
}

// Runner is safe for concurrent use when Options.Isolate is set.
type Runner struct {
	reg  *interp.Registry
	opts Options
	log  *logrus.Logger
}

// New creates a runner over reg.
func New(reg *interp.Registry, opts Options) *Runner {
	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}
	return &Runner{reg: reg, opts: opts, log: log}
}

// Registry returns the registry runs are dispatched from.
func (r *Runner) Registry() *interp.Registry { return r.reg }

// Resolve returns the backend that would handle req.
func (r *Runner) Resolve(req Request) (interp.Descriptor, error) {
	if req.Interpreter != "" {
		return r.reg.Get(req.Interpreter)
	}
	return r.reg.Resolve(req.Data.Filetype, r.opts.Selected)
}

// Level returns the effective level for d: its maximum, lowered by the
// configured cap and the request's own level.
func (r *Runner) Level(d interp.Descriptor, requested interp.SupportLevel) interp.SupportLevel {
	level := d.MaxLevel
	if r.opts.MaxLevel > interp.Unsupported {
		level = interp.MinLevel(level, r.opts.MaxLevel)
	}
	if requested > interp.Unsupported {
		level = interp.MinLevel(level, requested)
	}
	return level
}

// Run executes req and returns the interpreter's output. Failures come back
// as the typed errors of package interp.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	desc, err := r.Resolve(req)
	if err != nil {
		r.log.WithError(err).WithField("language", req.Data.Filetype).Warn("no interpreter")
		return nil, err
	}

	id := uuid.NewString()
	level := r.Level(desc, req.Level)

	data := req.Data.Clone()
	if data.WorkDir == "" {
		data.WorkDir = r.opts.WorkDir
	}
	if data.CLIArgs == nil && len(r.opts.CLIArgs) > 0 {
		data.CLIArgs = append([]string(nil), r.opts.CLIArgs...)
	}
	if r.opts.Isolate {
		data.WorkDir = filepath.Join(data.WorkDir, "runs", id)
		defer os.RemoveAll(data.WorkDir)
	}

	language := data.Filetype
	if language == "" {
		language = desc.DisplayName()
	}

	log := r.log.WithFields(logrus.Fields{
		"run_id":      id,
		"interpreter": desc.Name,
		"language":    language,
		"level":       level.String(),
	})

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := r.execute(ctx, desc, data, level, log)
	elapsed := time.Since(start)

	r.record(desc, data, language, level, id, out, err, elapsed, log)

	log = log.WithField("duration", elapsed.Round(time.Millisecond))
	if err != nil {
		log.WithError(err).WithField("kind", interp.Kind(err)).Info("run failed")
		return nil, err
	}
	log.Info("run finished")

	return &Result{
		RunID:       id,
		Interpreter: desc.Name,
		Language:    language,
		Level:       level,
		Output:      out,
		Duration:    elapsed,
		DurationMS:  elapsed.Milliseconds(),
		ReplLike:    desc.ReplLike,
	}, nil
}

func (r *Runner) execute(ctx context.Context, desc interp.Descriptor, data interp.Data, level interp.SupportLevel, log *logrus.Entry) (string, error) {
	in, err := desc.New(data, level)
	if err != nil {
		return "", err
	}

	p := interp.NewPipeline(in).OnStage(func(stage string, err error) {
		entry := log.WithField("stage", stage)
		if err != nil {
			entry = entry.WithError(err)
		}
		entry.Debug("stage done")
	})
	return p.Run(ctx)
}

// record stores the run in history. Failures are logged and otherwise
// ignored so they never change what the caller sees.
func (r *Runner) record(desc interp.Descriptor, data interp.Data, language string, level interp.SupportLevel,
	id, out string, runErr error, elapsed time.Duration, log *logrus.Entry) {
	if r.opts.Store == nil {
		return
	}

	run := &storage.Run{
		ID:          id,
		Interpreter: desc.Name,
		Language:    language,
		Level:       level.String(),
		Input:       interp.SelectCode(data, level),
		Args:        data.CLIArgs,
		Status:      storage.StatusSucceeded,
		Output:      out,
		DurationMS:  elapsed.Milliseconds(),
	}
	if runErr != nil {
		run.Status = storage.StatusFailed
		run.ErrorKind = interp.Kind(runErr)
		run.ErrorText = runErr.Error()
	}

	// The caller's context may already be cancelled or past its deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.opts.Store.CreateRun(ctx, run); err != nil {
		log.WithError(err).Warn("recording run history")
	}
}
