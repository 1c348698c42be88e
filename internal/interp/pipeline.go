package interp

import (
	"context"
	"fmt"
)

// State is a position in the pipeline.
type State int

const (
	StateConstructed State = iota
	StateCodeFetched
	StateAugmented
	StateBuilt
	StateExecuted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateCodeFetched:
		return "code_fetched"
	case StateAugmented:
		return "augmented"
	case StateBuilt:
		return "built"
	case StateExecuted:
		return "executed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// StageHook is called after every stage with the stage name and its error.
type StageHook func(stage string, err error)

// Pipeline drives an Interpreter through its stages and refuses calls made
// out of order. It is not safe for concurrent use; one pipeline serves one
// run.
type Pipeline struct {
	in     Interpreter
	state  State
	hook   StageHook
	output string
	err    error
}

// NewPipeline wraps in, which must be freshly constructed.
func NewPipeline(in Interpreter) *Pipeline {
	return &Pipeline{in: in, state: StateConstructed}
}

// OnStage registers a hook invoked after each stage.
func (p *Pipeline) OnStage(hook StageHook) *Pipeline {
	p.hook = hook
	return p
}

// State returns the current pipeline state.
func (p *Pipeline) State() State { return p.state }

// Interpreter returns the wrapped backend.
func (p *Pipeline) Interpreter() Interpreter { return p.in }

// Err returns the error that moved the pipeline to StateFailed.
func (p *Pipeline) Err() error { return p.err }

func (p *Pipeline) FetchCode() error {
	return p.step("fetch_code", StateConstructed, StateCodeFetched, p.in.FetchCode)
}

func (p *Pipeline) AddBoilerplate() error {
	return p.step("add_boilerplate", StateCodeFetched, StateAugmented, p.in.AddBoilerplate)
}

func (p *Pipeline) Build() error {
	return p.step("build", StateAugmented, StateBuilt, p.in.Build)
}

func (p *Pipeline) Execute(ctx context.Context) (string, error) {
	err := p.step("execute", StateBuilt, StateExecuted, func() error {
		out, err := p.in.Execute(ctx)
		p.output = out
		return err
	})
	if err != nil {
		return "", err
	}
	return p.output, nil
}

// Run executes every remaining stage in order and returns the tool's output.
func (p *Pipeline) Run(ctx context.Context) (string, error) {
	if err := p.FetchCode(); err != nil {
		return "", err
	}
	if err := p.AddBoilerplate(); err != nil {
		return "", err
	}
	if err := p.Build(); err != nil {
		return "", err
	}
	return p.Execute(ctx)
}

func (p *Pipeline) step(name string, from, to State, fn func() error) error {
	if p.state == StateFailed {
		return fmt.Errorf("%s: %w", name, ErrPipelineAborted)
	}
	if p.state != from {
		return fmt.Errorf("%s in state %s: %w", name, p.state, ErrStageOrder)
	}
	err := fn()
	if p.hook != nil {
		p.hook(name, err)
	}
	if err != nil {
		p.state = StateFailed
		p.err = err
		return err
	}
	p.state = to
	return nil
}

// Run is shorthand for NewPipeline(in).Run(ctx).
func Run(ctx context.Context, in Interpreter) (string, error) {
	return NewPipeline(in).Run(ctx)
}
