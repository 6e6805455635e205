// Package starlark evaluates the expressions of template directives
// ({% for %}, {% if %}, {% elif %}) with the Starlark language.
package starlark

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neurodesk/mdtemplate/pkg/mdtemplate"
	"go.starlark.net/starlark"
)

const (
	DefaultMaxSteps = 1_000_000
	DefaultTimeout  = 2 * time.Second
)

// Options bound the cost of a single expression evaluation.
type Options struct {
	// MaxSteps caps the Starlark execution steps per expression. Zero
	// selects DefaultMaxSteps.
	MaxSteps uint64
	// Timeout caps the wall-clock time per expression. Zero selects
	// DefaultTimeout; a negative value disables the timeout.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Evaluator implements mdtemplate.ExpressionEvaluator. Every evaluation runs
// on its own thread, so one Evaluator can serve concurrent renders.
type Evaluator struct {
	builtins starlark.StringDict
	opts     Options
}

var _ mdtemplate.ExpressionEvaluator = (*Evaluator)(nil)

// NewEvaluator creates a new Starlark evaluator
func NewEvaluator(opts Options) *Evaluator {
	if opts.MaxSteps == 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Evaluator{builtins: CreateBuiltins(), opts: opts}
}

// Eval evaluates a Starlark expression with the context bound as globals and
// returns the result as a template Value.
func (e *Evaluator) Eval(ctx context.Context, expr string, data mdtemplate.Context) (mdtemplate.Value, error) {
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	thread := &starlark.Thread{
		Name: "mdtemplate",
		Print: func(_ *starlark.Thread, msg string) {
			e.opts.Logger.Info("template print", "msg", msg)
		},
	}
	thread.SetMaxExecutionSteps(e.opts.MaxSteps)
	thread.SetLocal(localData, data)
	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(context.Cause(ctx).Error())
	})
	defer stop()

	// Combine builtins and context for evaluation; context names win
	predeclared := make(starlark.StringDict, len(e.builtins)+len(data))
	for k, v := range e.builtins {
		predeclared[k] = v
	}
	for k, v := range WrapContext(data) {
		predeclared[k] = v
	}

	val, err := starlark.Eval(thread, "<expr>", expr, predeclared)
	if err != nil {
		return nil, fmt.Errorf("starlark evaluation error: %w", err)
	}
	return ConvertFromStarlark(val), nil
}
