package mdtemplate

import (
	"context"
	"log/slog"
)

// ExpressionEvaluator evaluates the expressions of for/if/elif directives
// against a context. Implementations must be safe for concurrent use.
type ExpressionEvaluator interface {
	Eval(ctx context.Context, expr string, data Context) (Value, error)
}

// ExpressionFunc adapts a function to ExpressionEvaluator.
type ExpressionFunc func(ctx context.Context, expr string, data Context) (Value, error)

func (f ExpressionFunc) Eval(ctx context.Context, expr string, data Context) (Value, error) {
	return f(ctx, expr, data)
}

const (
	DefaultMaxDepth      = 64
	DefaultMaxIterations = 100_000
)

// Environment holds everything needed to compile and render templates: the
// filter registry, the expression evaluator and resource limits. Configure
// it before the first Parse and do not change it afterwards.
type Environment struct {
	Filters     *Registry
	Expressions ExpressionEvaluator

	// MaxDepth bounds block nesting, both when parsing and when rendering.
	MaxDepth int
	// MaxIterations bounds the total number of loop iterations of a single
	// render call. Zero means unlimited.
	MaxIterations int
	// TrimAfterClose drops exactly one newline ("\n" or "\r\n") directly
	// following a block-closing directive such as {% endfor %}.
	TrimAfterClose bool

	Logger *slog.Logger
}

// NewEnvironment returns an environment using filters and exprs with the
// default limits. The registry is frozen: pipelines compiled from here on
// see a fixed set of filters.
func NewEnvironment(filters *Registry, exprs ExpressionEvaluator) *Environment {
	if filters == nil {
		filters = NewRegistry()
	}
	filters.Freeze()
	return &Environment{
		Filters:        filters,
		Expressions:    exprs,
		MaxDepth:       DefaultMaxDepth,
		MaxIterations:  DefaultMaxIterations,
		TrimAfterClose: true,
	}
}

func (e *Environment) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Environment) maxDepth() int {
	if e.MaxDepth > 0 {
		return e.MaxDepth
	}
	return DefaultMaxDepth
}

func (e *Environment) eval(ctx context.Context, expr string, data Context) (Value, error) {
	if e.Expressions == nil {
		return nil, &ExpressionError{Expr: expr, Err: ErrNoEvaluator}
	}
	v, err := e.Expressions.Eval(ctx, expr, data)
	if err != nil {
		return nil, &ExpressionError{Expr: expr, Err: err}
	}
	if v == nil {
		v = NoneValue{}
	}
	return v, nil
}
