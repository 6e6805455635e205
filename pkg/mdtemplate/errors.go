package mdtemplate

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFilter is reported when a pipeline names a filter that is
	// not in the registry.
	ErrUnknownFilter = errors.New("unknown filter")
	// ErrIllegalFilterSyntax is reported for malformed pipeline clauses.
	ErrIllegalFilterSyntax = errors.New("illegal filter syntax")
	// ErrMissingKey is reported when a context lookup finds nothing.
	ErrMissingKey = errors.New("missing context key")
	// ErrRegistryFrozen is returned by Register once the registry is frozen.
	ErrRegistryFrozen = errors.New("filter registry is frozen")
	// ErrNoEvaluator is reported when a template needs expressions but the
	// environment has no ExpressionEvaluator.
	ErrNoEvaluator = errors.New("no expression evaluator configured")
)

// ParseError is a structural template error: mismatched, unexpected or
// unclosed block terminators, unknown directive keywords and malformed
// directive clauses. A ParseError aborts the whole parse.
type ParseError struct {
	Line, Col int
	Msg       string
	Err       error
}

func (e *ParseError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Col, msg)
	}
	return "parse error: " + msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// FilterCompileError reports a pipeline that could not be compiled. Inside
// interpolations it never escapes the parser: the node degrades to text.
type FilterCompileError struct {
	Source string
	Err    error
}

func (e *FilterCompileError) Error() string {
	return fmt.Sprintf("compiling filter pipeline %q: %v", e.Source, e.Err)
}

func (e *FilterCompileError) Unwrap() error { return e.Err }

// ExpressionError wraps a failure of the expression evaluator while
// evaluating a for/if/elif expression.
type ExpressionError struct {
	Expr string
	Err  error
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("evaluating %q: %v", e.Expr, e.Err)
}

func (e *ExpressionError) Unwrap() error { return e.Err }

// RenderError is any failure while rendering a node: missing keys, filter
// runtime errors, expression errors and exceeded limits.
type RenderError struct {
	Line, Col int
	Err       error
}

func (e *RenderError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("render error at %d:%d: %v", e.Line, e.Col, e.Err)
	}
	return fmt.Sprintf("render error: %v", e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// LimitError reports an exceeded resource limit.
type LimitError struct {
	Limit string
	Max   int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s limit of %d exceeded", e.Limit, e.Max)
}
