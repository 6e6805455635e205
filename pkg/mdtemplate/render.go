package mdtemplate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// binder produces the names and value rows a with/for block injects into
// the context of its body. A with binder yields exactly one row.
type binder interface {
	bind(s *state, data Context) (names []string, rows [][]Value, err error)
}

// predicate gates the body of an if/elif block.
type predicate interface {
	test(s *state, data Context) (bool, error)
}

type withBinder struct {
	names []string
	pipes []*Pipeline
}

func (b *withBinder) bind(_ *state, data Context) ([]string, [][]Value, error) {
	row := make([]Value, len(b.pipes))
	for i, pipe := range b.pipes {
		v, err := pipe.Apply(data)
		if err != nil {
			return nil, nil, fmt.Errorf("binding %q: %w", b.names[i], err)
		}
		row[i] = v
	}
	return b.names, [][]Value{row}, nil
}

type forBinder struct {
	names []string
	expr  string
}

func (b *forBinder) bind(s *state, data Context) ([]string, [][]Value, error) {
	v, err := s.env.eval(s.ctx, b.expr, data)
	if err != nil {
		return nil, nil, err
	}
	items, err := Iterate(v)
	if err != nil {
		return nil, nil, &ExpressionError{Expr: b.expr, Err: err}
	}
	rows := make([][]Value, 0, len(items))
	for i, item := range items {
		if len(b.names) == 1 {
			rows = append(rows, []Value{item})
			continue
		}
		tuple, err := Iterate(item)
		if err != nil {
			return nil, nil, fmt.Errorf("unpacking item %d: %w", i, err)
		}
		if len(tuple) != len(b.names) {
			return nil, nil, fmt.Errorf("unpacking item %d: got %d values for %d names (%s)",
				i, len(tuple), len(b.names), strings.Join(b.names, ", "))
		}
		rows = append(rows, tuple)
	}
	return b.names, rows, nil
}

type exprPredicate struct {
	expr string
}

func (p exprPredicate) test(s *state, data Context) (bool, error) {
	v, err := s.env.eval(s.ctx, p.expr, data)
	if err != nil {
		return false, err
	}
	return v.Truth(), nil
}

// Render renders the template against data.
func (t *Template) Render(data Context) (string, error) {
	return t.RenderContext(context.Background(), data)
}

// RenderContext renders the template against data. Rendering stops with an
// error once ctx is done.
func (t *Template) RenderContext(ctx context.Context, data Context) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if data == nil {
		data = Context{}
	}
	var b strings.Builder
	s := &state{env: t.env, ctx: ctx}
	if err := s.render(&b, t.Root, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// RenderOr renders the template in fail-soft mode: any render error makes
// the whole call return fallback.
func (t *Template) RenderOr(data Context, fallback string) string {
	return t.RenderOrContext(context.Background(), data, fallback)
}

// RenderOrContext is RenderOr bounded by ctx. A cancelled render also
// yields the fallback; callers that care check ctx.Err.
func (t *Template) RenderOrContext(ctx context.Context, data Context, fallback string) string {
	out, err := t.RenderContext(ctx, data)
	if err != nil {
		t.env.logger().Debug("render failed, using fallback", "fallback", fallback, "error", err)
		return fallback
	}
	return out
}

// Execute renders the template and writes the result to w. Nothing is
// written when rendering fails.
func (t *Template) Execute(ctx context.Context, w io.Writer, data Context) error {
	out, err := t.RenderContext(ctx, data)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// state is the per-call bookkeeping of a render. The tree itself is never
// written to.
type state struct {
	env        *Environment
	ctx        context.Context
	depth      int
	iterations int
}

var errNotCompiled = errors.New("node has no compiled action")

// fail attaches the position of n to err unless an inner node already did.
func (s *state) fail(n *Node, err error) error {
	var re *RenderError
	if errors.As(err, &re) {
		return err
	}
	return &RenderError{Line: n.Line, Col: n.Col, Err: err}
}

// render appends the output of parent's children to b. last is the outcome
// of the conditional chain being walked; it is local to this child list.
func (s *state) render(b *strings.Builder, parent *Node, data Context) error {
	if max := s.env.maxDepth(); s.depth > max {
		return s.fail(parent, &LimitError{Limit: "nesting depth", Max: max})
	}
	s.depth++
	defer func() { s.depth-- }()

	last := false
	for _, n := range parent.Children {
		if err := s.ctx.Err(); err != nil {
			return s.fail(n, err)
		}
		switch n.Kind {
		case KindText:
			b.WriteString(n.Contents)
		case KindInterp:
			if n.pipe == nil {
				return s.fail(n, errNotCompiled)
			}
			v, err := n.pipe.Apply(data)
			if err != nil {
				return s.fail(n, err)
			}
			b.WriteString(v.String())
		case KindWith:
			names, rows, err := s.bind(n, data)
			if err != nil {
				return s.fail(n, err)
			}
			if err := s.render(b, n, data.Overlay(names, rows[0])); err != nil {
				return s.fail(n, err)
			}
		case KindFor:
			names, rows, err := s.bind(n, data)
			if err != nil {
				return s.fail(n, err)
			}
			for _, row := range rows {
				s.iterations++
				if max := s.env.MaxIterations; max > 0 && s.iterations > max {
					return s.fail(n, &LimitError{Limit: "loop iteration", Max: max})
				}
				if err := s.render(b, n, data.Overlay(names, row)); err != nil {
					return s.fail(n, err)
				}
			}
			last = len(rows) > 0
		case KindIf:
			ok, err := s.test(n, data)
			if err != nil {
				return s.fail(n, err)
			}
			last = ok
			if ok {
				if err := s.render(b, n, data); err != nil {
					return s.fail(n, err)
				}
			}
		case KindElif:
			if last {
				continue
			}
			ok, err := s.test(n, data)
			if err != nil {
				return s.fail(n, err)
			}
			if ok {
				last = true
				if err := s.render(b, n, data); err != nil {
					return s.fail(n, err)
				}
			}
		case KindElse:
			if !last {
				if err := s.render(b, n, data); err != nil {
					return s.fail(n, err)
				}
			}
		default:
			return s.fail(n, fmt.Errorf("unexpected %s node", n.Kind))
		}
	}
	return nil
}

func (s *state) bind(n *Node, data Context) ([]string, [][]Value, error) {
	if n.bind == nil {
		return nil, nil, errNotCompiled
	}
	names, rows, err := n.bind.bind(s, data)
	if err == nil && n.Kind == KindWith && len(rows) != 1 {
		err = fmt.Errorf("with binder produced %d rows", len(rows))
	}
	return names, rows, err
}

func (s *state) test(n *Node, data Context) (bool, error) {
	if n.cond == nil {
		return false, errNotCompiled
	}
	return n.cond.test(s, data)
}
