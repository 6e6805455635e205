package mdtemplate

import (
	"errors"
	"fmt"
	"strings"
)

// Parse compiles template source into a Template. Structural problems
// (mismatched or unclosed blocks, unknown directives, malformed clauses) are
// reported as *ParseError and no template is returned. Interpolations whose
// pipeline does not compile are kept as literal text and logged.
func (e *Environment) Parse(src string) (*Template, error) {
	p := newParser(e, src)
	for _, f := range tokenize(src) {
		if err := p.fragment(f); err != nil {
			return nil, err
		}
	}
	if n := len(p.ends); n > 0 {
		open := p.current()
		return nil, &ParseError{
			Line: open.Line, Col: open.Col,
			Msg: fmt.Sprintf("unclosed {%% %s %%} block, expected {%% %s %%}", open.Kind, p.ends[n-1]),
		}
	}
	return &Template{Root: p.root, env: e}, nil
}

// parser builds the tree from the fragment stream. nodes is the chain of open
// blocks from the root down to the insertion point; ends holds the
// terminator keyword each open block waits for, so len(nodes) == len(ends)+1.
type parser struct {
	env      *Environment
	lines    lineIndex
	root     *Node
	nodes    []*Node
	ends     []string
	trimNext bool
}

func newParser(e *Environment, src string) *parser {
	root := &Node{Kind: KindRoot, Line: 1, Col: 1}
	return &parser{
		env:   e,
		lines: newLineIndex(src),
		root:  root,
		nodes: []*Node{root},
	}
}

func (p *parser) current() *Node { return p.nodes[len(p.nodes)-1] }

func (p *parser) appendChild(n *Node) {
	cur := p.current()
	cur.Children = append(cur.Children, n)
}

func (p *parser) fragment(f fragment) error {
	trim := p.trimNext
	p.trimNext = false
	switch f.kind {
	case fragText:
		text := f.val
		if trim {
			text = trimOneNewline(text)
		}
		if text == "" {
			return nil
		}
		line, col := p.lines.position(f.pos)
		p.appendChild(&Node{Kind: KindText, Contents: text, Line: line, Col: col})
	case fragInterp:
		line, col := p.lines.position(f.pos - len(interpOpen))
		n := &Node{Kind: KindInterp, Contents: f.val, Line: line, Col: col}
		p.env.compileInterp(n)
		p.appendChild(n)
	case fragDirective:
		return p.directive(f)
	}
	return nil
}

func (p *parser) directive(f fragment) error {
	line, col := p.lines.position(f.pos - len(directiveOpen))
	fail := func(err error, format string, args ...any) error {
		return &ParseError{Line: line, Col: col, Msg: fmt.Sprintf(format, args...), Err: err}
	}

	keyword, args := splitKeyword(f.val)
	if keyword == "" {
		return fail(nil, "empty directive")
	}
	if n := len(p.ends); n > 0 && keyword == p.ends[n-1] {
		p.ends = p.ends[:n-1]
		p.nodes = p.nodes[:len(p.nodes)-1]
		p.trimNext = p.env.TrimAfterClose
		return nil
	}

	kind, ok := kindForKeyword[keyword]
	if !ok {
		if isTerminator(keyword) {
			if len(p.ends) == 0 {
				return fail(nil, "unexpected {%% %s %%}: no block is open", keyword)
			}
			return fail(nil, "unexpected {%% %s %%}, expected {%% %s %%}", keyword, p.ends[len(p.ends)-1])
		}
		return fail(nil, "unknown block keyword %q", keyword)
	}

	n := &Node{Kind: kind, Contents: args, Line: line, Col: col}
	if err := p.env.compileDirective(n); err != nil {
		return fail(err, "invalid {%% %s %%}", keyword)
	}

	switch kind {
	case KindElif, KindElse:
		prev := p.current()
		if !prev.isChainLink() && !(kind == KindElse && prev.Kind == KindFor) {
			if kind == KindElif {
				return fail(nil, "{%% elif %%} must follow an if or elif block")
			}
			return fail(nil, "{%% else %%} must follow an if, elif or for block")
		}
		// the previous link is complete; the new one becomes its sibling
		p.nodes = p.nodes[:len(p.nodes)-1]
		p.appendChild(n)
		p.nodes = append(p.nodes, n)
	default:
		if max := p.env.maxDepth(); len(p.ends) >= max {
			return fail(&LimitError{Limit: "nesting depth", Max: max}, "block too deeply nested")
		}
		p.appendChild(n)
		p.nodes = append(p.nodes, n)
		p.ends = append(p.ends, "end"+keyword)
	}
	return nil
}

// compileInterp attaches the pipeline of an interpolation node. On failure
// the node degrades to text reproducing the original markup.
func (e *Environment) compileInterp(n *Node) {
	pipe, err := e.Filters.Compile(n.Contents)
	if err == nil {
		n.pipe = pipe
		return
	}
	e.logger().Warn("invalid interpolation, emitting it as literal text",
		"pipeline", strings.TrimSpace(n.Contents), "line", n.Line, "col", n.Col, "error", err)
	n.Kind = KindText
	n.Contents = interpOpen + n.Contents + interpClose
}

// compileDirective attaches the binder or predicate of a block node.
func (e *Environment) compileDirective(n *Node) error {
	switch n.Kind {
	case KindWith:
		b, err := e.compileWith(n.Contents)
		if err != nil {
			return err
		}
		n.bind = b
	case KindFor:
		b, err := compileFor(n.Contents)
		if err != nil {
			return err
		}
		n.bind = b
	case KindIf, KindElif:
		if n.Contents == "" {
			return errors.New("missing condition")
		}
		n.cond = exprPredicate{expr: n.Contents}
	case KindElse:
		if n.Contents != "" {
			return fmt.Errorf("else takes no arguments, got %q", n.Contents)
		}
	}
	return nil
}

// compileWith compiles "v=pipeline [v2=pipeline ...]".
func (e *Environment) compileWith(args string) (*withBinder, error) {
	b := &withBinder{}
	for _, field := range fieldsTopLevel(args) {
		name, src, ok := strings.Cut(field, "=")
		if !ok {
			return nil, fmt.Errorf("expected name=pipeline, got %q", field)
		}
		if !isIdentifier(name) {
			return nil, fmt.Errorf("invalid variable name %q", name)
		}
		pipe, err := e.Filters.Compile(src)
		if err != nil {
			return nil, err
		}
		b.names = append(b.names, name)
		b.pipes = append(b.pipes, pipe)
	}
	return b, nil
}

// compileFor compiles "v1[,v2 ...] in <expr>". Names may be separated by
// commas, spaces or both.
func compileFor(args string) (*forBinder, error) {
	rest := args
	var names []string
	for {
		rest = strings.TrimLeft(rest, " \t\r\n")
		if rest == "" {
			return nil, fmt.Errorf("expected 'names in expression', got %q", args)
		}
		end := strings.IndexAny(rest, " \t\r\n")
		if end < 0 {
			end = len(rest)
		}
		word := rest[:end]
		rest = rest[end:]
		if word == "in" {
			break
		}
		for _, name := range strings.Split(word, ",") {
			if name == "" {
				continue
			}
			if !isIdentifier(name) {
				return nil, fmt.Errorf("invalid loop variable %q", name)
			}
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, errors.New("missing loop variable")
	}
	expr := strings.TrimSpace(rest)
	if expr == "" {
		return nil, errors.New("missing iterable expression")
	}
	return &forBinder{names: names, expr: expr}, nil
}

// splitKeyword splits directive contents into the keyword and the trimmed
// remainder.
func splitKeyword(s string) (keyword, args string) {
	s = strings.TrimSpace(s)
	end := strings.IndexAny(s, " \t\r\n")
	if end < 0 {
		return s, ""
	}
	return s[:end], strings.TrimSpace(s[end:])
}

func isTerminator(keyword string) bool {
	if !strings.HasPrefix(keyword, "end") {
		return false
	}
	switch kindForKeyword[keyword[3:]] {
	case KindWith, KindFor, KindIf:
		return true
	}
	return false
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func trimOneNewline(s string) string {
	if strings.HasPrefix(s, "\r\n") {
		return s[2:]
	}
	return strings.TrimPrefix(s, "\n")
}
