package mdtemplate

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"

	"go.starlark.net/syntax"
)

// FilterFunc transforms the value flowing through a pipeline. args holds the
// literal arguments written after the filter name.
type FilterFunc func(val Value, args []Value) (Value, error)

// Registry maps filter names to functions. It is populated at startup, then
// frozen; a frozen registry is read-only and safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	filters map[string]FilterFunc
	frozen  bool
}

// NewRegistry returns an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{filters: map[string]FilterFunc{}}
}

// Register adds fn under name, replacing any previous registration.
func (r *Registry) Register(name string, fn FilterFunc) error {
	if !isFilterName(name) {
		return fmt.Errorf("invalid filter name %q", name)
	}
	if fn == nil {
		return fmt.Errorf("filter %q: nil function", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("registering %q: %w", name, ErrRegistryFrozen)
	}
	r.filters[name] = fn
	return nil
}

// MustRegister is Register for static setup code; it panics on error.
func (r *Registry) MustRegister(name string, fn FilterFunc) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Freeze makes the registry read-only. It is idempotent.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Lookup returns the filter registered under name.
func (r *Registry) Lookup(name string) (FilterFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.filters[name]
	return fn, ok
}

// Names returns the registered filter names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.filters))
	for name := range r.filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compile compiles a pipeline of the form target|name[:arg,...]|...
func (r *Registry) Compile(src string) (*Pipeline, error) {
	return r.CompileDelim(src, "|")
}

// CompileDelim is Compile with a custom stage delimiter. Delimiters inside
// quoted strings and brackets do not split stages.
func (r *Registry) CompileDelim(src, delim string) (*Pipeline, error) {
	fail := func(format string, args ...any) error {
		return &FilterCompileError{Source: src, Err: fmt.Errorf(format, args...)}
	}
	if delim == "" {
		return nil, fail("%w: empty stage delimiter", ErrIllegalFilterSyntax)
	}
	parts := splitTopLevel(src, delim)
	target := strings.TrimSpace(parts[0])
	if !isTargetPath(target) {
		return nil, fail("%w: invalid target %q", ErrIllegalFilterSyntax, target)
	}
	p := &Pipeline{Target: target, source: strings.TrimSpace(src)}
	for _, clause := range parts[1:] {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			return nil, fail("%w: empty filter clause", ErrIllegalFilterSyntax)
		}
		name, argSrc, hasArgs := strings.Cut(clause, ":")
		name = strings.TrimSpace(name)
		if !isFilterName(name) {
			return nil, fail("%w: invalid filter name %q", ErrIllegalFilterSyntax, name)
		}
		var args []Value
		if hasArgs {
			var err error
			if args, err = parseLiteralArgs(argSrc); err != nil {
				return nil, fail("%w: filter %q: %v", ErrIllegalFilterSyntax, name, err)
			}
		}
		fn, ok := r.Lookup(name)
		if !ok {
			return nil, fail("%w %q", ErrUnknownFilter, name)
		}
		p.stages = append(p.stages, stage{name: name, fn: fn, args: args})
	}
	return p, nil
}

// Pipeline is a compiled filter chain: a context lookup followed by filters
// applied left to right. It holds no per-render state.
type Pipeline struct {
	Target string
	source string
	stages []stage
}

type stage struct {
	name string
	fn   FilterFunc
	args []Value
}

// Apply looks up the target in data and folds the filters over it.
func (p *Pipeline) Apply(data Context) (Value, error) {
	v, err := data.Lookup(p.Target)
	if err != nil {
		return nil, err
	}
	for _, s := range p.stages {
		if v, err = s.fn(v, s.args); err != nil {
			return nil, fmt.Errorf("filter %q: %w", s.name, err)
		}
		if v == nil {
			v = NoneValue{}
		}
	}
	return v, nil
}

// Filters returns the names of the pipeline's filters in application order.
func (p *Pipeline) Filters() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.name
	}
	return names
}

// String returns the pipeline source.
func (p *Pipeline) String() string { return p.source }

func isFilterName(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c == '.' && i > 0, c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// isTargetPath accepts context keys and dotted paths. Keys coming from data
// files may contain dashes and similar punctuation, so only characters that
// would make the clause ambiguous are rejected.
func isTargetPath(s string) bool {
	if s == "" || strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") {
		return false
	}
	return !strings.ContainsAny(s, " \t\r\n\"'()[]{}:,|")
}

// splitTopLevel splits s on delim, ignoring delimiters inside quotes and
// brackets.
func splitTopLevel(s, delim string) []string {
	var parts []string
	depth := 0
	inStr := byte(0)
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr != 0 {
			switch c {
			case '\\':
				i++
			case inStr:
				inStr = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			inStr = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 && strings.HasPrefix(s[i:], delim) {
				parts = append(parts, s[start:i])
				i += len(delim) - 1
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// fieldsTopLevel splits s around runs of whitespace that are outside quotes
// and brackets. Empty fields are dropped.
func fieldsTopLevel(s string) []string {
	var fields []string
	depth := 0
	inStr := byte(0)
	start := -1
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr != 0 {
			switch c {
			case '\\':
				i++
			case inStr:
				inStr = 0
			}
			continue
		}
		switch c {
		case ' ', '\t', '\r', '\n':
			if depth == 0 {
				if start >= 0 {
					fields = append(fields, s[start:i])
				}
				start = -1
				continue
			}
		case '\'', '"':
			inStr = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		fields = append(fields, s[start:])
	}
	return fields
}

// parseLiteralArgs parses a comma separated argument list. Only literals are
// accepted: numbers, strings, booleans, None, and lists/tuples of those.
func parseLiteralArgs(src string) ([]Value, error) {
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}
	expr, err := syntax.ParseExpr("<filter>", "["+src+"]", 0)
	if err != nil {
		return nil, err
	}
	list, ok := expr.(*syntax.ListExpr)
	if !ok {
		return nil, fmt.Errorf("malformed argument list %q", src)
	}
	return literalList(list.List)
}

func literalList(exprs []syntax.Expr) (ListValue, error) {
	out := make(ListValue, 0, len(exprs))
	for _, e := range exprs {
		v, err := literalValue(e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func literalValue(e syntax.Expr) (Value, error) {
	switch t := e.(type) {
	case *syntax.Literal:
		switch v := t.Value.(type) {
		case string:
			return StringValue(v), nil
		case int64:
			return IntValue(v), nil
		case *big.Int:
			if !v.IsInt64() {
				return nil, fmt.Errorf("integer %s out of range", t.Raw)
			}
			return IntValue(v.Int64()), nil
		case float64:
			return FloatValue(v), nil
		}
	case *syntax.Ident:
		switch t.Name {
		case "True", "true":
			return BoolValue(true), nil
		case "False", "false":
			return BoolValue(false), nil
		case "None", "none":
			return NoneValue{}, nil
		}
		return nil, fmt.Errorf("variable reference %q is not allowed in filter arguments", t.Name)
	case *syntax.UnaryExpr:
		if t.Op != syntax.MINUS && t.Op != syntax.PLUS {
			break
		}
		v, err := literalValue(t.X)
		if err != nil {
			return nil, err
		}
		neg := t.Op == syntax.MINUS
		switch n := v.(type) {
		case IntValue:
			if neg {
				n = -n
			}
			return n, nil
		case FloatValue:
			if neg {
				n = -n
			}
			return n, nil
		}
	case *syntax.ParenExpr:
		return literalValue(t.X)
	case *syntax.ListExpr:
		return literalList(t.List)
	case *syntax.TupleExpr:
		return literalList(t.List)
	}
	return nil, fmt.Errorf("only literal arguments are allowed")
}
