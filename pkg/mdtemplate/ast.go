// Package mdtemplate implements a small text templating language aimed at
// markdown output. Templates mix literal text with interpolations
// ({{ name|filter:arg }}) and blocks ({% with %}, {% for %}, {% if %},
// {% elif %}, {% else %}). A template is parsed once into a tree and can then
// be rendered any number of times, concurrently, against different contexts.
package mdtemplate

// Kind tags the variant of a Node.
type Kind int

const (
	KindRoot   Kind = iota
	KindText        // literal passthrough
	KindInterp      // {{ target|filters }}
	KindWith        // {% with v=pipeline ... %}
	KindFor         // {% for v[,v2] in expr %}
	KindIf          // {% if expr %}
	KindElif        // {% elif expr %}
	KindElse        // {% else %}
)

var kindNames = [...]string{
	KindRoot:   "root",
	KindText:   "text",
	KindInterp: "interp",
	KindWith:   "with",
	KindFor:    "for",
	KindIf:     "if",
	KindElif:   "elif",
	KindElse:   "else",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// kindForKeyword maps an opening directive keyword to its node kind.
var kindForKeyword = map[string]Kind{
	"with": KindWith,
	"for":  KindFor,
	"if":   KindIf,
	"elif": KindElif,
	"else": KindElse,
}

// Node is one element of a compiled template tree. Children are owned by
// their parent; there are no parent pointers.
//
// Contents depends on the kind: the literal text for KindText, the pipeline
// source for KindInterp, and the directive arguments (everything after the
// keyword) for the block kinds.
type Node struct {
	Kind     Kind
	Contents string
	Line     int
	Col      int
	Children []*Node

	// compiled action; exactly one is set depending on Kind
	pipe *Pipeline
	bind binder
	cond predicate
}

// isChainLink reports whether an elif may follow n.
func (n *Node) isChainLink() bool {
	return n.Kind == KindIf || n.Kind == KindElif
}

// Template is a parsed template bound to the environment that compiled it.
// It is never modified after parsing and may be rendered concurrently.
type Template struct {
	Root *Node
	env  *Environment
}

// Environment returns the environment the template was compiled with.
func (t *Template) Environment() *Environment { return t.env }
