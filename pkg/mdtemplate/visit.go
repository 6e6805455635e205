package mdtemplate

import (
	"bytes"
	"fmt"
	"strings"
)

// Visitor is called for every node of a tree in depth-first order.
type Visitor interface {
	Visit(n *Node) error
}

// VisitorFunc adapts a function to Visitor.
type VisitorFunc func(n *Node) error

func (f VisitorFunc) Visit(n *Node) error { return f(n) }

// Walk calls v for n and then for each of its descendants, stopping at the
// first error.
func Walk(v Visitor, n *Node) error {
	if err := v.Visit(n); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := Walk(v, c); err != nil {
			return err
		}
	}
	return nil
}

// Pretty returns a line-oriented string representation of the tree.
func Pretty(n *Node) string {
	var buf bytes.Buffer
	ppNode(&buf, 0, n)
	return buf.String()
}

func ppNode(buf *bytes.Buffer, indent int, n *Node) {
	buf.WriteString(strings.Repeat("  ", indent))
	switch n.Kind {
	case KindRoot:
		buf.WriteString("Root\n")
	case KindText:
		fmt.Fprintf(buf, "Text(%q)\n", n.Contents)
	case KindInterp:
		if n.pipe != nil {
			stages := append([]string{n.pipe.Target}, n.pipe.Filters()...)
			fmt.Fprintf(buf, "Interp(%s)\n", strings.Join(stages, " | "))
		} else {
			fmt.Fprintf(buf, "Interp(%q)\n", strings.TrimSpace(n.Contents))
		}
	case KindElse:
		buf.WriteString("Else\n")
	default:
		fmt.Fprintf(buf, "%s(%q)\n", strings.ToUpper(n.Kind.String()[:1])+n.Kind.String()[1:], n.Contents)
	}
	for _, c := range n.Children {
		ppNode(buf, indent+1, c)
	}
}
