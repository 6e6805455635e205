package mdtemplate

import "sort"

// The lexer scans template source in a single pass and yields a flat stream
// of fragments: literal text, interpolations {{ }} and directives {% %}.
// Regions never nest: while one kind is open the other kind's delimiters are
// ordinary characters.

type fragmentKind int

const (
	fragText      fragmentKind = iota
	fragInterp                 // contents of {{ ... }}
	fragDirective              // contents of {% ... %}
)

func (k fragmentKind) String() string {
	switch k {
	case fragText:
		return "text"
	case fragInterp:
		return "interp"
	case fragDirective:
		return "directive"
	}
	return "unknown"
}

type fragment struct {
	kind fragmentKind
	val  string
	pos  int // byte offset of val in source
}

const (
	interpOpen     = "{{"
	interpClose    = "}}"
	directiveOpen  = "{%"
	directiveClose = "%}"
)

// tokenize splits src into fragments. Zero-length fragments are legal and
// left for the parser to drop. A region still open at end of input is
// emitted as text including its opening delimiter, so no input is lost.
func tokenize(src string) []fragment {
	var out []fragment
	open := fragText
	start := 0
	for i := 1; i < len(src); i++ {
		if i-start < 1 {
			// the two-character window must lie inside the current buffer
			continue
		}
		pair := src[i-1 : i+1]
		next := open
		closing := false
		switch {
		case pair == interpOpen && open == fragText:
			next = fragInterp
		case pair == interpClose && open == fragInterp:
			closing = true
		case pair == directiveOpen && open == fragText:
			next = fragDirective
		case pair == directiveClose && open == fragDirective:
			closing = true
		}
		switch {
		case closing:
			out = append(out, fragment{kind: open, val: src[start : i-1], pos: start})
			open = fragText
			start = i + 1
		case next != open:
			out = append(out, fragment{kind: fragText, val: src[start : i-1], pos: start})
			open = next
			start = i + 1
		}
	}
	switch open {
	case fragInterp:
		out = append(out, fragment{kind: fragText, val: interpOpen + src[start:], pos: start - len(interpOpen)})
	case fragDirective:
		out = append(out, fragment{kind: fragText, val: directiveOpen + src[start:], pos: start - len(directiveOpen)})
	default:
		out = append(out, fragment{kind: fragText, val: src[start:], pos: start})
	}
	return out
}

// lineIndex maps byte offsets to 1-based line and column numbers.
type lineIndex []int

func newLineIndex(src string) lineIndex {
	idx := lineIndex{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

func (li lineIndex) position(off int) (line, col int) {
	if off < 0 {
		off = 0
	}
	line = sort.SearchInts(li, off+1)
	return line, off - li[line-1] + 1
}
