package mdtemplate

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// A compiled template blob is the magic prefix followed by a zstd frame
// holding the CBOR encoded tree. The tree is stored as a flat pre-order list
// of nodes, each carrying its child count, so decoding needs no recursion.
// Compiled actions are not stored; Decode recompiles them.
const (
	blobMagic   = "MDT\x01"
	blobVersion = 1
)

// ErrInvalidBlob is returned by Decode for data that is not a compiled
// template.
var ErrInvalidBlob = errors.New("not a compiled template")

type wireNode struct {
	_        struct{} `cbor:",toarray"`
	Kind     Kind
	Contents string
	Line     int
	Col      int
	Children int
}

type wireTree struct {
	Version int        `cbor:"v"`
	Nodes   []wireNode `cbor:"n"`
}

var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil)
	})
	cborDecMode = sync.OnceValues(func() (cbor.DecMode, error) {
		return cbor.DecOptions{MaxArrayElements: 16 << 20}.DecMode()
	})
)

// Encode serializes the template tree into a compact binary blob that
// Environment.Decode turns back into an equivalent template.
func (t *Template) Encode() ([]byte, error) {
	var nodes []wireNode
	_ = Walk(VisitorFunc(func(n *Node) error {
		nodes = append(nodes, wireNode{
			Kind:     n.Kind,
			Contents: n.Contents,
			Line:     n.Line,
			Col:      n.Col,
			Children: len(n.Children),
		})
		return nil
	}), t.Root)

	raw, err := cbor.Marshal(wireTree{Version: blobVersion, Nodes: nodes})
	if err != nil {
		return nil, fmt.Errorf("encoding template tree: %w", err)
	}
	enc, err := zstdEncoder()
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	return enc.EncodeAll(raw, []byte(blobMagic)), nil
}

// Decode restores a template produced by Template.Encode, compiling its
// pipelines and directives against this environment.
func (e *Environment) Decode(blob []byte) (*Template, error) {
	if !bytes.HasPrefix(blob, []byte(blobMagic)) {
		return nil, ErrInvalidBlob
	}
	dec, err := zstdDecoder()
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	raw, err := dec.DecodeAll(blob[len(blobMagic):], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBlob, err)
	}
	dm, err := cborDecMode()
	if err != nil {
		return nil, fmt.Errorf("creating cbor decoder: %w", err)
	}
	var wt wireTree
	if err := dm.Unmarshal(raw, &wt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBlob, err)
	}
	if wt.Version != blobVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidBlob, wt.Version)
	}
	root, err := e.rebuild(wt.Nodes)
	if err != nil {
		return nil, err
	}
	return &Template{Root: root, env: e}, nil
}

// rebuild turns the pre-order node list back into a tree, applying the same
// structural rules as the parser.
func (e *Environment) rebuild(nodes []wireNode) (*Node, error) {
	if len(nodes) == 0 || nodes[0].Kind != KindRoot {
		return nil, fmt.Errorf("%w: missing root node", ErrInvalidBlob)
	}
	type frame struct {
		n         *Node
		remaining int
	}
	root := &Node{Kind: KindRoot, Line: nodes[0].Line, Col: nodes[0].Col}
	stack := []frame{{n: root, remaining: nodes[0].Children}}

	for i, w := range nodes[1:] {
		for len(stack) > 0 && stack[len(stack)-1].remaining == 0 {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			return nil, fmt.Errorf("%w: node %d has no parent", ErrInvalidBlob, i+1)
		}
		top := &stack[len(stack)-1]
		top.remaining--

		n := &Node{Kind: w.Kind, Contents: w.Contents, Line: w.Line, Col: w.Col}
		fail := func(msg string, err error) error {
			return &ParseError{Line: n.Line, Col: n.Col, Msg: msg, Err: err}
		}
		siblings := top.n.Children
		switch n.Kind {
		case KindText:
		case KindInterp:
			e.compileInterp(n)
		case KindWith, KindFor, KindIf, KindElif, KindElse:
			if err := e.compileDirective(n); err != nil {
				return nil, fail(fmt.Sprintf("invalid {%% %s %%}", n.Kind), err)
			}
		default:
			return nil, fail(fmt.Sprintf("unexpected %s node", n.Kind), ErrInvalidBlob)
		}
		if n.Kind == KindElif || n.Kind == KindElse {
			if len(siblings) == 0 {
				return nil, fail(fmt.Sprintf("{%% %s %%} without a preceding block", n.Kind), nil)
			}
			prev := siblings[len(siblings)-1]
			if !prev.isChainLink() && !(n.Kind == KindElse && prev.Kind == KindFor) {
				return nil, fail(fmt.Sprintf("{%% %s %%} cannot follow {%% %s %%}", n.Kind, prev.Kind), nil)
			}
		}
		top.n.Children = append(top.n.Children, n)

		if w.Children > 0 {
			if n.Kind == KindText || n.Kind == KindInterp {
				return nil, fail(fmt.Sprintf("%s node cannot have children", n.Kind), ErrInvalidBlob)
			}
			if max := e.maxDepth(); len(stack) > max {
				return nil, fail("block too deeply nested", &LimitError{Limit: "nesting depth", Max: max})
			}
			stack = append(stack, frame{n: n, remaining: w.Children})
		}
	}
	for _, f := range stack {
		if f.remaining != 0 {
			return nil, fmt.Errorf("%w: truncated tree", ErrInvalidBlob)
		}
	}
	return root, nil
}
