// Package data loads the context a template is rendered against from YAML,
// JSON or CBOR documents on disk, on stdin or behind a URL.
package data

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/neurodesk/mdtemplate/pkg/mdtemplate"
	"github.com/neurodesk/mdtemplate/pkg/netcache"
	"gopkg.in/yaml.v3"
)

// Stdin is the source name that reads from the loader's standard input.
const Stdin = "-"

type Loader struct {
	// Cache fetches http(s) sources. Remote sources are rejected when nil.
	Cache *netcache.Cache
	Stdin io.Reader
}

// Load reads src and converts its top-level mapping into a context.
func (l *Loader) Load(ctx context.Context, src string) (mdtemplate.Context, error) {
	var (
		body []byte
		name = src
		err  error
	)
	switch {
	case src == Stdin:
		in := l.Stdin
		if in == nil {
			in = os.Stdin
		}
		body, err = io.ReadAll(in)
	case strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://"):
		if l.Cache == nil {
			return nil, fmt.Errorf("remote data %s: no data cache configured", src)
		}
		var e netcache.Entry
		if e, err = l.Cache.Get(ctx, src); err == nil {
			name = e.Filename
			if strings.Contains(e.ContentType, "cbor") {
				name += ".cbor"
			}
			body, err = os.ReadFile(e.Path)
		}
	default:
		body, err = os.ReadFile(src)
	}
	if err != nil {
		return nil, fmt.Errorf("reading data %s: %w", src, err)
	}
	c, err := Decode(name, body)
	if err != nil {
		return nil, fmt.Errorf("data %s: %w", src, err)
	}
	return c, nil
}

// Decode parses body as CBOR when name ends in .cbor and as YAML otherwise,
// which covers JSON as well. An empty document is an empty context.
func Decode(name string, body []byte) (mdtemplate.Context, error) {
	var doc any
	if strings.EqualFold(filepath.Ext(name), ".cbor") {
		if err := cbor.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("decoding cbor: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(body))
		if err := dec.Decode(&doc); err != nil && err != io.EOF {
			return nil, fmt.Errorf("decoding yaml: %w", err)
		}
	}
	if doc == nil {
		return mdtemplate.Context{}, nil
	}
	d, ok := mdtemplate.FromGo(doc).(mdtemplate.DictValue)
	if !ok {
		return nil, fmt.Errorf("top level must be a mapping, got %s", mdtemplate.TypeName(mdtemplate.FromGo(doc)))
	}
	return mdtemplate.Context(d), nil
}
