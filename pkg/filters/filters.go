// Package filters provides the built-in filter catalog: markdown helpers,
// collection access, number and date formatting and markdown tables.
package filters

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/neurodesk/mdtemplate/pkg/mdtemplate"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/language"
)

const DefaultLocale = "en_US"

// Options configures locale-dependent filters.
type Options struct {
	// Locale selects month names for date_local, casing rules for title and
	// digit grouping for frmt. Defaults to DefaultLocale.
	Locale string
	// Location is the time zone for dates that carry none. Defaults to UTC.
	Location *time.Location
}

type catalog struct {
	reg    *mdtemplate.Registry
	locale string
	tag    language.Tag
	loc    *time.Location
	md     goldmark.Markdown
	tables sync.Map // row format -> []column
}

func newCatalog(reg *mdtemplate.Registry, opts Options) (*catalog, error) {
	if opts.Locale == "" {
		opts.Locale = DefaultLocale
	}
	tag, err := language.Parse(opts.Locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", opts.Locale, err)
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &catalog{
		reg:    reg,
		locale: opts.Locale,
		tag:    tag,
		loc:    opts.Location,
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}, nil
}

func (c *catalog) filters() map[string]mdtemplate.FilterFunc {
	return map[string]mdtemplate.FilterFunc{
		// markdown
		"as_name":       asName,
		"as_target":     asTarget,
		"ul":            ul,
		"ol":            ol,
		"bold":          wrapper("bold", "__", "__"),
		"italic":        wrapper("italic", "*", "*"),
		"strikethrough": wrapper("strikethrough", "~~", "~~"),
		"heading":       heading,
		"code":          code,
		"quote":         quote,
		"render_bool":   renderBool,
		"html":          c.html,
		"tabularize":    c.tabularize,

		// collections
		"get":     get,
		"get_mul": getMul,
		"join":    join,
		"length":  length,
		"default": defaultValue,

		// text
		"upper": upper,
		"lower": lower,
		"title": c.title,
		"trim":  trim,

		// numbers
		"frmt":    c.frmt,
		"adjust":  adjust,
		"bytes":   humanBytes,
		"comma":   comma,
		"ordinal": ordinal,

		// dates
		"date":       c.date,
		"date_local": c.dateLocal,
	}
}

// Register adds the built-in filters to reg. Filters already registered
// under the same names are replaced.
func Register(reg *mdtemplate.Registry, opts Options) error {
	c, err := newCatalog(reg, opts)
	if err != nil {
		return err
	}
	for name, fn := range c.filters() {
		if err := reg.Register(name, fn); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding the built-in filters. It is not
// frozen, so callers may add their own filters before creating an
// environment.
func NewRegistry(opts Options) (*mdtemplate.Registry, error) {
	reg := mdtemplate.NewRegistry()
	if err := Register(reg, opts); err != nil {
		return nil, err
	}
	return reg, nil
}

// checkArgs validates the number of literal arguments a filter received.
func checkArgs(name string, args []mdtemplate.Value, min, max int) error {
	switch {
	case len(args) < min && min == max:
		return fmt.Errorf("%s expects %d argument(s), got %d", name, min, len(args))
	case len(args) < min:
		return fmt.Errorf("%s expects at least %d argument(s), got %d", name, min, len(args))
	case max >= 0 && len(args) > max:
		return fmt.Errorf("%s expects at most %d argument(s), got %d", name, max, len(args))
	}
	return nil
}

func stringArg(args []mdtemplate.Value, i int, def string) string {
	if i < len(args) {
		return args[i].String()
	}
	return def
}

func intArg(args []mdtemplate.Value, i int, def int64) (int64, error) {
	if i < len(args) {
		return mdtemplate.AsInt(args[i])
	}
	return def, nil
}

func str(s string) mdtemplate.Value { return mdtemplate.StringValue(s) }

func items(name string, v mdtemplate.Value) ([]mdtemplate.Value, error) {
	out, err := mdtemplate.Iterate(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func joinItems(vals []mdtemplate.Value, format func(i int, s string) string, sep string) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = format(i, v.String())
	}
	return strings.Join(parts, sep)
}
