package filters

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/neurodesk/mdtemplate/pkg/mdtemplate"
)

// asName renders a link whose text is the value: [val](target).
func asName(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("as_name", args, 1, 1); err != nil {
		return nil, err
	}
	return str(fmt.Sprintf("[%s](%s)", val, args[0])), nil
}

// asTarget renders a link pointing at the value: [name](val).
func asTarget(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("as_target", args, 1, 1); err != nil {
		return nil, err
	}
	return str(fmt.Sprintf("[%s](%s)", args[0], val)), nil
}

func ul(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("ul", args, 0, 0); err != nil {
		return nil, err
	}
	vals, err := items("ul", val)
	if err != nil {
		return nil, err
	}
	return str(joinItems(vals, func(_ int, s string) string { return "* " + s }, "\n")), nil
}

func ol(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("ol", args, 0, 0); err != nil {
		return nil, err
	}
	vals, err := items("ol", val)
	if err != nil {
		return nil, err
	}
	return str(joinItems(vals, func(i int, s string) string { return fmt.Sprintf("%d. %s", i+1, s) }, "\n")), nil
}

func wrapper(name, open, close string) mdtemplate.FilterFunc {
	return func(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
		if err := checkArgs(name, args, 0, 0); err != nil {
			return nil, err
		}
		return str(open + val.String() + close), nil
	}
}

// heading prefixes the value with level (default 1) hash marks.
func heading(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("heading", args, 0, 1); err != nil {
		return nil, err
	}
	level, err := intArg(args, 0, 1)
	if err != nil {
		return nil, fmt.Errorf("heading level: %w", err)
	}
	if level < 1 || level > 6 {
		return nil, fmt.Errorf("heading level %d out of range 1-6", level)
	}
	return str(strings.Repeat("#", int(level)) + " " + val.String()), nil
}

// code renders inline code, or a fenced block when a language is given.
func code(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("code", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return str("`" + val.String() + "`"), nil
	}
	body := strings.TrimSuffix(val.String(), "\n")
	return str("```" + args[0].String() + "\n" + body + "\n```"), nil
}

func quote(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("quote", args, 0, 0); err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimSuffix(val.String(), "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight("> "+l, " ")
	}
	return str(strings.Join(lines, "\n")), nil
}

// renderBool renders a check mark or a cross. Optional arguments replace
// the true and false texts.
func renderBool(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("render_bool", args, 0, 2); err != nil {
		return nil, err
	}
	if val.Truth() {
		return str(stringArg(args, 0, "✔")), nil
	}
	return str(stringArg(args, 1, "✗")), nil
}

// html converts markdown to HTML (GitHub flavoured).
func (c *catalog) html(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("html", args, 0, 0); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := c.md.Convert([]byte(val.String()), &buf); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}
	return str(buf.String()), nil
}
